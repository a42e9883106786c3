package proxy

import (
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectClient(t *testing.T) {
	c, err := NewHTTPClient("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.Timeout)
	assert.Nil(t, c.Transport)
}

func TestSocksClientFailsThroughDeadProxy(t *testing.T) {
	// grab a free port and close it so nothing listens there
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	c, err := NewHTTPClient(addr)
	require.NoError(t, err)
	require.IsType(t, &http.Transport{}, c.Transport)

	_, err = c.Get("http://example.invalid/")
	assert.Error(t, err)
}
