package console

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceSkipsBlankLines(t *testing.T) {
	var out bytes.Buffer
	src := NewSource(bufio.NewReader(strings.NewReader("\n  \nmia bhai hi\nlast")), &out)
	ctx := context.Background()

	in, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mia bhai hi", in.Text)
	assert.False(t, in.Activated)

	in, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "last", in.Text)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	assert.Equal(t, strings.Repeat(Prompt, 5), out.String())
}

func TestSinkPlainAndTranscript(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	var out bytes.Buffer
	ctx := context.Background()

	require.NoError(t, NewSink(&out).Say(ctx, "4"))
	assert.Equal(t, "4\n", out.String())

	out.Reset()
	tr := NewTranscript(&out)
	tr.now = func() time.Time { return time.Date(2025, 1, 1, 9, 5, 0, 0, time.UTC) }
	tr.Heard("open notepad")
	require.NoError(t, tr.Say(ctx, "Done!"))
	assert.Equal(t, "[09:05] You: open notepad\n\n[09:05] Mia Bhai: Done!\n\n", out.String())
}
