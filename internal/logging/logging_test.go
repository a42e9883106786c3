package logging

import (
	"bytes"
	"context"
	log "log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupLevel(t *testing.T) {
	prev := log.Default()
	defer log.SetDefault(prev)

	var buf bytes.Buffer
	logger := Setup(&buf, "warn")

	assert.False(t, logger.Enabled(context.Background(), log.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), log.LevelWarn))

	log.Warn("Command failed", "command", "calc")
	assert.Contains(t, buf.String(), "Command failed")
	assert.Contains(t, buf.String(), "calc")

	logger = Setup(&buf, "loud")
	assert.True(t, logger.Enabled(context.Background(), log.LevelInfo))
	assert.False(t, logger.Enabled(context.Background(), log.LevelDebug))
}
