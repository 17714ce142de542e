package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := initLogger(&buf, "lanes", "warn", "json")

	logger.Info().Msg("hidden")
	logger.Warn().Str("item_id", "item-1").Msg("deposit_failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "lanes", entry["app"])
	assert.Equal(t, "item-1", entry["item_id"])
	assert.Equal(t, "deposit_failed", entry["message"])
}

func TestInitLoggerDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := initLogger(&buf, "lanes", "bogus", "json")
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestRecordersDoNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordDrag("committed", "the-bank")
		RecordDeposit("created")
		RecordSnapshot("feed-1", true)
		RecordAnnotation("complete")
		RecordAnnotationChunk()
	})
}
