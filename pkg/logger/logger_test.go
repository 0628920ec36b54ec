package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_StructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.Info().Str("account", "0xabc").Msg("stake updated")

	var output map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &output), "logger output should be valid JSON")

	assert.Equal(t, "stake updated", output["message"])
	assert.Equal(t, "0xabc", output["account"])
	assert.Equal(t, "info", output["level"])
	assert.Contains(t, output, "time")
}

func TestComponent_TagsChildLogger(t *testing.T) {
	var buf bytes.Buffer
	log := Component(NewWithWriter("info", &buf), "vault")

	log.Info().Msg("hello")

	var output map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &output))
	assert.Equal(t, "vault", output["component"])
}

func TestParseLevel_Filtering(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		infoSeen  bool
		warnSeen  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"WARNING", false, false, true},
		{"error", false, false, false},
		{"bogus", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var dbg, inf, wrn bytes.Buffer
			dl := NewWithWriter(tt.level, &dbg)
			il := NewWithWriter(tt.level, &inf)
			wl := NewWithWriter(tt.level, &wrn)
			dl.Debug().Msg("d")
			il.Info().Msg("i")
			wl.Warn().Msg("w")

			assert.Equal(t, tt.debugSeen, dbg.Len() > 0)
			assert.Equal(t, tt.infoSeen, inf.Len() > 0)
			assert.Equal(t, tt.warnSeen, wrn.Len() > 0)
		})
	}
}

func TestNew_PrettyMode(t *testing.T) {
	log := New("info", true)
	log.Info().Msg("pretty mode test")
}
