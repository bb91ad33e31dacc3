package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfigDefaults(t *testing.T) {
	cfg := NewReadConfig()
	assert.Equal(t, byte(0), cfg.Delim)
	assert.Equal(t, byte('"'), cfg.Quote)
	assert.True(t, cfg.EscapeDouble)
	assert.True(t, cfg.TrimWS)
	assert.True(t, cfg.HasHeader)
	assert.Equal(t, int64(-1), cfg.NMax)
	assert.Equal(t, []string{"", "NA"}, cfg.NAStrings)
	require.NoError(t, cfg.Validate())
}

func TestReadConfigValidation(t *testing.T) {
	cfg := NewReadConfig()
	cfg.Delim = '"'
	assert.Error(t, cfg.Validate())

	cfg = NewReadConfig()
	cfg.Skip = -1
	assert.Error(t, cfg.Validate())

	cfg = NewReadConfig()
	cfg.ColSelect = []Selection{{}}
	assert.Error(t, cfg.Validate())
}

func TestEnvThreadsOverride(t *testing.T) {
	t.Setenv(EnvThreads, "3")
	cfg := NewReadConfig()
	assert.Equal(t, 3, cfg.NumThreads)

	t.Setenv(EnvThreads, "not-a-number")
	cfg = NewReadConfig()
	assert.Equal(t, 0, cfg.NumThreads)
}

func TestEnvConnectionSize(t *testing.T) {
	t.Setenv(EnvConnectionSize, "8192")
	cfg := NewReadConfig()
	assert.Equal(t, 8192, cfg.ConnectionSize)
}

func TestCheckKeys(t *testing.T) {
	require.NoError(t, CheckKeys(map[string]interface{}{
		"delim": ",", "n_max": 5, "id_column_name": "path",
	}))
	assert.Error(t, CheckKeys(map[string]interface{}{"detain": ","}))
}

func TestProgressEnvDurations(t *testing.T) {
	t.Setenv(EnvProgressShowAfter, "0.5")
	assert.Equal(t, 500*time.Millisecond, ProgressShowAfter())

	t.Setenv(EnvProgressUpdateInterval, "2")
	assert.Equal(t, 2*time.Second, ProgressUpdateInterval())
}

func TestWriteConfigValidation(t *testing.T) {
	cfg := NewWriteConfig()
	require.NoError(t, cfg.Validate())

	cfg.QuotePolicy = "sometimes"
	assert.Error(t, cfg.Validate())

	cfg = NewWriteConfig()
	cfg.EOL = "\r"
	assert.Error(t, cfg.Validate())

	cfg = NewWriteConfig()
	cfg.Delim = 0
	assert.Error(t, cfg.Validate())
}
