package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigs(t *testing.T, cfg, dcfg string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(cfg), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dataconfig.json"), []byte(dcfg), 0644))
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeConfigs(t,
		`{"data_file": "trips.csv", "schedule": {"interval": "15m"}, "server": {"require_run": true}}`,
		`{"columns": {"miles": "DISTANCE"}, "purpose_sentinel": "NONE"}`,
	)

	cfg, dcfg, err := Load(dir, "config.json", "dataconfig.json")
	require.NoError(t, err)

	assert.Equal(t, "trips.csv", cfg.DataFile)
	assert.Equal(t, 15*time.Minute, time.Duration(cfg.Schedule.Interval))
	assert.True(t, cfg.Server.RequireRun)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "charts", cfg.OutputDir)

	assert.Equal(t, "DISTANCE", dcfg.Column(ColMiles))
	assert.Equal(t, "START_DATE", dcfg.Column(ColStart))
	assert.Equal(t, "NONE", dcfg.PurposeSentinel)
	assert.NotEmpty(t, dcfg.TimeLayouts)
	assert.Equal(t, []float64{100, 40}, dcfg.MilesLimits)
}

func TestLoadRepositoryConfig(t *testing.T) {
	cfg, dcfg, err := Load(filepath.Join("..", "..", "config"), "config.json", "dataconfig.json")
	require.NoError(t, err)
	assert.Equal(t, "UberDataset.csv", cfg.DataFile)
	assert.Equal(t, "day-night", dcfg.Column(ColTimeOfDay))
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, _, err := Load(t.TempDir(), "config.json", "dataconfig.json")
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("bad json in both", func(t *testing.T) {
		dir := writeConfigs(t, `{`, `[`)
		_, _, err := Load(dir, "config.json", "dataconfig.json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "多个错误")
	})

	t.Run("bad duration", func(t *testing.T) {
		dir := writeConfigs(t, `{"schedule": {"interval": "soon"}}`, `{}`)
		_, _, err := Load(dir, "config.json", "dataconfig.json")
		require.Error(t, err)
	})
}

func TestDurationJSON(t *testing.T) {
	d := Duration(90 * time.Second)
	b, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(b))

	var back Duration
	require.NoError(t, back.UnmarshalJSON(b))
	assert.Equal(t, d, back)
}

func TestSetColumn(t *testing.T) {
	_, dcfg := Default()
	dcfg.SetColumn(ColCategory, "KIND")
	assert.Equal(t, "KIND", dcfg.Column(ColCategory))
	assert.Equal(t, "", dcfg.Column("unknown"))
}
