package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("BW_STR", "  hello  ")
	t.Setenv("BW_INT", "42")
	t.Setenv("BW_FLOAT", "0.75")
	t.Setenv("BW_DUR", "90s")
	t.Setenv("BW_BOOL", "true")
	t.Setenv("BW_LIST", "bhopal, indore,,rewa ")
	t.Setenv("BW_BAD_INT", "forty")

	assert.Equal(t, "hello", EnvStr("BW_STR", "def"))
	assert.Equal(t, "def", EnvStr("BW_MISSING", "def"))
	assert.Equal(t, 42, EnvInt("BW_INT", 7))
	assert.Equal(t, 7, EnvInt("BW_BAD_INT", 7))
	assert.Equal(t, 0.75, EnvFloat("BW_FLOAT", 0.1))
	assert.Equal(t, 90*time.Second, EnvDuration("BW_DUR", time.Minute))
	assert.Equal(t, time.Minute, EnvDuration("BW_MISSING", time.Minute))
	assert.True(t, EnvBool("BW_BOOL", false))
	assert.Equal(t, []string{"bhopal", "indore", "rewa"}, EnvList("BW_LIST", nil))
	assert.Equal(t, []string{"x"}, EnvList("BW_MISSING", []string{"x"}))
}

func TestLoadRegions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "regions.yaml")
	data := `regions:
  - id: bhopal
    name: Bhopal
    latitude: 23.2599
    longitude: 77.4126
    data_file: bhopal_ndvi.csv
    phenology:
      peak_day: 265
      baseline: 0.32
      amplitude: 0.48
      width_days: 38
  - id: indore
    name: Indore
    latitude: 22.7196
    longitude: 75.8577
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	rs, err := LoadRegions(path)
	require.NoError(t, err)
	require.Len(t, rs.Regions, 2)

	b := rs.Get("bhopal")
	require.NotNil(t, b)
	assert.Equal(t, "Bhopal", b.Name)
	assert.InDelta(t, 23.2599, b.Latitude, 1e-9)
	require.NotNil(t, b.Phenology)
	assert.Equal(t, 265, b.Phenology.PeakDay)

	assert.Nil(t, rs.Get("nagpur"))
	assert.Equal(t, []string{"bhopal", "indore"}, rs.IDs())
}

func TestLoadRegionsRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "regions.yaml")
	data := `regions:
  - id: bhopal
    name: Bhopal
  - id: bhopal
    name: Bhopal again
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := LoadRegions(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate region id")
}

func TestLoadSubscribers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subscribers.yaml")
	data := `subscribers:
  - name: agri-portal
    url: http://portal.example/hooks/bloom
    regions: [bhopal, indore]
    min_intensity: moderate
  - name: catch-all
    url: http://audit.example/hooks
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	ss, err := LoadSubscribers(path)
	require.NoError(t, err)
	require.Len(t, ss.Subscribers, 2)
	assert.Equal(t, "agri-portal", ss.Subscribers[0].Name)
	assert.Equal(t, []string{"bhopal", "indore"}, ss.Subscribers[0].Regions)
}

func TestLoadSubscribersMissingFile(t *testing.T) {
	ss, err := LoadSubscribers(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, ss.Subscribers)
}
