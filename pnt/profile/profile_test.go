package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indrora/tusk/pnt/bench"
	"github.com/indrora/tusk/pnt/format"
	"github.com/indrora/tusk/pnt/validator"
)

func TestParsePartial(t *testing.T) {
	p, err := Parse([]byte(`
validation:
  max_keywords: 10
benchmark:
  targets:
    load_small: 25ms
    pass_score: 90
  pool_sizes: [2, 4]
  compression: 0
logging:
  level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, 10, p.Validation.MaxKeywords)
	assert.Equal(t, validator.DefaultLimits().MaxDependencies, p.Validation.MaxDependencies)

	assert.Equal(t, 25*time.Millisecond, p.Benchmark.Targets.LoadSmall)
	assert.Equal(t, 90.0, p.Benchmark.Targets.PassScore)
	assert.Equal(t, bench.DefaultTargets().LoadLarge, p.Benchmark.Targets.LoadLarge)
	assert.Equal(t, []int{2, 4}, p.Benchmark.PoolSizes)
	assert.Equal(t, format.COMPRESSION_NONE, p.Benchmark.Compression)
	assert.Equal(t, bench.DefaultConfig().Sizes, p.Benchmark.Sizes)

	assert.Equal(t, "debug", p.Logging.Level)
	assert.Equal(t, "text", p.Logging.Format)
}

func TestParseEmpty(t *testing.T) {
	p, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestParseUnknownKey(t *testing.T) {
	_, err := Parse([]byte("validation:\n  max_keyword: 3\n"))
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	p := Default()
	p.Validation.MaxFileSize = 4096
	p.Benchmark.Platforms = []string{"plan9"}
	p.Benchmark.Targets.ConcurrentLatency = 250 * time.Millisecond

	require.NoError(t, Save(p, path))
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "concurrent_latency: 250ms")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, p, loaded)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
