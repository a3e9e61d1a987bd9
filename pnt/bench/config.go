package bench

import (
	"time"

	"github.com/indrora/tusk/pnt/format"
)

const (
	kilobyte = 1 << 10
	megabyte = 1 << 20
)

// Targets are the numbers every dimension is judged against.
type Targets struct {
	LoadSmall  time.Duration `yaml:"load_small" json:"load_small"`
	LoadMedium time.Duration `yaml:"load_medium" json:"load_medium"`
	LoadLarge  time.Duration `yaml:"load_large" json:"load_large"`
	LoadXLarge time.Duration `yaml:"load_xlarge" json:"load_xlarge"`

	// Minimum space saved by gzip, percent of the raw JSON.
	CompressionRatio float64 `yaml:"compression_ratio" json:"compression_ratio"`

	// Bytes of resident memory growth allowed per 100 MB of payload read.
	MemoryDeltaPer100MB int64 `yaml:"memory_delta_per_100mb" json:"memory_delta_per_100mb"`
	// Bytes above the starting resident size the process may reach.
	PeakMemory int64 `yaml:"peak_memory" json:"peak_memory"`

	// MB/s
	WriteSpeed float64 `yaml:"write_speed" json:"write_speed"`
	ReadSpeed  float64 `yaml:"read_speed" json:"read_speed"`

	// percent
	ConcurrentSuccessRate float64       `yaml:"concurrent_success_rate" json:"concurrent_success_rate"`
	ConcurrentLatency     time.Duration `yaml:"concurrent_latency" json:"concurrent_latency"`

	// files/hour
	Throughput float64 `yaml:"throughput" json:"throughput"`

	// Overall score, percent, needed for a run to pass.
	PassScore float64 `yaml:"pass_score" json:"pass_score"`
}

func DefaultTargets() Targets {
	return Targets{
		LoadSmall:             10 * time.Millisecond,
		LoadMedium:            50 * time.Millisecond,
		LoadLarge:             200 * time.Millisecond,
		LoadXLarge:            1000 * time.Millisecond,
		CompressionRatio:      70,
		MemoryDeltaPer100MB:   10 * megabyte,
		PeakMemory:            50 * megabyte,
		WriteSpeed:            100,
		ReadSpeed:             200,
		ConcurrentSuccessRate: 95,
		ConcurrentLatency:     100 * time.Millisecond,
		Throughput:            100,
		PassScore:             80,
	}
}

// Sizes are the approximate canonical JSON sizes of the generated payloads.
// A zero size is skipped.
type Sizes struct {
	Small  int `yaml:"small" json:"small"`
	Medium int `yaml:"medium" json:"medium"`
	Large  int `yaml:"large" json:"large"`
	XLarge int `yaml:"xlarge" json:"xlarge"`
}

type namedSize struct {
	name string
	size int
}

// list returns the configured sizes smallest first.
func (s Sizes) list() []namedSize {
	var out []namedSize
	for _, ns := range []namedSize{
		{"small", s.Small},
		{"medium", s.Medium},
		{"large", s.Large},
		{"xlarge", s.XLarge},
	} {
		if ns.size > 0 {
			out = append(out, ns)
		}
	}
	return out
}

type Config struct {
	Targets Targets `yaml:"targets" json:"targets"`
	Sizes   Sizes   `yaml:"sizes" json:"sizes"`
	// Compression used for files that are not specifically about compression.
	Compression format.Compression `yaml:"compression" json:"compression"`

	LoadIterations     int      `yaml:"load_iterations" json:"load_iterations"`
	MemoryIterations   int      `yaml:"memory_iterations" json:"memory_iterations"`
	SpeedIterations    int      `yaml:"speed_iterations" json:"speed_iterations"`
	PoolSizes          []int    `yaml:"pool_sizes" json:"pool_sizes"`
	ConcurrentRequests int      `yaml:"concurrent_requests" json:"concurrent_requests"`
	ThroughputFiles    int      `yaml:"throughput_files" json:"throughput_files"`
	StressIterations   int      `yaml:"stress_iterations" json:"stress_iterations"`
	Platforms          []string `yaml:"platforms" json:"platforms"`
}

func DefaultConfig() Config {
	return Config{
		Targets: DefaultTargets(),
		Sizes: Sizes{
			Small:  512,
			Medium: 256 * kilobyte,
			Large:  2 * megabyte,
		},
		Compression:        format.COMPRESSION_GZIP,
		LoadIterations:     10,
		MemoryIterations:   5,
		SpeedIterations:    10,
		PoolSizes:          []int{1, 10, 50, 100},
		ConcurrentRequests: 100,
		ThroughputFiles:    100,
		StressIterations:   50,
		Platforms:          []string{"linux", "darwin", "windows"},
	}
}

// XLargeSize is the payload size enabled by the CLI's --xlarge flag.
const XLargeSize = 16 * megabyte

type SizeClass string

const (
	SIZE_SMALL  SizeClass = "small"
	SIZE_MEDIUM SizeClass = "medium"
	SIZE_LARGE  SizeClass = "large"
	SIZE_XLARGE SizeClass = "xlarge"
)

// ClassOf buckets a payload by its JSON size: under 1 KB is small, under
// 1 MB medium, under 10 MB large, anything else xlarge.
func ClassOf(size int64) SizeClass {
	switch {
	case size < kilobyte:
		return SIZE_SMALL
	case size < megabyte:
		return SIZE_MEDIUM
	case size < 10*megabyte:
		return SIZE_LARGE
	default:
		return SIZE_XLARGE
	}
}

// LoadTarget is the load time allowed for a payload of class c.
func (t Targets) LoadTarget(c SizeClass) time.Duration {
	switch c {
	case SIZE_SMALL:
		return t.LoadSmall
	case SIZE_MEDIUM:
		return t.LoadMedium
	case SIZE_LARGE:
		return t.LoadLarge
	default:
		return t.LoadXLarge
	}
}
