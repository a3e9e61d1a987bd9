// Package bench measures how the reader and writer perform against a fixed
// set of targets. A Harness runs each dimension against files it generates
// in its work directory and scores the run as the share of targets met.
package bench

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/indrora/tusk/internal/logger"
	"github.com/indrora/tusk/pnt/reader"
	"github.com/indrora/tusk/pnt/writer"
)

// ReadFunc loads a file. reader.ReadFile is the default.
type ReadFunc func(path string) (*reader.File, error)

type Option func(*Harness)

func WithLogger(l logger.Logger) Option {
	return func(h *Harness) {
		h.log = l
	}
}

// WithReadFunc replaces the function used for every timed read.
func WithReadFunc(fn ReadFunc) Option {
	return func(h *Harness) {
		h.read = fn
	}
}

// WithRegistry records metrics into reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(h *Harness) {
		h.registry = reg
	}
}

// Harness runs the benchmark dimensions. It is not safe for concurrent use;
// run dimensions one after another.
type Harness struct {
	workDir  string
	cfg      Config
	log      logger.Logger
	read     ReadFunc
	registry *prometheus.Registry
	metrics  *metrics

	rss      func() int64
	baseline int64
	peak     int64

	payloads map[string]map[string]any
}

func New(workDir string, cfg Config, opts ...Option) *Harness {
	h := &Harness{
		workDir:  workDir,
		cfg:      cfg,
		log:      logger.Discard(),
		read:     reader.ReadFile,
		rss:      residentMemory,
		payloads: make(map[string]map[string]any),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.registry == nil {
		h.registry = prometheus.NewRegistry()
	}
	h.metrics = newMetrics(h.registry)
	h.baseline = h.rss()
	h.peak = h.baseline
	return h
}

// Registry is where the harness records its metrics.
func (h *Harness) Registry() *prometheus.Registry {
	return h.registry
}

func (h *Harness) Config() Config {
	return h.cfg
}

// Check is one measured value compared with its target.
type Check struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Target float64 `json:"target"`
	Unit   string  `json:"unit"`
	Met    bool    `json:"met"`
}

// Result is the outcome of one dimension. Errors holds failures of the
// benchmark itself (a round trip that changed the data, a write that
// failed); any of them makes TargetMet false whatever the checks say.
type Result struct {
	Name         string             `json:"name"`
	Checks       []Check            `json:"checks"`
	Measurements map[string]float64 `json:"measurements"`
	Errors       []string           `json:"errors"`
	TargetMet    bool               `json:"target_met"`
}

func newResult(name string) *Result {
	return &Result{
		Name:         name,
		Checks:       []Check{},
		Measurements: map[string]float64{},
		Errors:       []string{},
	}
}

func (r *Result) check(name string, value, target float64, unit string, met bool) {
	r.Checks = append(r.Checks, Check{Name: name, Value: value, Target: target, Unit: unit, Met: met})
}

func (r *Result) fail(f string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(f, args...))
}

func (h *Harness) finish(r *Result) *Result {
	r.TargetMet = len(r.Errors) == 0
	for _, c := range r.Checks {
		if !c.Met {
			r.TargetMet = false
		}
		h.metrics.targetMet.WithLabelValues(r.Name, c.Name).Set(boolGauge(c.Met && len(r.Errors) == 0))
	}
	h.log.Info("benchmark finished", "dimension", r.Name, "target_met", r.TargetMet, "checks", len(r.Checks), "errors", len(r.Errors))
	for _, e := range r.Errors {
		h.log.Warn("benchmark error", "dimension", r.Name, "error", e)
	}
	return r
}

// dir returns a fresh subdirectory of the work directory for one dimension.
func (h *Harness) dir(name string) (string, error) {
	d := filepath.Join(h.workDir, name)
	if err := os.RemoveAll(d); err != nil {
		return "", errors.Wrapf(err, "failed to clear %s", d)
	}
	if err := os.MkdirAll(d, 0755); err != nil {
		return "", errors.Wrapf(err, "failed to create %s", d)
	}
	return d, nil
}

// payload returns the generated object for a size, building it once.
func (h *Harness) payload(ns namedSize) map[string]any {
	if p, ok := h.payloads[ns.name]; ok {
		return p
	}
	p := Payload("bench-"+ns.name, ns.size)
	h.payloads[ns.name] = p
	return p
}

func (h *Harness) largest() (namedSize, bool) {
	sizes := h.cfg.Sizes.list()
	if len(sizes) == 0 {
		return namedSize{}, false
	}
	return sizes[len(sizes)-1], true
}

func (h *Harness) timedWrite(dimension, path string, data any, opts ...writer.Option) (*writer.Result, time.Duration, error) {
	start := time.Now()
	res, err := writer.WriteFile(path, data, nil, opts...)
	elapsed := time.Since(start)
	if err != nil {
		return nil, elapsed, err
	}
	h.metrics.write.WithLabelValues(dimension).Observe(elapsed.Seconds())
	return res, elapsed, nil
}

func (h *Harness) timedRead(dimension, path string) (*reader.File, time.Duration, error) {
	start := time.Now()
	file, err := h.read(path)
	elapsed := time.Since(start)
	if err != nil {
		return nil, elapsed, err
	}
	h.metrics.read.WithLabelValues(dimension).Observe(elapsed.Seconds())
	return file, elapsed, nil
}

// verifiedRead is timedRead plus the round-trip check against what was
// written.
func (h *Harness) verifiedRead(dimension, path string, want []byte) (time.Duration, error) {
	file, elapsed, err := h.timedRead(dimension, path)
	if err != nil {
		return elapsed, err
	}
	if !bytes.Equal(file.RawData, want) {
		return elapsed, errors.Errorf("data read back from %s differs from what was written", filepath.Base(path))
	}
	return elapsed, nil
}

type stats struct {
	mean, min, max, stddev float64
}

// summarize returns the statistics of ds in milliseconds.
func summarize(ds []time.Duration) stats {
	if len(ds) == 0 {
		return stats{}
	}
	s := stats{min: math.Inf(1), max: math.Inf(-1)}
	var sum float64
	for _, d := range ds {
		v := ms(d)
		sum += v
		s.min = math.Min(s.min, v)
		s.max = math.Max(s.max, v)
	}
	s.mean = sum / float64(len(ds))
	var sq float64
	for _, d := range ds {
		sq += (ms(d) - s.mean) * (ms(d) - s.mean)
	}
	s.stddev = math.Sqrt(sq / float64(len(ds)))
	return s
}

// perSecond is n/d, or 0 for an empty interval.
func perSecond(n float64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return n / d.Seconds()
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func mib(n int64) float64 {
	return float64(n) / megabyte
}
