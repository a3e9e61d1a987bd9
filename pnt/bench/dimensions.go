package bench

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"github.com/indrora/tusk/pnt/format"
	"github.com/indrora/tusk/pnt/ioutil"
	"github.com/indrora/tusk/pnt/writer"
)

const (
	DIM_LOAD_TIME      = "load_time"
	DIM_COMPRESSION    = "compression"
	DIM_MEMORY         = "memory"
	DIM_SPEED          = "speed"
	DIM_CONCURRENT     = "concurrent"
	DIM_THROUGHPUT     = "throughput"
	DIM_CROSS_PLATFORM = "cross_platform"
	DIM_STRESS         = "stress"
)

// LoadTime writes each payload once and reads it back LoadIterations times.
// The mean is judged against the target for the payload's size class.
func (h *Harness) LoadTime() *Result {
	res := newResult(DIM_LOAD_TIME)
	dir, err := h.dir(DIM_LOAD_TIME)
	if err != nil {
		res.fail("%v", err)
		return h.finish(res)
	}

	for _, ns := range h.cfg.Sizes.list() {
		path := filepath.Join(dir, ns.name+format.FILE_EXT)
		wr, _, err := h.timedWrite(DIM_LOAD_TIME, path, h.payload(ns), writer.WithCompression(h.cfg.Compression))
		if err != nil {
			res.fail("%s: write: %v", ns.name, err)
			continue
		}

		times := make([]time.Duration, 0, h.cfg.LoadIterations)
		for i := 0; i < h.cfg.LoadIterations; i++ {
			elapsed, err := h.verifiedRead(DIM_LOAD_TIME, path, wr.Raw)
			if err != nil {
				res.fail("%s: iteration %d: %v", ns.name, i, err)
				break
			}
			times = append(times, elapsed)
		}
		if len(times) == 0 {
			continue
		}

		s := summarize(times)
		class := ClassOf(wr.RawSize)
		target := ms(h.cfg.Targets.LoadTarget(class))
		res.Measurements[ns.name+".mean_ms"] = s.mean
		res.Measurements[ns.name+".min_ms"] = s.min
		res.Measurements[ns.name+".max_ms"] = s.max
		res.Measurements[ns.name+".stddev_ms"] = s.stddev
		res.Measurements[ns.name+".file_bytes"] = float64(wr.FileSize)
		res.check("load_"+ns.name, s.mean, target, "ms", s.mean <= target)
	}
	return h.finish(res)
}

// Compression writes every payload with and without gzip and compares the
// file sizes with the raw JSON. The ratio is judged on the largest payload.
func (h *Harness) Compression() *Result {
	res := newResult(DIM_COMPRESSION)
	dir, err := h.dir(DIM_COMPRESSION)
	if err != nil {
		res.fail("%v", err)
		return h.finish(res)
	}

	iterations := max(1, h.cfg.LoadIterations)
	var judged float64
	var haveJudged bool
	sizes := h.cfg.Sizes.list()

	for idx, ns := range sizes {
		for _, c := range []format.Compression{format.COMPRESSION_NONE, format.COMPRESSION_GZIP} {
			key := fmt.Sprintf("%s.%s", ns.name, c)
			path := filepath.Join(dir, key+format.FILE_EXT)
			wr, _, err := h.timedWrite(DIM_COMPRESSION, path, h.payload(ns), writer.WithCompression(c))
			if err != nil {
				res.fail("%s: write: %v", key, err)
				continue
			}
			res.Measurements[key+".ratio_pct"] = wr.Ratio()
			res.Measurements[key+".file_bytes"] = float64(wr.FileSize)

			times := make([]time.Duration, 0, iterations)
			for i := 0; i < iterations; i++ {
				elapsed, err := h.verifiedRead(DIM_COMPRESSION, path, wr.Raw)
				if err != nil {
					res.fail("%s: %v", key, err)
					break
				}
				times = append(times, elapsed)
			}
			res.Measurements[key+".read_ms"] = summarize(times).mean

			if c == format.COMPRESSION_GZIP && idx == len(sizes)-1 {
				judged, haveJudged = wr.Ratio(), true
			}
		}
	}
	if haveJudged {
		target := h.cfg.Targets.CompressionRatio
		res.check("compression_ratio", judged, target, "%", judged >= target)
	}
	return h.finish(res)
}

// Memory reads each payload MemoryIterations times, sampling the resident
// size around every read. Growth is normalised to 100 MB of JSON read; the
// peak is the largest resident size seen over the harness baseline.
func (h *Harness) Memory() *Result {
	res := newResult(DIM_MEMORY)
	dir, err := h.dir(DIM_MEMORY)
	if err != nil {
		res.fail("%v", err)
		return h.finish(res)
	}

	var grown, processed int64
	for _, ns := range h.cfg.Sizes.list() {
		path := filepath.Join(dir, ns.name+format.FILE_EXT)
		wr, _, err := h.timedWrite(DIM_MEMORY, path, h.payload(ns), writer.WithCompression(h.cfg.Compression))
		if err != nil {
			res.fail("%s: write: %v", ns.name, err)
			continue
		}
		// warm up so the first read's allocations are not counted as growth
		if _, err := h.verifiedRead(DIM_MEMORY, path, wr.Raw); err != nil {
			res.fail("%s: %v", ns.name, err)
			continue
		}

		var sizeGrowth int64
		for i := 0; i < h.cfg.MemoryIterations; i++ {
			runtime.GC()
			before := h.sampleMemory()
			if _, err := h.verifiedRead(DIM_MEMORY, path, wr.Raw); err != nil {
				res.fail("%s: iteration %d: %v", ns.name, i, err)
				break
			}
			after := h.sampleMemory()
			if d := after - before; d > 0 {
				sizeGrowth += d
			}
			processed += wr.RawSize
		}
		grown += sizeGrowth
		if h.cfg.MemoryIterations > 0 {
			res.Measurements[ns.name+".avg_delta_mib"] = mib(sizeGrowth) / float64(h.cfg.MemoryIterations)
		}
	}

	if processed > 0 {
		per100 := float64(grown) / float64(processed) * 100 * megabyte
		res.Measurements["processed_mib"] = mib(processed)
		res.check("memory_delta_per_100mb", per100/megabyte, mib(h.cfg.Targets.MemoryDeltaPer100MB), "MiB",
			per100 <= float64(h.cfg.Targets.MemoryDeltaPer100MB))
	}
	peak := h.peak - h.baseline
	res.Measurements["baseline_mib"] = mib(h.baseline)
	res.check("peak_memory", mib(peak), mib(h.cfg.Targets.PeakMemory), "MiB", peak <= h.cfg.Targets.PeakMemory)
	return h.finish(res)
}

// Speed times SpeedIterations uncompressed writes and reads of every
// payload. Throughput in MB/s is judged on the largest payload.
func (h *Harness) Speed() *Result {
	res := newResult(DIM_SPEED)
	dir, err := h.dir(DIM_SPEED)
	if err != nil {
		res.fail("%v", err)
		return h.finish(res)
	}
	largest, ok := h.largest()
	if !ok || h.cfg.SpeedIterations <= 0 {
		return h.finish(res)
	}

	for _, ns := range h.cfg.Sizes.list() {
		path := filepath.Join(dir, ns.name+format.FILE_EXT)
		data := h.payload(ns)

		var (
			wr       *writer.Result
			written  time.Duration
			readTime time.Duration
			failed   bool
		)
		for i := 0; i < h.cfg.SpeedIterations; i++ {
			r, elapsed, err := h.timedWrite(DIM_SPEED, path, data, writer.WithCompression(format.COMPRESSION_NONE))
			if err != nil {
				res.fail("%s: write: %v", ns.name, err)
				failed = true
				break
			}
			wr = r
			written += elapsed
		}
		if failed {
			continue
		}
		for i := 0; i < h.cfg.SpeedIterations; i++ {
			elapsed, err := h.verifiedRead(DIM_SPEED, path, wr.Raw)
			if err != nil {
				res.fail("%s: %v", ns.name, err)
				failed = true
				break
			}
			readTime += elapsed
		}
		if failed {
			continue
		}

		volume := mib(wr.FileSize) * float64(h.cfg.SpeedIterations)
		writeSpeed := perSecond(volume, written)
		readSpeed := perSecond(volume, readTime)
		res.Measurements[ns.name+".write_mb_s"] = writeSpeed
		res.Measurements[ns.name+".read_mb_s"] = readSpeed

		if ns == largest {
			t := h.cfg.Targets
			res.check("write_speed", writeSpeed, t.WriteSpeed, "MB/s", writeSpeed >= t.WriteSpeed)
			res.check("read_speed", readSpeed, t.ReadSpeed, "MB/s", readSpeed >= t.ReadSpeed)
		}
	}
	return h.finish(res)
}

// Concurrent issues ConcurrentRequests reads of one medium file at each
// pool size. The worst success rate and the worst mean latency across the
// pool sizes are judged.
func (h *Harness) Concurrent() *Result {
	res := newResult(DIM_CONCURRENT)
	dir, err := h.dir(DIM_CONCURRENT)
	if err != nil {
		res.fail("%v", err)
		return h.finish(res)
	}
	if h.cfg.ConcurrentRequests <= 0 || len(h.cfg.PoolSizes) == 0 {
		return h.finish(res)
	}

	ns := namedSize{"medium", h.cfg.Sizes.Medium}
	if ns.size <= 0 {
		ns, _ = h.largest()
	}
	path := filepath.Join(dir, "shared"+format.FILE_EXT)
	wr, _, err := h.timedWrite(DIM_CONCURRENT, path, h.payload(ns), writer.WithCompression(h.cfg.Compression))
	if err != nil {
		res.fail("write: %v", err)
		return h.finish(res)
	}

	worstRate := 100.0
	worstLatency := 0.0
	for _, pool := range h.cfg.PoolSizes {
		var (
			mu        sync.Mutex
			succeeded int
			latencies []time.Duration
			failures  []string
		)
		g := new(errgroup.Group)
		g.SetLimit(max(1, pool))
		for i := 0; i < h.cfg.ConcurrentRequests; i++ {
			g.Go(func() error {
				elapsed, err := h.verifiedRead(DIM_CONCURRENT, path, wr.Raw)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failures = append(failures, err.Error())
					return nil
				}
				succeeded++
				latencies = append(latencies, elapsed)
				return nil
			})
		}
		g.Wait()

		rate := float64(succeeded) / float64(h.cfg.ConcurrentRequests) * 100
		latency := summarize(latencies).mean
		res.Measurements[fmt.Sprintf("pool_%d.success_pct", pool)] = rate
		res.Measurements[fmt.Sprintf("pool_%d.mean_latency_ms", pool)] = latency
		if len(failures) > 0 {
			// one line per pool, the first failure is representative
			res.fail("pool %d: %d of %d reads failed: %s", pool, len(failures), h.cfg.ConcurrentRequests, failures[0])
		}
		worstRate = min(worstRate, rate)
		worstLatency = max(worstLatency, latency)
	}

	t := h.cfg.Targets
	res.check("concurrent_success_rate", worstRate, t.ConcurrentSuccessRate, "%", worstRate >= t.ConcurrentSuccessRate)
	res.check("concurrent_latency", worstLatency, ms(t.ConcurrentLatency), "ms", worstLatency <= ms(t.ConcurrentLatency))
	return h.finish(res)
}

// Throughput writes ThroughputFiles small files and times reading all of
// them back in sequence.
func (h *Harness) Throughput() *Result {
	res := newResult(DIM_THROUGHPUT)
	dir, err := h.dir(DIM_THROUGHPUT)
	if err != nil {
		res.fail("%v", err)
		return h.finish(res)
	}
	if h.cfg.ThroughputFiles <= 0 {
		return h.finish(res)
	}

	ns := namedSize{"small", h.cfg.Sizes.Small}
	if sizes := h.cfg.Sizes.list(); ns.size <= 0 && len(sizes) > 0 {
		ns = sizes[0]
	}
	data := h.payload(ns)

	paths := make([]string, 0, h.cfg.ThroughputFiles)
	var raw []byte
	for i := 0; i < h.cfg.ThroughputFiles; i++ {
		path := filepath.Join(dir, fmt.Sprintf("file-%04d%s", i, format.FILE_EXT))
		wr, _, err := h.timedWrite(DIM_THROUGHPUT, path, data, writer.WithCompression(h.cfg.Compression))
		if err != nil {
			res.fail("write %s: %v", filepath.Base(path), err)
			continue
		}
		raw = wr.Raw
		paths = append(paths, path)
	}

	processed := 0
	start := time.Now()
	for _, path := range paths {
		if _, err := h.verifiedRead(DIM_THROUGHPUT, path, raw); err != nil {
			res.fail("%v", err)
			continue
		}
		processed++
	}
	elapsed := time.Since(start)

	perHour := perSecond(float64(processed), elapsed) * 3600
	res.Measurements["files_processed"] = float64(processed)
	res.Measurements["elapsed_ms"] = ms(elapsed)
	res.check("throughput", perHour, h.cfg.Targets.Throughput, "files/hour", perHour >= h.cfg.Targets.Throughput)
	return h.finish(res)
}

// CrossPlatform copies one file into a directory per platform name and
// checks every copy reads back identically. Everything runs on this host,
// so it guards against path and copy handling, not real byte-order or
// filesystem differences between systems.
func (h *Harness) CrossPlatform() *Result {
	res := newResult(DIM_CROSS_PLATFORM)
	dir, err := h.dir(DIM_CROSS_PLATFORM)
	if err != nil {
		res.fail("%v", err)
		return h.finish(res)
	}
	if len(h.cfg.Platforms) == 0 {
		return h.finish(res)
	}

	ns := namedSize{"medium", h.cfg.Sizes.Medium}
	if ns.size <= 0 {
		ns, _ = h.largest()
	}
	source := filepath.Join(dir, "source"+format.FILE_EXT)
	wr, _, err := h.timedWrite(DIM_CROSS_PLATFORM, source, h.payload(ns), writer.WithCompression(h.cfg.Compression))
	if err != nil {
		res.fail("write: %v", err)
		return h.finish(res)
	}
	image, err := os.ReadFile(source)
	if err != nil {
		res.fail("read source: %v", err)
		return h.finish(res)
	}

	consistent := 0
	for _, platform := range h.cfg.Platforms {
		target := filepath.Join(dir, platform, "config"+format.FILE_EXT)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			res.fail("%s: %v", platform, err)
			continue
		}
		if err := ioutil.WriteFileAtomic(target, image, writer.DEFAULT_MODE); err != nil {
			res.fail("%s: %v", platform, err)
			continue
		}
		file, _, err := h.timedRead(DIM_CROSS_PLATFORM, target)
		if err != nil {
			res.fail("%s: %v", platform, err)
			continue
		}
		if string(file.RawData) != string(wr.Raw) || file.Header != wr.Header {
			res.fail("%s: copy does not read back identically", platform)
			continue
		}
		consistent++
	}

	pct := float64(consistent) / float64(len(h.cfg.Platforms)) * 100
	res.Measurements["platforms"] = float64(len(h.cfg.Platforms))
	res.check("cross_platform_consistency", pct, 100, "%", consistent == len(h.cfg.Platforms))
	return h.finish(res)
}

// Stress repeats write, read and verify on the largest payload,
// alternating compression. Each round trip is checked with a BLAKE2b
// fingerprint of the JSON. Any failure counts against the run.
func (h *Harness) Stress() *Result {
	res := newResult(DIM_STRESS)
	dir, err := h.dir(DIM_STRESS)
	if err != nil {
		res.fail("%v", err)
		return h.finish(res)
	}
	ns, ok := h.largest()
	if !ok || h.cfg.StressIterations <= 0 {
		return h.finish(res)
	}

	data := h.payload(ns)
	path := filepath.Join(dir, "stress"+format.FILE_EXT)
	failures := 0
	start := time.Now()
	for i := 0; i < h.cfg.StressIterations; i++ {
		c := format.COMPRESSION_NONE
		if i%2 == 1 {
			c = format.COMPRESSION_GZIP
		}
		wr, _, err := h.timedWrite(DIM_STRESS, path, data, writer.WithCompression(c))
		if err != nil {
			failures++
			res.fail("iteration %d: write: %v", i, err)
			continue
		}
		file, _, err := h.timedRead(DIM_STRESS, path)
		if err != nil {
			failures++
			res.fail("iteration %d: read: %v", i, err)
			continue
		}
		if blake2b.Sum256(wr.Raw) != blake2b.Sum256(file.RawData) {
			failures++
			res.fail("iteration %d: fingerprint mismatch", i)
		}
	}

	res.Measurements["iterations"] = float64(h.cfg.StressIterations)
	res.Measurements["elapsed_ms"] = ms(time.Since(start))
	res.check("stress_errors", float64(failures), 0, "errors", failures == 0)
	return h.finish(res)
}
