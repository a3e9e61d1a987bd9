package bench

import (
	"runtime"

	"github.com/prometheus/procfs"
)

// residentMemory reports the resident set size of this process. Where /proc
// is not available it falls back to the memory the Go runtime has obtained
// from the OS, which tracks RSS closely enough for a delta.
func residentMemory() int64 {
	if fs, err := procfs.NewDefaultFS(); err == nil {
		if proc, err := fs.Self(); err == nil {
			if stat, err := proc.Stat(); err == nil {
				return int64(stat.ResidentMemory())
			}
		}
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return int64(ms.Sys)
}

// sampleMemory records the current resident size and keeps the peak.
func (h *Harness) sampleMemory() int64 {
	rss := h.rss()
	if rss > h.peak {
		h.peak = rss
	}
	return rss
}
