package bench

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

type Report struct {
	RunID           string        `json:"run_id"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration_ns"`
	Results         []*Result     `json:"results"`
	TargetsMet      int           `json:"targets_met"`
	TargetsTotal    int           `json:"targets_total"`
	OverallScore    float64       `json:"overall_score"`
	PassScore       float64       `json:"pass_score"`
	Recommendations []string      `json:"recommendations"`
}

// Passed reports whether the overall score reached the pass score.
func (r *Report) Passed() bool {
	return r.OverallScore >= r.PassScore
}

// Run executes every dimension in order. A dimension that fails outright is
// recorded and the rest still run.
func (h *Harness) Run() *Report {
	report := &Report{
		RunID:           uuid.NewString(),
		StartedAt:       time.Now(),
		Results:         []*Result{},
		Recommendations: []string{},
		PassScore:       h.cfg.Targets.PassScore,
	}
	log := h.log.With("run_id", report.RunID)
	log.Info("benchmark run started", "work_dir", h.workDir)

	for _, dimension := range []func() *Result{
		h.LoadTime,
		h.Compression,
		h.Memory,
		h.Speed,
		h.Concurrent,
		h.Throughput,
		h.CrossPlatform,
		h.Stress,
	} {
		report.Results = append(report.Results, dimension())
	}

	report.score()
	report.Duration = time.Since(report.StartedAt)
	h.metrics.score.Set(report.OverallScore)
	log.Info("benchmark run finished", "score", report.OverallScore, "passed", report.Passed(), "duration", report.Duration)
	return report
}

// score counts every check as one target. Checks of a dimension that hit an
// error count as missed, and a dimension that errored before producing any
// check counts as one missed target.
func (r *Report) score() {
	r.TargetsMet, r.TargetsTotal = 0, 0
	r.Recommendations = r.Recommendations[:0]

	for _, res := range r.Results {
		errored := len(res.Errors) > 0
		if errored && len(res.Checks) == 0 {
			r.TargetsTotal++
		}
		for _, c := range res.Checks {
			r.TargetsTotal++
			if c.Met && !errored {
				r.TargetsMet++
			} else if !c.Met {
				r.Recommendations = append(r.Recommendations, recommend(res.Name, c))
			}
		}
		for _, e := range res.Errors {
			r.Recommendations = append(r.Recommendations, fmt.Sprintf("%s: investigate benchmark error: %s", res.Name, e))
		}
	}

	if r.TargetsTotal > 0 {
		r.OverallScore = float64(r.TargetsMet) / float64(r.TargetsTotal) * 100
	} else {
		r.OverallScore = 0
	}
}

var hints = map[string]string{
	DIM_LOAD_TIME:      "trim the payload or split it into several files",
	DIM_COMPRESSION:    "enable gzip and remove redundant data from the payload",
	DIM_MEMORY:         "avoid holding decoded payloads longer than needed",
	DIM_SPEED:          "check disk performance and keep payloads uncompressed where speed matters",
	DIM_CONCURRENT:     "reduce reader contention or cache decoded files",
	DIM_THROUGHPUT:     "batch small files together",
	DIM_CROSS_PLATFORM: "check that files are copied byte for byte",
	DIM_STRESS:         "look for intermittent write or read failures",
}

func recommend(dimension string, c Check) string {
	return fmt.Sprintf("%s: %s is %.2f %s against a target of %.2f %s; %s",
		dimension, c.Name, c.Value, c.Unit, c.Target, c.Unit, hints[dimension])
}

// Summary renders the report as plain text.
func (r *Report) Summary() string {
	sb := new(strings.Builder)
	fmt.Fprintf(sb, "PNT performance benchmark %s\n", r.RunID)
	fmt.Fprintf(sb, "started %s, took %s\n", r.StartedAt.Format(time.RFC3339), r.Duration.Round(time.Millisecond))

	for _, res := range r.Results {
		status := "PASS"
		if !res.TargetMet {
			status = "FAIL"
		}
		fmt.Fprintf(sb, "\n%s %s\n", status, res.Name)
		for _, c := range res.Checks {
			mark := "ok  "
			if !c.Met {
				mark = "miss"
			}
			fmt.Fprintf(sb, "  %s %-28s %s %s (target %s)\n", mark, c.Name, humanize.FtoaWithDigits(c.Value, 2), c.Unit, humanize.FtoaWithDigits(c.Target, 2))
		}
		for _, e := range res.Errors {
			fmt.Fprintf(sb, "  error %s\n", e)
		}
	}

	fmt.Fprintf(sb, "\ntargets met: %d of %d\n", r.TargetsMet, r.TargetsTotal)
	fmt.Fprintf(sb, "overall score: %.1f%% (pass at %.0f%%)\n", r.OverallScore, r.PassScore)
	if len(r.Recommendations) > 0 {
		fmt.Fprintf(sb, "\nrecommendations:\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(sb, "  - %s\n", rec)
		}
	}
	if r.Passed() {
		fmt.Fprintf(sb, "\nresult: PASSED\n")
	} else {
		fmt.Fprintf(sb, "\nresult: FAILED\n")
	}
	return sb.String()
}
