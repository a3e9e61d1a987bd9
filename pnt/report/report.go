// Package report writes the artifacts a validation or benchmark run leaves
// behind: a JSON results file and a plain-text summary.
package report

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/indrora/tusk/internal/json"
	"github.com/indrora/tusk/pnt/ioutil"
)

const (
	RESULTS_SUFFIX = "_results.json"
	SUMMARY_SUFFIX = "_summary.txt"
)

// Artifacts names the files a run produced.
type Artifacts struct {
	Results string
	Summary string
}

// WriteArtifacts writes results as indented JSON to <dir>/<name>_results.json
// and summary to <dir>/<name>_summary.txt, creating dir if needed. Each file
// is published atomically.
func WriteArtifacts(dir, name string, results any, summary string) (*Artifacts, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create output directory %s", dir)
	}

	body, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode results")
	}
	body = append(body, '\n')

	a := &Artifacts{
		Results: filepath.Join(dir, name+RESULTS_SUFFIX),
		Summary: filepath.Join(dir, name+SUMMARY_SUFFIX),
	}
	if err := ioutil.WriteFileAtomic(a.Results, body, 0644); err != nil {
		return nil, errors.Wrapf(err, "failed to write %s", a.Results)
	}
	if err := ioutil.WriteFileAtomic(a.Summary, []byte(summary), 0644); err != nil {
		return nil, errors.Wrapf(err, "failed to write %s", a.Summary)
	}
	return a, nil
}
