package validator

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/indrora/tusk/pnt/format"
)

// Report aggregates the outcomes of a batch run.
type Report struct {
	Files         []*Outcome `json:"files"`
	FilesChecked  int        `json:"files_checked"`
	FilesValid    int        `json:"files_valid"`
	FilesInvalid  int        `json:"files_invalid"`
	TotalErrors   int        `json:"total_errors"`
	TotalWarnings int        `json:"total_warnings"`
}

func (r *Report) add(o *Outcome) {
	r.Files = append(r.Files, o)
	r.FilesChecked++
	if o.Valid {
		r.FilesValid++
	} else {
		r.FilesInvalid++
	}
	r.TotalErrors += len(o.Errors)
	r.TotalWarnings += len(o.Warnings)
}

// Passed reports whether every checked file is valid. A run that found no
// files passes.
func (r *Report) Passed() bool {
	return r.FilesInvalid == 0
}

// Summary renders the report as plain text.
func (r *Report) Summary() string {
	sb := new(strings.Builder)
	fmt.Fprintf(sb, "PNT format validation\n")
	fmt.Fprintf(sb, "files checked:  %d\n", r.FilesChecked)
	fmt.Fprintf(sb, "files valid:    %d\n", r.FilesValid)
	fmt.Fprintf(sb, "files invalid:  %d\n", r.FilesInvalid)
	fmt.Fprintf(sb, "total errors:   %d\n", r.TotalErrors)
	fmt.Fprintf(sb, "total warnings: %d\n", r.TotalWarnings)
	if r.FilesChecked == 0 {
		fmt.Fprintf(sb, "\nno %s files found\n", format.FILE_EXT)
	}

	for _, o := range r.Files {
		status := "PASS"
		if !o.Valid {
			status = "FAIL"
		}
		fmt.Fprintf(sb, "\n%s %s (%s)\n", status, o.Path, humanize.IBytes(uint64(o.Size)))
		for _, issue := range o.Errors {
			fmt.Fprintf(sb, "  error   %s\n", issue)
		}
		for _, issue := range o.Warnings {
			fmt.Fprintf(sb, "  warning %s\n", issue)
		}
	}

	if r.Passed() {
		fmt.Fprintf(sb, "\nresult: PASSED\n")
	} else {
		fmt.Fprintf(sb, "\nresult: FAILED\n")
	}
	return sb.String()
}

// ValidatePath validates a single file, or every .pnt file in a directory
// (descending into subdirectories when recursive is set). Files are checked
// in path order and a bad file never stops the batch. The error is only
// for a directory that cannot be listed.
func (v *Validator) ValidatePath(path string, recursive bool) (*Report, error) {
	report := &Report{Files: []*Outcome{}}

	st, err := os.Stat(path)
	if err != nil || !st.IsDir() {
		report.add(v.ValidateFile(path))
		return report, nil
	}

	paths, err := findFiles(path, recursive)
	if err != nil {
		return nil, err
	}
	v.log.Debug("validating directory", "path", path, "files", len(paths), "recursive", recursive)
	for _, p := range paths {
		report.add(v.ValidateFile(p))
	}
	return report, nil
}

// Merge folds other into r.
func (r *Report) Merge(other *Report) {
	for _, o := range other.Files {
		r.add(o)
	}
}

func findFiles(root string, recursive bool) ([]string, error) {
	var paths []string

	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list %s", root)
		}
		for _, entry := range entries {
			if !entry.IsDir() && filepath.Ext(entry.Name()) == format.FILE_EXT {
				paths = append(paths, filepath.Join(root, entry.Name()))
			}
		}
	} else {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(p) == format.FILE_EXT {
				paths = append(paths, p)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to walk %s", root)
		}
	}

	sort.Strings(paths)
	return paths, nil
}
