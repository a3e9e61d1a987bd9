package ioutil

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// AtomicFile is written next to its destination and renamed over it on
// Commit, so readers of the destination path only ever see a complete file.
type AtomicFile struct {
	*os.File
	path string
	perm os.FileMode
	done bool
}

func CreateAtomic(path string, perm os.FileMode) (*AtomicFile, error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temp file")
	}
	return &AtomicFile{File: f, path: path, perm: perm}, nil
}

// Commit flushes the temp file to disk and publishes it at the destination.
func (a *AtomicFile) Commit() error {
	if a.done {
		return errors.New("atomic file already finished")
	}
	a.done = true

	tmp := a.File.Name()
	if err := a.File.Sync(); err != nil {
		a.File.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "failed to sync")
	}
	if err := a.File.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "failed to close")
	}
	if err := os.Chmod(tmp, a.perm); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "failed to set mode")
	}
	if err := os.Rename(tmp, a.path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "failed to publish %s", a.path)
	}
	return nil
}

// Abort discards the temp file. It is a no-op after Commit, so it is safe to
// defer.
func (a *AtomicFile) Abort() {
	if a.done {
		return
	}
	a.done = true
	a.File.Close()
	os.Remove(a.File.Name())
}

// WriteFileAtomic is os.WriteFile with the temp-and-rename discipline.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	f, err := CreateAtomic(path, perm)
	if err != nil {
		return err
	}
	defer f.Abort()
	if _, err = f.Write(data); err != nil {
		return errors.Wrap(err, "failed to write temp file")
	}
	return f.Commit()
}
