// Package source fetches repositories into scoped temporary workspaces.
package source

import (
	"os"
	"sync"

	"github.com/cockroachdb/errors"
)

// Workspace is a temporary directory owned by exactly one pipeline attempt.
// Release removes it and is safe to call more than once.
type Workspace struct {
	dir  string
	once sync.Once
	err  error
}

// AcquireWorkspace creates a fresh directory under baseDir (os.TempDir when empty).
func AcquireWorkspace(baseDir string) (*Workspace, error) {
	dir, err := os.MkdirTemp(baseDir, "readmegen-*")
	if err != nil {
		return nil, errors.Wrap(err, "create workspace")
	}
	return &Workspace{dir: dir}, nil
}

func (w *Workspace) Dir() string { return w.dir }

func (w *Workspace) Release() error {
	w.once.Do(func() {
		if err := os.RemoveAll(w.dir); err != nil {
			w.err = errors.Wrapf(err, "remove workspace %s", w.dir)
		}
	})
	return w.err
}
