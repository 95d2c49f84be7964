// Package build drives one isle build: it walks the server module graph
// through the hook chain, collects the client closure from the analysis
// worker and publishes the result under the output directory.
package build

import (
	stderrors "errors"
	"path/filepath"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/afero"

	"github.com/conneroisu/isle/internal/errors"
)

// stagingPrefix names the per-build directory outputs are written to before
// publication.
const stagingPrefix = ".staging-"

// Session is the state of a single build. Nothing in it outlives the build.
type Session struct {
	ID ulid.ULID

	fs      afero.Fs
	staging string

	mu       sync.Mutex
	shutdown []func() error
	once     sync.Once
	closeErr error
}

// NewSession creates the staging directory for a new build under outDir.
func NewSession(fs afero.Fs, outDir string) (*Session, error) {
	id := ulid.Make()
	staging := filepath.Join(outDir, stagingPrefix+id.String())

	if err := fs.MkdirAll(staging, 0o755); err != nil {
		return nil, errors.WrapIO(err, "STAGING_FAILED", staging)
	}

	s := &Session{ID: id, fs: fs, staging: staging}
	s.OnShutdown(func() error {
		return fs.RemoveAll(staging)
	})
	return s, nil
}

// StagingDir returns the directory outputs are staged in.
func (s *Session) StagingDir() string {
	return s.staging
}

// OnShutdown registers fn to run when the session closes. Hooks run in
// reverse registration order.
func (s *Session) OnShutdown(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = append(s.shutdown, fn)
}

// Close runs the shutdown hooks once. Later calls return the first result.
func (s *Session) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		hooks := s.shutdown
		s.shutdown = nil
		s.mu.Unlock()

		var errs []error
		for i := len(hooks) - 1; i >= 0; i-- {
			if err := hooks[i](); err != nil {
				errs = append(errs, err)
			}
		}
		s.closeErr = stderrors.Join(errs...)
	})
	return s.closeErr
}
