package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/schmitthub/setup-servers/internal/logger"
)

// FileExt is the extension of setup state files.
const FileExt = ".state"

// DefaultLockTimeout bounds how long Lock waits for another process.
const DefaultLockTimeout = 30 * time.Second

// Path returns <setupDir>/<setupName>.state.
func Path(setupDir, setupName string) string {
	return filepath.Join(setupDir, setupName+FileExt)
}

// Store loads and saves the state file of one setup.
type Store struct {
	path        string
	schema      Schema
	lockTimeout time.Duration
}

// NewStore creates a Store for the state file at path.
func NewStore(path string, schema Schema) *Store {
	return &Store{
		path:        path,
		schema:      schema,
		lockTimeout: DefaultLockTimeout,
	}
}

// WithLockTimeout overrides the lock wait bound.
func (s *Store) WithLockTimeout(d time.Duration) *Store {
	s.lockTimeout = d
	return s
}

// Path returns the state file path.
func (s *Store) Path() string { return s.path }

// Exists reports whether the state file exists.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	if err == nil {
		return true
	}
	if !errors.Is(err, os.ErrNotExist) {
		logger.Debug().Err(err).Str("path", s.path).Msg("unexpected error checking state file")
	}
	return false
}

// Load reads an existing state file. It returns an error wrapping
// os.ErrNotExist when the file is missing.
func (s *Store) Load() (*SetupState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading state file %s: %w", s.path, err)
	}

	st := newSetupState(s.path, s.schema)
	if err := yaml.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", s.path, err)
	}
	if st.Fields == nil {
		st.Fields = map[string]string{}
	}
	if err := st.validate(); err != nil {
		return nil, fmt.Errorf("invalid state file %s: %w", s.path, err)
	}
	return st, nil
}

// LoadOrCreate reads the state file, or writes and returns a default New
// record when it does not exist yet.
func (s *Store) LoadOrCreate() (*SetupState, error) {
	st, err := s.Load()
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	st = newSetupState(s.path, s.schema)
	if err := s.Save(st); err != nil {
		return nil, err
	}
	logger.Debug().Str("path", s.path).Msg("created setup state")
	return st, nil
}

// Save replaces the state file with the full record.
func (s *Store) Save(st *SetupState) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding state %s: %w", s.path, err)
	}
	return atomicWriteFile(s.path, data, 0o644)
}

// Lock acquires an exclusive advisory lock on <path>.lock so that one process
// at a time runs the load, mutate and save cycle of a setup. The returned
// function releases the lock.
func (s *Store) Lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("creating setup directory for %s: %w", s.path, err)
	}
	fl := flock.New(s.path + ".lock")

	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquiring state lock for %s: %w", s.path, err)
	}
	if !locked {
		return nil, fmt.Errorf("timed out acquiring state lock for %s", s.path)
	}
	return func() { _ = fl.Unlock() }, nil
}

// Close moves an existing setup to the terminal Closed status.
func (s *Store) Close(ctx context.Context) (*SetupState, error) {
	unlock, err := s.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	st, err := s.Load()
	if err != nil {
		return nil, err
	}
	if err := st.CheckOpen(); err != nil {
		return nil, err
	}
	st.Status = StatusClosed
	if err := s.Save(st); err != nil {
		return nil, err
	}
	return st, nil
}

// atomicWriteFile writes data to path using a temp-file + fsync + rename
// strategy so that readers never observe a truncated or partial file.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".setup-state-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file for %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return fmt.Errorf("setting permissions on temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming temp file to %s: %w", path, err)
	}

	success = true
	return nil
}
