package marker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/go-ps"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/s2l-bootstrap/internal/logger"
)

// DefaultFilename is the lock file created in the working directory.
const DefaultFilename = ".s2l-bootstrap.lock"

// filePermissions restricts the lock to the current user.
const filePermissions = 0o600

// procNameLimit is the length Linux truncates process names to.
const procNameLimit = 15

var (
	// ErrNotFound is returned when no marker exists.
	ErrNotFound = errors.New("marker not found")
	// ErrAlreadyRunning is returned when a live bootstrap owns the marker.
	ErrAlreadyRunning = errors.New("another bootstrap is already running here")
)

// Record describes the process holding the marker.
type Record struct {
	PID        int       `yaml:"pid"`
	Executable string    `yaml:"executable"`
	Hostname   string    `yaml:"hostname"`
	Username   string    `yaml:"username"`
	StartedAt  time.Time `yaml:"started_at"`
}

// FileRepository stores the marker record on disk.
type FileRepository struct {
	// path is the filesystem location of the marker.
	path string
	// mu serialises access from this process.
	mu sync.Mutex
}

// NewFileRepository creates a repository for the marker at path.
func NewFileRepository(path string) *FileRepository {
	if path == "" {
		path = DefaultFilename
	}

	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the marker location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the current record.
func (r *FileRepository) Load(_ context.Context) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load()
}

// Acquire writes a record for this process. A live foreign record yields
// ErrAlreadyRunning, a stale one is replaced.
func (r *FileRepository) Acquire(ctx context.Context) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.load()

	switch {
	case err == nil:
		if IsAlive(existing) {
			return existing, fmt.Errorf("%w (pid %d, started %s)",
				ErrAlreadyRunning, existing.PID, existing.StartedAt.Format(time.RFC3339))
		}

		logger.InfoKV(ctx, "Removing stale bootstrap marker", "pid", existing.PID, "path", r.path)

		if err = os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale marker: %w", err)
		}
	case errors.Is(err, ErrNotFound):
	default:
		// An unreadable marker is treated like a stale one.
		logger.WarnKV(ctx, "Ignoring unreadable bootstrap marker", "path", r.path, "error", err)

		_ = os.Remove(r.path)
	}

	record, err := Current()
	if err != nil {
		return nil, err
	}

	data, err := yaml.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode marker: %w", err)
	}

	// O_EXCL keeps a concurrent run that raced past the check above out.
	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePermissions)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, ErrAlreadyRunning
		}

		return nil, fmt.Errorf("create marker: %w", err)
	}

	if _, err = f.Write(data); err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("write marker: %w", err)
	}

	if err = f.Close(); err != nil {
		return nil, fmt.Errorf("close marker: %w", err)
	}

	return record, nil
}

// Release removes the marker if this process owns it.
func (r *FileRepository) Release(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, err := r.load()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}

		return err
	}

	if record.PID != os.Getpid() {
		return nil
	}

	if err = os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove marker: %w", err)
	}

	return nil
}

func (r *FileRepository) load() (*Record, error) {
	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read marker: %w", err)
	}

	var record Record
	if err = yaml.Unmarshal(contents, &record); err != nil {
		return nil, fmt.Errorf("decode marker: %w", err)
	}

	return &record, nil
}

// Current describes this process.
func Current() (*Record, error) {
	executable, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	var username string
	if u, userErr := user.Current(); userErr == nil {
		username = u.Username
	}

	return &Record{
		PID:        os.Getpid(),
		Executable: filepath.Base(executable),
		Hostname:   hostname,
		Username:   username,
		StartedAt:  time.Now().UTC().Truncate(time.Second),
	}, nil
}

// IsAlive reports whether the record's PID still runs the same executable.
func IsAlive(record *Record) bool {
	if record == nil || record.PID <= 0 {
		return false
	}

	process, err := ps.FindProcess(record.PID)
	if err != nil || process == nil {
		return false
	}

	if record.Executable == "" {
		return true
	}

	return sameExecutable(record.Executable, process.Executable())
}

// sameExecutable compares names, tolerating the kernel's truncation.
func sameExecutable(recorded, running string) bool {
	if recorded == running {
		return true
	}

	if len(running) == procNameLimit {
		return strings.HasPrefix(recorded, running)
	}

	return false
}
