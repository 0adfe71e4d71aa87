// Package filecheckpoint stores checkpoint records as JSON files in a single
// model directory.
package filecheckpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/pggan-go/pggan/internal/cmn/fileutil"
	"github.com/pggan-go/pggan/internal/core"
)

// TimestampFormat is the UTC timestamp embedded in file names.
const TimestampFormat = "20060102T150405.000000000Z"

var fileNamePattern = regexp.MustCompile(`^(gen|dis|combined)_R(\d+)_T(\d+)_(\d{8}T\d{6}\.\d{9}Z)\.json$`)

var _ core.CheckpointStore = (*Store)(nil)

// Entry describes a checkpoint file by its name alone.
type Entry struct {
	Path    string
	Role    core.Role
	Level   int
	Tick    int64
	SavedAt time.Time
}

// Store manages checkpoint files.
// Each record is written to {dir}/{role}_R{level}_T{tick}_{timestamp}.json.
type Store struct {
	dir string
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for records without a SavedAt time.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a Store rooted at dir. The directory is created on first save.
func New(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the model directory.
func (s *Store) Dir() string {
	return s.dir
}

// FileName returns the file name for a record of role at (level, tick) saved at ts.
func FileName(role core.Role, level int, tick int64, ts time.Time) string {
	return fmt.Sprintf("%s_R%d_T%d_%s.json", role, level, tick, ts.UTC().Format(TimestampFormat))
}

// ParseFileName extracts the identity of a checkpoint from its file name.
func ParseFileName(name string) (Entry, error) {
	m := fileNamePattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return Entry{}, fmt.Errorf("not a checkpoint file name: %q", name)
	}
	level, err := strconv.Atoi(m[2])
	if err != nil {
		return Entry{}, fmt.Errorf("invalid level in %q: %w", name, err)
	}
	tick, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid tick in %q: %w", name, err)
	}
	savedAt, err := time.Parse(TimestampFormat, m[4])
	if err != nil {
		return Entry{}, fmt.Errorf("invalid timestamp in %q: %w", name, err)
	}
	return Entry{
		Path:    name,
		Role:    core.Role(m[1]),
		Level:   level,
		Tick:    tick,
		SavedAt: savedAt,
	}, nil
}

// Save atomically writes rec and returns its path. A zero SavedAt is
// filled in from the store clock.
func (s *Store) Save(_ context.Context, rec *core.Record) (string, error) {
	if rec == nil {
		return "", errors.New("record is nil")
	}
	if rec.Role.Roles() == nil {
		return "", fmt.Errorf("unknown record role %q", rec.Role)
	}
	if rec.SavedAt.IsZero() {
		rec.SavedAt = s.now()
	}
	rec.SavedAt = rec.SavedAt.UTC()

	path := filepath.Join(s.dir, FileName(rec.Role, rec.Level(), rec.GlobalTick, rec.SavedAt))
	if err := fileutil.WriteJSONAtomic(path, rec, 0o600); err != nil {
		return "", fmt.Errorf("failed to write checkpoint %s: %w", path, err)
	}
	return path, nil
}

// Exists reports whether any record of role was written at (level, tick),
// whatever its timestamp.
func (s *Store) Exists(_ context.Context, role core.Role, level int, tick int64) (bool, error) {
	pattern := filepath.Join(globEscape(s.dir), fmt.Sprintf("%s_R%d_T%d_*.json", role, level, tick))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return false, fmt.Errorf("failed to look up checkpoints: %w", err)
	}
	return len(matches) > 0, nil
}

// Load reads and validates the record at path.
func (s *Store) Load(_ context.Context, path string) (*core.Record, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrCheckpointNotFound, path)
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var rec core.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrInvalidRecord, path, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &rec, nil
}

// List returns the checkpoint files of role ordered by tick, then save time.
// An empty role lists every checkpoint.
func (s *Store) List(_ context.Context, role core.Role) ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read model directory: %w", err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		e, err := ParseFileName(de.Name())
		if err != nil {
			continue
		}
		if role != "" && e.Role != role {
			continue
		}
		e.Path = filepath.Join(s.dir, de.Name())
		entries = append(entries, e)
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		if a.Tick != b.Tick {
			if a.Tick < b.Tick {
				return -1
			}
			return 1
		}
		return a.SavedAt.Compare(b.SavedAt)
	})
	return entries, nil
}

// Latest returns the path of the newest record of role.
func (s *Store) Latest(ctx context.Context, role core.Role) (string, error) {
	entries, err := s.List(ctx, role)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("%w: no %s checkpoint in %s", core.ErrCheckpointNotFound, role, s.dir)
	}
	return entries[len(entries)-1].Path, nil
}

var globMeta = regexp.MustCompile(`[*?\[\\]`)

// globEscape quotes glob metacharacters in a literal path.
func globEscape(path string) string {
	return globMeta.ReplaceAllString(path, `\$0`)
}
