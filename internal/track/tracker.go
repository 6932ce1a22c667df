// internal/track/tracker.go
package track

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"turntrack/internal/blob"
	"turntrack/internal/diff"
	"turntrack/internal/errs"
	"turntrack/internal/gitroot"
)

// Tracker observes file mutations across one turn and produces a
// git-style unified diff of their net effect. It never mutates files
// itself, only reads them, and is driven by a single caller: observe
// with OnPatchBegin before each mutation batch, collect with
// UnifiedDiff on demand.
type Tracker struct {
	pathToID    map[string]uuid.UUID
	baselines   map[uuid.UUID]*BaselineFileInfo
	currentPath map[uuid.UUID]string

	roots  *gitroot.Resolver
	engine *diff.Engine
	logger *zap.Logger
}

type Option func(*Tracker)

func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithRootResolver shares a repository-root cache across trackers.
func WithRootResolver(roots *gitroot.Resolver) Option {
	return func(t *Tracker) {
		t.roots = roots
	}
}

func New(opts ...Option) *Tracker {
	t := &Tracker{
		pathToID:    make(map[string]uuid.UUID),
		baselines:   make(map[uuid.UUID]*BaselineFileInfo),
		currentPath: make(map[uuid.UUID]string),
		roots:       gitroot.NewResolver(),
		engine:      diff.NewEngine(3),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnPatchBegin must be called before a batch of mutations is applied.
// It captures a baseline for every path not seen this turn and
// re-points identities for renames. Entries are processed in order, so
// a second rename of the same file inside one batch wins and its
// intermediate path never gets its own baseline.
func (t *Tracker) OnPatchBegin(batch []PathChange) error {
	for _, pc := range batch {
		if err := t.ensureBaseline(pc.Path); err != nil {
			return fmt.Errorf("observing %s: %w", pc.Path, err)
		}

		up, ok := pc.Change.(Update)
		if !ok || up.MovePath == "" || up.MovePath == pc.Path {
			continue
		}
		id := t.pathToID[pc.Path]
		delete(t.pathToID, pc.Path)
		t.pathToID[up.MovePath] = id
		t.currentPath[id] = up.MovePath
		t.logger.Debug("rename observed",
			zap.String("from", pc.Path),
			zap.String("to", up.MovePath))
	}
	return nil
}

// ensureBaseline mints an identity and snapshots disk state the first
// time a path is seen. Repeat calls never overwrite the baseline.
func (t *Tracker) ensureBaseline(path string) error {
	if _, ok := t.pathToID[path]; ok {
		return nil
	}

	state, err := readState(path)
	if err != nil {
		return err
	}

	id := uuid.New()
	t.pathToID[path] = id
	t.currentPath[id] = path
	t.baselines[id] = &BaselineFileInfo{
		Path:    path,
		Content: state.content,
		Mode:    state.mode,
		OID:     state.oid,
	}

	t.logger.Debug("baseline captured",
		zap.String("path", path),
		zap.String("oid", blob.Abbrev(state.oid)),
		zap.Bool("exists", state.exists))
	return nil
}

// IdentityOf returns the identity currently mapped to path.
func (t *Tracker) IdentityOf(path string) (uuid.UUID, bool) {
	id, ok := t.pathToID[path]
	return id, ok
}

// CurrentPath returns where an identity currently lives, following any
// renames observed this turn.
func (t *Tracker) CurrentPath(id uuid.UUID) (string, error) {
	path, ok := t.currentPath[id]
	if !ok {
		return "", errs.NotFound(fmt.Sprintf("identity %s", id))
	}
	return path, nil
}

// Baseline returns the first-touch snapshot for an identity. The
// returned snapshot must be treated as read-only.
func (t *Tracker) Baseline(id uuid.UUID) (*BaselineFileInfo, error) {
	base, ok := t.baselines[id]
	if !ok {
		return nil, errs.NotFound(fmt.Sprintf("identity %s", id))
	}
	return base, nil
}

// Identities lists everything tracked this turn, ordered by current
// path for stable iteration.
func (t *Tracker) Identities() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(t.currentPath))
	for id := range t.currentPath {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool {
		return t.currentPath[ids[a]] < t.currentPath[ids[b]]
	})
	return ids
}
