// Package tracker owns the in-memory place collection and routes every
// mutation to the store that backs the current session: local storage while
// anonymous, the remote row store while authenticated.
//
// The collection is only ever replaced wholesale, never edited in place, so
// any snapshot handed out by Places stays consistent. Remote calls run
// without the lock held; their results are applied only if the session has
// not changed in the meantime.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pkordes/travel-log/internal/domain"
	"github.com/pkordes/travel-log/internal/geo"
	"github.com/pkordes/travel-log/internal/localstore"
	"github.com/pkordes/travel-log/internal/view"
)

// DefaultStorageKey is the local storage key of the anonymous collection.
const DefaultStorageKey = "travel-tracker-places-v1"

// RemoteStore is the owner-scoped row store used while authenticated.
type RemoteStore interface {
	ListPlaces(ctx context.Context, ownerID string) ([]domain.PlaceRow, error)
	InsertPlace(ctx context.Context, row domain.PlaceRow) (domain.PlaceRow, error)
	UpdatePlace(ctx context.Context, ownerID, id string, patch domain.PlacePatch) (domain.PlaceRow, error)
	DeletePlace(ctx context.Context, ownerID, id string) error
}

// IdentitySource reports who is signed in. ok is false when nobody is.
type IdentitySource interface {
	CurrentIdentity(ctx context.Context) (ident domain.Identity, ok bool, err error)
}

// BoundaryLoader produces the country boundary index.
type BoundaryLoader interface {
	LoadIndex(ctx context.Context) (*geo.Index, error)
}

// Config holds the values that used to be package globals.
type Config struct {
	StorageKey    string
	Seed          func() []domain.Place
	DefaultCoords domain.Coords
}

// Deps are the collaborators of a Tracker. Remote, Identity and Boundaries
// may be nil, in which case the tracker stays anonymous and attribution
// uses the name fallback.
type Deps struct {
	Local      localstore.Store
	Remote     RemoteStore
	Identity   IdentitySource
	Boundaries BoundaryLoader
	Logger     *slog.Logger
	Notify     Notifier
}

// Tracker is safe for concurrent use.
type Tracker struct {
	cfg        Config
	local      localstore.Store
	remote     RemoteStore
	identity   IdentitySource
	boundaries BoundaryLoader
	log        *slog.Logger
	notify     Notifier

	mu       sync.Mutex
	session  Session
	epoch    uint64
	places   []domain.Place
	index    *geo.Index
	selected string
	coords   domain.Coords
	inflight map[string]struct{}

	// persistMu orders local writes so the last one always carries the
	// latest snapshot.
	persistMu sync.Mutex
}

// New constructs a Tracker. It starts Anonymous with an empty collection;
// call Start to load the initial state.
func New(cfg Config, deps Deps) *Tracker {
	if cfg.StorageKey == "" {
		cfg.StorageKey = DefaultStorageKey
	}
	if cfg.Seed == nil {
		cfg.Seed = domain.SeedPlaces
	}
	if cfg.DefaultCoords == (domain.Coords{}) {
		cfg.DefaultCoords = domain.DefaultCoords
	}
	if deps.Local == nil {
		deps.Local = localstore.NewMemoryStore()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Notify == nil {
		deps.Notify = func(Notice) {}
	}
	return &Tracker{
		cfg:        cfg,
		local:      deps.Local,
		remote:     deps.Remote,
		identity:   deps.Identity,
		boundaries: deps.Boundaries,
		log:        deps.Logger,
		notify:     deps.Notify,
		places:     []domain.Place{},
		coords:     cfg.DefaultCoords,
		inflight:   make(map[string]struct{}),
	}
}

// Start determines the initial session from the identity source and loads
// the matching collection while the boundary index is fetched alongside.
// A failed boundary fetch only degrades attribution; a failed identity query
// leaves the tracker Anonymous. The returned error is the collection load
// failure, if any, which has already been sent to the notifier.
func (t *Tracker) Start(ctx context.Context) error {
	ident, signedIn := t.currentIdentity(ctx)

	var g errgroup.Group
	if t.boundaries != nil {
		g.Go(func() error {
			ix, err := t.boundaries.LoadIndex(ctx)
			if err != nil {
				t.log.WarnContext(ctx, "boundary index unavailable, using country names", "error", err)
				return nil
			}
			t.mu.Lock()
			t.index = ix
			t.mu.Unlock()
			return nil
		})
	}
	g.Go(func() error {
		if signedIn {
			return t.SignedIn(ctx, ident.ID)
		}
		t.SignedOut(ctx)
		return nil
	})
	return g.Wait()
}

func (t *Tracker) currentIdentity(ctx context.Context) (domain.Identity, bool) {
	if t.identity == nil || t.remote == nil {
		return domain.Identity{}, false
	}
	ident, ok, err := t.identity.CurrentIdentity(ctx)
	if err != nil {
		t.log.WarnContext(ctx, "identity lookup failed, starting anonymous", "error", err)
		return domain.Identity{}, false
	}
	return ident, ok && ident.ID != ""
}

// transitionLocked switches session and returns the new epoch. Callers hold t.mu.
// Any remote call issued under the previous epoch will be dropped on return.
func (t *Tracker) transitionLocked(next Session) uint64 {
	t.log.Info("session transition", "from", t.session.String(), "to", next.String())
	t.session = next
	t.epoch++
	t.selected = ""
	t.inflight = make(map[string]struct{})
	return t.epoch
}

// SignedIn switches to Authenticated(ownerID). The anonymous collection is
// discarded, not merged, and local storage is left untouched. The remote
// collection replaces memory once it arrives.
func (t *Tracker) SignedIn(ctx context.Context, ownerID string) error {
	if t.remote == nil {
		return fmt.Errorf("tracker.Tracker.SignedIn: %w: no remote store configured", domain.ErrAuth)
	}
	t.mu.Lock()
	epoch := t.transitionLocked(Authenticated(ownerID))
	t.places = []domain.Place{}
	t.mu.Unlock()

	rows, err := t.remote.ListPlaces(ctx, ownerID)
	if err != nil {
		err = fmt.Errorf("tracker.Tracker.SignedIn: %w: %w", domain.ErrRemote, err)
		t.mu.Lock()
		stale := t.epoch != epoch
		t.mu.Unlock()
		if stale {
			t.log.DebugContext(ctx, "dropping stale collection load failure", "owner_id", ownerID, "error", err)
			return nil
		}
		return t.fail(ctx, "load places", err)
	}
	places := make([]domain.Place, 0, len(rows))
	for _, r := range rows {
		places = append(places, domain.RowToPlace(r))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.epoch != epoch {
		t.log.DebugContext(ctx, "dropping stale remote collection", "owner_id", ownerID)
		return nil
	}
	t.places = places
	return nil
}

// SignedOut switches to Anonymous and reloads local storage, or the seed
// collection when local storage has nothing.
func (t *Tracker) SignedOut(ctx context.Context) {
	t.mu.Lock()
	epoch := t.transitionLocked(Anonymous())
	t.mu.Unlock()

	places := t.loadLocal(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.epoch == epoch {
		t.places = places
	}
}

// HandleIdentityChange is the listener for auth state changes. A nil
// identity means signed out. Repeated notifications for the current owner
// are ignored.
func (t *Tracker) HandleIdentityChange(ctx context.Context, ident *domain.Identity) {
	t.mu.Lock()
	cur := t.session
	t.mu.Unlock()

	switch {
	case ident == nil || ident.ID == "":
		if cur.IsAuthenticated() {
			t.SignedOut(ctx)
		}
	case ident.ID != cur.OwnerID:
		// Failure is already reported through the notifier.
		_ = t.SignedIn(ctx, ident.ID)
	}
}

// loadLocal reads the anonymous collection. An absent or blank entry yields
// the seed; so does an unreadable one, which is logged. "[]" stays empty.
func (t *Tracker) loadLocal(ctx context.Context) []domain.Place {
	data, ok, err := t.local.Get(ctx, t.cfg.StorageKey)
	if err != nil {
		t.log.WarnContext(ctx, "local storage read failed, using seed", "error", err)
		return t.cfg.Seed()
	}
	if !ok || strings.TrimSpace(string(data)) == "" {
		return t.cfg.Seed()
	}
	places, err := domain.ParseImport(data)
	if err != nil {
		t.log.WarnContext(ctx, "local storage is corrupt, using seed", "key", t.cfg.StorageKey, "error", err)
		return t.cfg.Seed()
	}
	return places
}

// persist rewrites local storage with the current collection when Anonymous.
// Write failures are logged and otherwise ignored.
func (t *Tracker) persist(ctx context.Context) {
	t.persistMu.Lock()
	defer t.persistMu.Unlock()

	t.mu.Lock()
	if t.session.IsAuthenticated() {
		t.mu.Unlock()
		return
	}
	snapshot := t.places
	t.mu.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		t.log.ErrorContext(ctx, "encode local collection", "error", err)
		return
	}
	if err := t.local.Set(ctx, t.cfg.StorageKey, data); err != nil {
		t.log.ErrorContext(ctx, "local storage write failed", "key", t.cfg.StorageKey, "error", err)
	}
}

// fail logs err, sends it to the notifier and returns it.
func (t *Tracker) fail(ctx context.Context, op string, err error) error {
	t.log.WarnContext(ctx, "operation failed", "op", op, "error", err)
	t.notify(Notice{Op: op, Err: err})
	return err
}

// Session returns the current persistence mode.
func (t *Tracker) Session() Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

// Places returns a snapshot of the collection, newest first.
func (t *Tracker) Places() []domain.Place {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.places)
}

// Index returns the boundary index, or nil if it is not loaded.
func (t *Tracker) Index() *geo.Index {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.index
}

func (t *Tracker) snapshot() ([]domain.Place, *geo.Index) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.places, t.index
}

// Filter applies the text and status filters to the current collection.
func (t *Tracker) Filter(query, status string) []domain.Place {
	places, _ := t.snapshot()
	return view.Filter(places, query, status)
}

// Stats computes the aggregate counts of the current collection.
func (t *Tracker) Stats() view.Stats {
	places, ix := t.snapshot()
	return view.ComputeStats(places, ix)
}

// VisitedCodes is the set of country codes to shade on the map.
func (t *Tracker) VisitedCodes() map[string]struct{} {
	places, ix := t.snapshot()
	return geo.VisitedCodes(places, ix)
}

// Select marks id as the selected place. An empty id clears the selection.
func (t *Tracker) Select(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id == "" {
		t.selected = ""
		return nil
	}
	if indexOf(t.places, id) < 0 {
		return fmt.Errorf("tracker.Tracker.Select: %w", domain.ErrNotFound)
	}
	t.selected = id
	return nil
}

// Selected returns the selected place, if any.
func (t *Tracker) Selected() (domain.Place, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i := indexOf(t.places, t.selected); i >= 0 {
		return t.places[i], true
	}
	return domain.Place{}, false
}

// SetCoords records the last-clicked map position, used as the default
// location of the next created place.
func (t *Tracker) SetCoords(c domain.Coords) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.coords = c
}

// Coords returns the last-clicked map position.
func (t *Tracker) Coords() domain.Coords {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.coords
}

func indexOf(places []domain.Place, id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(places, func(p domain.Place) bool { return p.ID == id })
}
