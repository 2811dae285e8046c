package tracker

import (
	"context"
	"fmt"
	"slices"

	"github.com/pkordes/travel-log/internal/domain"
)

// Create adds a place built from form input.
//
// Anonymous: the place is prepended and local storage rewritten.
// Authenticated: an optimistic copy with a temporary id is prepended first,
// then replaced by the stored row once the insert succeeds. If the insert
// fails the optimistic copy stays, and the returned error wraps ErrRemote.
func (t *Tracker) Create(ctx context.Context, in domain.PlaceInput) (domain.Place, error) {
	t.mu.Lock()
	at := t.coords
	t.mu.Unlock()

	p, err := domain.NewPlace(in, at)
	if err != nil {
		return domain.Place{}, err
	}

	t.mu.Lock()
	sess, epoch := t.session, t.epoch
	t.places = prepend(t.places, p)
	if !sess.IsAuthenticated() {
		t.mu.Unlock()
		t.persist(ctx)
		return p, nil
	}
	t.inflight[p.ID] = struct{}{}
	t.mu.Unlock()

	row, err := t.remote.InsertPlace(ctx, domain.PlaceToRow(p, sess.OwnerID))

	t.mu.Lock()
	if t.epoch != epoch {
		t.mu.Unlock()
		t.log.DebugContext(ctx, "dropping stale insert result", "temp_id", p.ID)
		return p, nil
	}
	delete(t.inflight, p.ID)
	if err != nil {
		t.mu.Unlock()
		return p, t.fail(ctx, "create", fmt.Errorf("tracker.Tracker.Create: %w: %w", domain.ErrRemote, err))
	}
	saved := domain.RowToPlace(row)
	t.places = replace(t.places, p.ID, saved)
	if t.selected == p.ID {
		t.selected = saved.ID
	}
	t.mu.Unlock()
	return saved, nil
}

// Update applies a partial edit to the place with the given id.
//
// Anonymous: the record is replaced in memory and local storage rewritten.
// Authenticated: only the fields present in patch are sent; memory is updated
// from the returned row. On failure the record is left as it was.
// A second edit or delete for an id with a call already in flight fails with
// ErrBusy.
func (t *Tracker) Update(ctx context.Context, id string, patch domain.PlacePatch) (domain.Place, error) {
	patch, err := patch.Normalize()
	if err != nil {
		return domain.Place{}, err
	}

	t.mu.Lock()
	i := indexOf(t.places, id)
	if i < 0 {
		t.mu.Unlock()
		return domain.Place{}, fmt.Errorf("tracker.Tracker.Update: %w", domain.ErrNotFound)
	}
	current := t.places[i]
	if patch.IsEmpty() {
		t.mu.Unlock()
		return current, nil
	}
	sess, epoch := t.session, t.epoch
	if !sess.IsAuthenticated() {
		updated := patch.Apply(current)
		t.places = replace(t.places, id, updated)
		t.mu.Unlock()
		t.persist(ctx)
		return updated, nil
	}
	if _, busy := t.inflight[id]; busy {
		t.mu.Unlock()
		return domain.Place{}, fmt.Errorf("tracker.Tracker.Update: %w", domain.ErrBusy)
	}
	t.inflight[id] = struct{}{}
	t.mu.Unlock()

	row, err := t.remote.UpdatePlace(ctx, sess.OwnerID, id, patch)

	t.mu.Lock()
	if t.epoch != epoch {
		t.mu.Unlock()
		t.log.DebugContext(ctx, "dropping stale update result", "id", id)
		return current, nil
	}
	delete(t.inflight, id)
	if err != nil {
		t.mu.Unlock()
		return current, t.fail(ctx, "update", fmt.Errorf("tracker.Tracker.Update: %w: %w", domain.ErrRemote, err))
	}
	saved := domain.RowToPlace(row)
	t.places = replace(t.places, id, saved)
	t.mu.Unlock()
	return saved, nil
}

// ToggleStatus flips a place between visited and wishlist.
func (t *Tracker) ToggleStatus(ctx context.Context, id string) (domain.Place, error) {
	t.mu.Lock()
	i := indexOf(t.places, id)
	var next domain.Status
	if i >= 0 {
		next = domain.StatusVisited
		if t.places[i].Status == domain.StatusVisited {
			next = domain.StatusWishlist
		}
	}
	t.mu.Unlock()
	if i < 0 {
		return domain.Place{}, fmt.Errorf("tracker.Tracker.ToggleStatus: %w", domain.ErrNotFound)
	}
	return t.Update(ctx, id, domain.PlacePatch{Status: &next})
}

// Delete removes the place with the given id and clears the selection if it
// pointed there. While authenticated the place leaves memory only after the
// remote delete succeeds.
func (t *Tracker) Delete(ctx context.Context, id string) error {
	t.mu.Lock()
	if indexOf(t.places, id) < 0 {
		t.mu.Unlock()
		return fmt.Errorf("tracker.Tracker.Delete: %w", domain.ErrNotFound)
	}
	sess, epoch := t.session, t.epoch
	if !sess.IsAuthenticated() {
		t.removeLocked(id)
		t.mu.Unlock()
		t.persist(ctx)
		return nil
	}
	if _, busy := t.inflight[id]; busy {
		t.mu.Unlock()
		return fmt.Errorf("tracker.Tracker.Delete: %w", domain.ErrBusy)
	}
	t.inflight[id] = struct{}{}
	t.mu.Unlock()

	err := t.remote.DeletePlace(ctx, sess.OwnerID, id)

	t.mu.Lock()
	if t.epoch != epoch {
		t.mu.Unlock()
		t.log.DebugContext(ctx, "dropping stale delete result", "id", id)
		return nil
	}
	delete(t.inflight, id)
	if err != nil {
		t.mu.Unlock()
		return t.fail(ctx, "delete", fmt.Errorf("tracker.Tracker.Delete: %w: %w", domain.ErrRemote, err))
	}
	t.removeLocked(id)
	t.mu.Unlock()
	return nil
}

func (t *Tracker) removeLocked(id string) {
	t.places = slices.DeleteFunc(slices.Clone(t.places), func(p domain.Place) bool { return p.ID == id })
	if t.selected == id {
		t.selected = ""
	}
}

// Import replaces the collection with the contents of an import file and
// returns the number of places loaded. A payload that is not a JSON array
// fails with ErrParse and changes nothing. While authenticated only memory
// is replaced; nothing is sent to the remote store.
func (t *Tracker) Import(ctx context.Context, data []byte) (int, error) {
	places, err := domain.ParseImport(data)
	if err != nil {
		return 0, t.fail(ctx, "import", fmt.Errorf("tracker.Tracker.Import: %w", err))
	}

	t.mu.Lock()
	t.places = places
	if indexOf(places, t.selected) < 0 {
		t.selected = ""
	}
	t.mu.Unlock()

	t.persist(ctx)
	return len(places), nil
}

// Export serializes the current collection in the interchange format.
func (t *Tracker) Export() ([]byte, error) {
	places, _ := t.snapshot()
	return domain.ExportPlaces(places)
}

// ExportCSV renders the current collection as a CSV table.
func (t *Tracker) ExportCSV() ([]byte, error) {
	places, _ := t.snapshot()
	return domain.ExportCSV(places)
}

func prepend(places []domain.Place, p domain.Place) []domain.Place {
	out := make([]domain.Place, 0, len(places)+1)
	out = append(out, p)
	return append(out, places...)
}

func replace(places []domain.Place, id string, p domain.Place) []domain.Place {
	out := slices.Clone(places)
	if i := indexOf(out, id); i >= 0 {
		out[i] = p
	}
	return out
}
