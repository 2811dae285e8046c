package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pkordes/travel-log/internal/domain"
)

// PlaceRepo is the owner-scoped row store. Every operation filters on
// owner_id, so a row owned by someone else behaves as if it did not exist.
type PlaceRepo interface {
	// ListByOwner returns the owner's rows, newest created first.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.PlaceRow, error)

	// Insert stores row under row.OwnerID and returns it with the
	// database-assigned id and created_at. row.ID is ignored.
	Insert(ctx context.Context, row domain.PlaceRow) (domain.PlaceRow, error)

	// Update changes only the fields present in patch.
	// Returns domain.ErrNotFound when no such row belongs to ownerID.
	Update(ctx context.Context, ownerID, id uuid.UUID, patch domain.PlacePatch) (domain.PlaceRow, error)

	// Delete removes one row. Returns domain.ErrNotFound when no such row
	// belongs to ownerID.
	Delete(ctx context.Context, ownerID, id uuid.UUID) error

	// ReplaceAll atomically swaps the owner's rows for rows, keeping their
	// order as the newest-first order. Returns the number of rows stored.
	ReplaceAll(ctx context.Context, ownerID uuid.UUID, rows []domain.PlaceRow) (int, error)
}

type pgPlaceRepo struct {
	db db
}

// NewPlaceRepo constructs a PlaceRepo. Pass *pgxpool.Pool in production.
func NewPlaceRepo(db db) PlaceRepo {
	return &pgPlaceRepo{db: db}
}

// placeColumns casts uuid and jsonb to text so a row scans into plain
// strings; tags are decoded afterwards.
const placeColumns = `id::text, owner_id::text, name, country, country_code, city, lat, lng,
		status, date_visited, rating, notes, tags::text, created_at`

func (r *pgPlaceRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.PlaceRow, error) {
	q := `
		SELECT ` + placeColumns + `
		FROM places
		WHERE owner_id = @owner_id
		ORDER BY created_at DESC, id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"owner_id": ownerID})
	if err != nil {
		return nil, fmt.Errorf("repo.PlaceRepo.ListByOwner: %w", err)
	}
	defer rows.Close()

	out := []domain.PlaceRow{}
	for rows.Next() {
		p, err := scanPlaceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.PlaceRepo.ListByOwner: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.PlaceRepo.ListByOwner: rows: %w", err)
	}
	return out, nil
}

func (r *pgPlaceRepo) Insert(ctx context.Context, row domain.PlaceRow) (domain.PlaceRow, error) {
	out, err := insertPlace(ctx, r.db, row, nil)
	if err != nil {
		return domain.PlaceRow{}, fmt.Errorf("repo.PlaceRepo.Insert: %w", err)
	}
	return out, nil
}

// insertPlace inserts one row. createdAt overrides now() when non-nil.
func insertPlace(ctx context.Context, db db, row domain.PlaceRow, createdAt *time.Time) (domain.PlaceRow, error) {
	q := `
		INSERT INTO places (owner_id, name, country, country_code, city, lat, lng,
		                    status, date_visited, rating, notes, tags, created_at)
		VALUES (@owner_id, @name, @country, @country_code, @city, @lat, @lng,
		        @status, @date_visited, @rating, @notes, CAST(@tags AS jsonb),
		        COALESCE(CAST(@created_at AS timestamptz), now()))
		RETURNING ` + placeColumns

	tags, err := encodeTags(row.Tags)
	if err != nil {
		return domain.PlaceRow{}, err
	}
	args := pgx.NamedArgs{
		"owner_id":     row.OwnerID,
		"name":         row.Name,
		"country":      row.Country,
		"country_code": row.CountryCode,
		"city":         row.City,
		"lat":          row.Lat,
		"lng":          row.Lng,
		"status":       string(domain.ParseStatus(row.Status)),
		"date_visited": row.DateVisited,
		"rating":       row.Rating,
		"notes":        row.Notes,
		"tags":         tags,
		"created_at":   createdAt, // nil becomes NULL
	}
	return scanPlaceRow(db.QueryRow(ctx, q, args))
}

func (r *pgPlaceRepo) Update(ctx context.Context, ownerID, id uuid.UUID, patch domain.PlacePatch) (domain.PlaceRow, error) {
	sets, args, err := patchAssignments(patch)
	if err != nil {
		return domain.PlaceRow{}, fmt.Errorf("repo.PlaceRepo.Update: %w", err)
	}
	if len(sets) == 0 {
		return domain.PlaceRow{}, fmt.Errorf("repo.PlaceRepo.Update: %w: empty patch", domain.ErrValidation)
	}
	args["id"] = id
	args["owner_id"] = ownerID

	q := `
		UPDATE places
		SET ` + strings.Join(sets, ", ") + `, updated_at = now()
		WHERE id = @id AND owner_id = @owner_id
		RETURNING ` + placeColumns

	out, err := scanPlaceRow(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.PlaceRow{}, fmt.Errorf("repo.PlaceRepo.Update: %w", err)
	}
	return out, nil
}

// patchAssignments turns the present fields of patch into SET clauses.
// Column names come from this fixed list, never from input.
func patchAssignments(patch domain.PlacePatch) ([]string, pgx.NamedArgs, error) {
	var sets []string
	args := pgx.NamedArgs{}
	set := func(col string, v any) {
		sets = append(sets, col+" = @"+col)
		args[col] = v
	}
	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.Country != nil {
		set("country", *patch.Country)
	}
	if patch.CountryCode != nil {
		set("country_code", *patch.CountryCode)
	}
	if patch.City != nil {
		set("city", *patch.City)
	}
	if patch.Lat != nil {
		set("lat", *patch.Lat)
	}
	if patch.Lng != nil {
		set("lng", *patch.Lng)
	}
	if patch.Status != nil {
		set("status", string(domain.ParseStatus(string(*patch.Status))))
	}
	if patch.DateVisited != nil {
		set("date_visited", *patch.DateVisited)
	}
	if patch.Rating != nil {
		set("rating", *patch.Rating)
	}
	if patch.Notes != nil {
		set("notes", *patch.Notes)
	}
	if patch.Tags != nil {
		tags, err := encodeTags(*patch.Tags)
		if err != nil {
			return nil, nil, err
		}
		sets = append(sets, "tags = CAST(@tags AS jsonb)")
		args["tags"] = tags
	}
	return sets, args, nil
}

func (r *pgPlaceRepo) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	const q = `DELETE FROM places WHERE id = @id AND owner_id = @owner_id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id, "owner_id": ownerID})
	if err != nil {
		return fmt.Errorf("repo.PlaceRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.PlaceRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgPlaceRepo) ReplaceAll(ctx context.Context, ownerID uuid.UUID, rows []domain.PlaceRow) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("repo.PlaceRepo.ReplaceAll: begin: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM places WHERE owner_id = @owner_id`, pgx.NamedArgs{"owner_id": ownerID}); err != nil {
		return 0, fmt.Errorf("repo.PlaceRepo.ReplaceAll: clear: %w", err)
	}

	// Rows inserted in one transaction share now(); spread created_at one
	// microsecond apart so ListByOwner returns them in the given order.
	base := time.Now().UTC()
	for i, row := range rows {
		row.OwnerID = ownerID.String()
		at := base.Add(-time.Duration(i) * time.Microsecond)
		if _, err := insertPlace(ctx, tx, row, &at); err != nil {
			return 0, fmt.Errorf("repo.PlaceRepo.ReplaceAll: insert %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("repo.PlaceRepo.ReplaceAll: commit: %w", err)
	}
	return len(rows), nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func scanPlaceRow(s scanner) (domain.PlaceRow, error) {
	var (
		p    domain.PlaceRow
		tags string
	)
	err := s.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Country, &p.CountryCode, &p.City, &p.Lat, &p.Lng,
		&p.Status, &p.DateVisited, &p.Rating, &p.Notes, &tags, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PlaceRow{}, domain.ErrNotFound
		}
		return domain.PlaceRow{}, err
	}
	p.Tags, err = domain.DecodeTags([]byte(tags))
	if err != nil {
		return domain.PlaceRow{}, err
	}
	return p, nil
}
