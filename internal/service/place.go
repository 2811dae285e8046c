// Package service contains the business logic of the travel log API.
// Services validate input, enforce the owner scope and orchestrate repo
// calls. No SQL lives here; services depend on repo interfaces.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/travel-log/internal/domain"
	"github.com/pkordes/travel-log/internal/metrics"
	"github.com/pkordes/travel-log/internal/repo"
)

// PlaceService implements the owner-scoped place operations.
type PlaceService struct {
	repo    repo.PlaceRepo
	metrics *metrics.Metrics
}

// NewPlaceService constructs a PlaceService. m may be nil.
func NewPlaceService(r repo.PlaceRepo, m *metrics.Metrics) *PlaceService {
	return &PlaceService{repo: r, metrics: m}
}

// List returns the owner's rows, newest first.
func (s *PlaceService) List(ctx context.Context, ownerID uuid.UUID) ([]domain.PlaceRow, error) {
	rows, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service.PlaceService.List: %w", err)
	}
	return rows, nil
}

// Create validates and stores a new row for ownerID. Any owner or id in the
// input is ignored.
func (s *PlaceService) Create(ctx context.Context, ownerID uuid.UUID, row domain.PlaceRow) (domain.PlaceRow, error) {
	row = normalizeRow(row)
	if row.Name == "" {
		err := fmt.Errorf("service.PlaceService.Create: %w: name is required", domain.ErrValidation)
		s.metrics.Place("create", err)
		return domain.PlaceRow{}, err
	}
	row.ID = ""
	row.OwnerID = ownerID.String()

	out, err := s.repo.Insert(ctx, row)
	s.metrics.Place("create", err)
	if err != nil {
		return domain.PlaceRow{}, fmt.Errorf("service.PlaceService.Create: %w", err)
	}
	return out, nil
}

// Update applies a partial update. An empty patch or a blank name is a
// validation error.
func (s *PlaceService) Update(ctx context.Context, ownerID, id uuid.UUID, patch domain.PlacePatch) (domain.PlaceRow, error) {
	patch, err := patch.Normalize()
	if err == nil && patch.IsEmpty() {
		err = fmt.Errorf("%w: no fields to update", domain.ErrValidation)
	}
	if err != nil {
		s.metrics.Place("update", err)
		return domain.PlaceRow{}, fmt.Errorf("service.PlaceService.Update: %w", err)
	}

	out, err := s.repo.Update(ctx, ownerID, id, patch)
	s.metrics.Place("update", err)
	if err != nil {
		return domain.PlaceRow{}, fmt.Errorf("service.PlaceService.Update: %w", err)
	}
	return out, nil
}

// Delete removes one of the owner's rows.
func (s *PlaceService) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	err := s.repo.Delete(ctx, ownerID, id)
	s.metrics.Place("delete", err)
	if err != nil {
		return fmt.Errorf("service.PlaceService.Delete: %w", err)
	}
	return nil
}

// Export renders the owner's collection in the interchange format.
func (s *PlaceService) Export(ctx context.Context, ownerID uuid.UUID) ([]byte, error) {
	places, err := s.ownerPlaces(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service.PlaceService.Export: %w", err)
	}
	return domain.ExportPlaces(places)
}

// ExportCSV renders the owner's collection as a CSV table.
func (s *PlaceService) ExportCSV(ctx context.Context, ownerID uuid.UUID) ([]byte, error) {
	places, err := s.ownerPlaces(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service.PlaceService.ExportCSV: %w", err)
	}
	return domain.ExportCSV(places)
}

func (s *PlaceService) ownerPlaces(ctx context.Context, ownerID uuid.UUID) ([]domain.Place, error) {
	rows, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	places := make([]domain.Place, 0, len(rows))
	for _, r := range rows {
		places = append(places, domain.RowToPlace(r))
	}
	return places, nil
}

// Import replaces the owner's collection with an import file, in file order.
// A payload that is not a JSON array fails with domain.ErrParse and leaves
// the stored rows untouched. Elements are never dropped.
func (s *PlaceService) Import(ctx context.Context, ownerID uuid.UUID, data []byte) (int, error) {
	places, err := domain.ParseImport(data)
	if err != nil {
		s.metrics.Place("import", err)
		return 0, fmt.Errorf("service.PlaceService.Import: %w", err)
	}
	rows := make([]domain.PlaceRow, 0, len(places))
	for _, p := range places {
		rows = append(rows, domain.PlaceToRow(p, ownerID.String()))
	}

	n, err := s.repo.ReplaceAll(ctx, ownerID, rows)
	s.metrics.Place("import", err)
	if err != nil {
		return 0, fmt.Errorf("service.PlaceService.Import: %w", err)
	}
	s.metrics.Imported(n)
	return n, nil
}

// normalizeRow applies the same cleaning rules as the tracker's form path.
func normalizeRow(r domain.PlaceRow) domain.PlaceRow {
	r.Name = strings.TrimSpace(r.Name)
	r.Country = strings.TrimSpace(r.Country)
	r.CountryCode = strings.ToUpper(strings.TrimSpace(r.CountryCode))
	r.City = strings.TrimSpace(r.City)
	r.Status = string(domain.ParseStatus(r.Status))
	r.DateVisited = strings.TrimSpace(r.DateVisited)
	r.Tags = domain.TagList(domain.CleanTags(r.Tags))
	return r
}
