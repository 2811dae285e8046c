package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkordes/travel-log/internal/domain"
)

// ListPlaces returns the owner's rows, newest first.
func (c *Client) ListPlaces(ctx context.Context, ownerID string) ([]domain.PlaceRow, error) {
	if err := c.checkOwner(ownerID); err != nil {
		return nil, fmt.Errorf("client.Client.ListPlaces: %w", err)
	}
	var rows []domain.PlaceRow
	if err := c.do(ctx, http.MethodGet, "/places", nil, &rows, true); err != nil {
		return nil, fmt.Errorf("client.Client.ListPlaces: %w", err)
	}
	if rows == nil {
		rows = []domain.PlaceRow{}
	}
	return rows, nil
}

// InsertPlace stores row and returns it as stored, with its new id.
func (c *Client) InsertPlace(ctx context.Context, row domain.PlaceRow) (domain.PlaceRow, error) {
	if err := c.checkOwner(row.OwnerID); err != nil {
		return domain.PlaceRow{}, fmt.Errorf("client.Client.InsertPlace: %w", err)
	}
	row.ID = ""
	var out domain.PlaceRow
	if err := c.do(ctx, http.MethodPost, "/places", row, &out, true); err != nil {
		return domain.PlaceRow{}, fmt.Errorf("client.Client.InsertPlace: %w", err)
	}
	return out, nil
}

// UpdatePlace sends only the fields present in patch.
func (c *Client) UpdatePlace(ctx context.Context, ownerID, id string, patch domain.PlacePatch) (domain.PlaceRow, error) {
	if err := c.checkOwner(ownerID); err != nil {
		return domain.PlaceRow{}, fmt.Errorf("client.Client.UpdatePlace: %w", err)
	}
	var out domain.PlaceRow
	if err := c.do(ctx, http.MethodPatch, "/places/"+url.PathEscape(id), patch, &out, true); err != nil {
		return domain.PlaceRow{}, fmt.Errorf("client.Client.UpdatePlace: %w", err)
	}
	return out, nil
}

// DeletePlace removes one row.
func (c *Client) DeletePlace(ctx context.Context, ownerID, id string) error {
	if err := c.checkOwner(ownerID); err != nil {
		return fmt.Errorf("client.Client.DeletePlace: %w", err)
	}
	if err := c.do(ctx, http.MethodDelete, "/places/"+url.PathEscape(id), nil, nil, true); err != nil {
		return fmt.Errorf("client.Client.DeletePlace: %w", err)
	}
	return nil
}

// ExportPlaces downloads the server-side export of the caller's rows.
func (c *Client) ExportPlaces(ctx context.Context) ([]byte, error) {
	var data []byte
	if err := c.do(ctx, http.MethodGet, "/places/export", nil, &data, true); err != nil {
		return nil, fmt.Errorf("client.Client.ExportPlaces: %w", err)
	}
	return data, nil
}

// ImportPlaces replaces every stored row of the caller with the contents of
// an import file and returns the number stored.
func (c *Client) ImportPlaces(ctx context.Context, data []byte) (int, error) {
	var res struct {
		Imported int `json:"imported"`
	}
	if err := c.do(ctx, http.MethodPost, "/places/import", data, &res, true); err != nil {
		return 0, fmt.Errorf("client.Client.ImportPlaces: %w", err)
	}
	return res.Imported, nil
}

// checkOwner refuses calls scoped to an owner other than the signed-in user.
// The server scopes by token subject, so a mismatch would silently act on
// the wrong collection.
func (c *Client) checkOwner(ownerID string) error {
	sess, ok := c.Session()
	if !ok {
		return fmt.Errorf("%w: not signed in", domain.ErrAuth)
	}
	if ownerID != "" && sess.User.ID != "" && ownerID != sess.User.ID {
		return fmt.Errorf("%w: session belongs to another user", domain.ErrAuth)
	}
	return nil
}
