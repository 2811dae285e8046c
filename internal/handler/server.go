// Package handler implements the HTTP handlers of the travel log API.
// All handlers are methods on Server. They are split by resource
// (health.go, place.go, auth.go) but share the same Server struct.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/travel-log/internal/domain"
	"github.com/pkordes/travel-log/internal/middleware"
	"github.com/pkordes/travel-log/openapi"
)

// PlaceServicer defines the owner-scoped place operations the handlers use.
// It is declared here, in the consumer, so tests can inject a mock.
type PlaceServicer interface {
	List(ctx context.Context, ownerID uuid.UUID) ([]domain.PlaceRow, error)
	Create(ctx context.Context, ownerID uuid.UUID, row domain.PlaceRow) (domain.PlaceRow, error)
	Update(ctx context.Context, ownerID, id uuid.UUID, patch domain.PlacePatch) (domain.PlaceRow, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	Export(ctx context.Context, ownerID uuid.UUID) ([]byte, error)
	ExportCSV(ctx context.Context, ownerID uuid.UUID) ([]byte, error)
	Import(ctx context.Context, ownerID uuid.UUID, data []byte) (int, error)
}

// AuthServicer defines the account operations the handlers use.
type AuthServicer interface {
	SignUp(ctx context.Context, email, password string) (domain.SignUpResult, error)
	SignIn(ctx context.Context, email, password string) (domain.AuthSession, error)
	SignOut(ctx context.Context, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (domain.AuthSession, error)
	User(ctx context.Context, id uuid.UUID) (domain.Identity, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, password string) (domain.Identity, error)
	SendPasswordReset(ctx context.Context, email, redirectTo string) error
	Confirm(ctx context.Context, token string) (domain.AuthSession, error)
	ResendConfirmation(ctx context.Context, email, redirectTo string) error
	EmailExists(ctx context.Context, email string) (*bool, error)
}

// Server holds the dependencies of every handler.
type Server struct {
	places   PlaceServicer
	auth     AuthServicer
	verifier middleware.TokenVerifier
	log      *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
func NewServer(places PlaceServicer, auth AuthServicer, verifier middleware.TokenVerifier, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{places: places, auth: auth, verifier: verifier, log: log}
}

// Routes returns a router with every API endpoint. Cross-cutting middleware
// (request IDs, logging, CORS, body limits) is applied by the caller.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", serveOpenAPI)

	r.Route("/places", func(r chi.Router) {
		r.Use(middleware.RequireIdentity(s.verifier))
		r.Get("/", s.ListPlaces)
		r.Post("/", s.CreatePlace)
		r.Get("/export", s.ExportPlaces)
		r.Post("/import", s.ImportPlaces)
		r.Patch("/{id}", s.UpdatePlace)
		r.Delete("/{id}", s.DeletePlace)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.SignUp)
		r.Post("/signin", s.SignIn)
		r.Post("/token", s.RefreshToken)
		r.Post("/recover", s.SendPasswordReset)
		r.Post("/verify", s.VerifyEmail)
		r.Post("/resend", s.ResendConfirmation)
		r.Get("/email-exists", s.EmailExists)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireIdentity(s.verifier))
			r.Post("/signout", s.SignOut)
			r.Get("/user", s.GetUser)
			r.Put("/user", s.UpdatePassword)
		})
	})

	return r
}

func serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openapi.Document)
}

// callerID returns the owner scope of an authenticated request.
// RequireIdentity only admits tokens whose subject is a UUID.
func callerID(r *http.Request) (uuid.UUID, bool) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(ident.ID)
	return id, err == nil
}
