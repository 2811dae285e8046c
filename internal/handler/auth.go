package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkordes/travel-log/internal/domain"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type recoverRequest struct {
	Email      string `json:"email"`
	RedirectTo string `json:"redirect_to"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

// EmailExistsResponse is the body of GET /auth/email-exists. Exists is null
// when the server does not disclose registrations.
type EmailExistsResponse struct {
	Exists *bool `json:"exists"`
}

// SignUp handles POST /auth/signup.
func (s *Server) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.auth.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SignIn handles POST /auth/signin.
func (s *Server) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// SignOut handles POST /auth/signout. The body is optional; when it names a
// refresh token, that token is revoked.
func (s *Server) SignOut(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req refreshRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeError(w, r, fmt.Errorf("%w: request body must be valid JSON", domain.ErrParse))
			return
		}
	}
	if err := s.auth.SignOut(r.Context(), req.RefreshToken); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RefreshToken handles POST /auth/token.
func (s *Server) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// GetUser handles GET /auth/user.
func (s *Server) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := callerID(r)
	if !ok {
		writeErrorBody(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}
	ident, err := s.auth.User(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

// UpdatePassword handles PUT /auth/user.
func (s *Server) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := callerID(r)
	if !ok {
		writeErrorBody(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}
	var req passwordRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ident, err := s.auth.UpdatePassword(r.Context(), id, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

// SendPasswordReset handles POST /auth/recover. It answers 204 whether or
// not the email is registered.
func (s *Server) SendPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req recoverRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.auth.SendPasswordReset(r.Context(), req.Email, req.RedirectTo); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VerifyEmail handles POST /auth/verify. It confirms the account named by a
// confirmation link token and answers with a fresh session.
func (s *Server) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.auth.Confirm(r.Context(), req.Token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// ResendConfirmation handles POST /auth/resend. Like /auth/recover it
// answers 204 whether or not the email is registered.
func (s *Server) ResendConfirmation(w http.ResponseWriter, r *http.Request) {
	var req recoverRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.auth.ResendConfirmation(r.Context(), req.Email, req.RedirectTo); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EmailExists handles GET /auth/email-exists?email=.
func (s *Server) EmailExists(w http.ResponseWriter, r *http.Request) {
	exists, err := s.auth.EmailExists(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EmailExistsResponse{Exists: exists})
}
