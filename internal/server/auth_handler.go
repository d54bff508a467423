package server

import (
	"encoding/json"
	"net/http"

	"github.com/marcus/jobgate/internal/config"
)

// AuthHandler issues operator tokens against the configured credential
// set.
type AuthHandler struct {
	operators map[string]string
	auth      *config.AuthConfig
	jwt       *JWTService
}

// NewAuthHandler creates an auth handler. operators maps usernames to
// bcrypt password hashes.
func NewAuthHandler(operators map[string]string, auth *config.AuthConfig, jwt *JWTService) *AuthHandler {
	return &AuthHandler{operators: operators, auth: auth, jwt: jwt}
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Token handles POST /auth/token. Invalid credentials always produce the
// same response, so the endpoint does not leak which usernames exist.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	hash, ok := h.operators[req.Username]
	if !ok || !h.auth.VerifyPassword(req.Password, hash) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.jwt.GenerateToken(req.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(tokenResponse{Token: token})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
