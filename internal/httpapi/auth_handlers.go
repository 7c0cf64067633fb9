package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"polyrec.org/internal/audit"
	"polyrec.org/internal/identity"
)

type registerRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Department string `json:"department"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token       string       `json:"token,omitempty"`
	Destination string       `json:"destination"`
	User        userView     `json:"user"`
	Profile     *profileView `json:"profile,omitempty"`
}

type userView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Active    bool      `json:"active"`
	Staff     bool      `json:"staff"`
	CreatedAt time.Time `json:"created_at"`
}

type profileView struct {
	Department string `json:"department"`
	Approved   bool   `json:"approved"`
}

func viewOf(p identity.Principal) (userView, *profileView) {
	u := userView{
		ID:        p.User.ID,
		Username:  p.User.Username,
		Active:    p.User.Active,
		Staff:     p.User.Staff,
		CreatedAt: p.User.CreatedAt,
	}
	if p.Profile == nil {
		return u, nil
	}
	return u, &profileView{
		Department: string(p.Profile.Department),
		Approved:   p.Profile.Approved,
	}
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	principal, err := a.identity.Register(r.Context(), req.Username, req.Password, req.Department)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "identity.register", map[string]any{
		"username":   principal.User.Username,
		"department": string(principal.Profile.Department),
	})

	user, profile := viewOf(principal)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "pending_approval",
		"user":    user,
		"profile": profile,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "username and password are required")
		return
	}

	token, principal, err := a.identity.Login(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, identity.ErrPendingApproval):
		// Credentials are valid but the account awaits approval: the caller
		// gets routed to the pending page and receives no session token.
	default:
		handleIdentityError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "identity.login", map[string]any{
		"username":    principal.User.Username,
		"destination": string(identity.RouteAfterLogin(principal)),
	})

	user, profile := viewOf(principal)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:       token,
		Destination: string(identity.RouteAfterLogin(principal)),
		User:        user,
		Profile:     profile,
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthenticated")
		return
	}
	user, profile := viewOf(principal)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":        user,
		"profile":     profile,
		"destination": string(identity.RouteAfterLogin(principal)),
	})
}
