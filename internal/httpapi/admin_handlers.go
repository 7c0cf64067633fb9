package httpapi

import (
	"net/http"
	"strings"

	"polyrec.org/internal/identity"
)

func (a *API) handleAdminPending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}

	pending, err := a.identity.PendingUsers(r.Context(), principal)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	items := make([]map[string]any, 0, len(pending))
	for _, p := range pending {
		user, profile := viewOf(p)
		items = append(items, map[string]any{"user": user, "profile": profile})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleAdminUserResource dispatches /v1/admin/users/{id} and
// /v1/admin/users/{id}/approve.
func (a *API) handleAdminUserResource(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/admin/users/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if id, found := strings.CutSuffix(path, "/approve"); found {
		id = strings.TrimSuffix(id, "/")
		if id == "" || strings.Contains(id, "/") {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.approveUser(w, r, principal, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodDelete:
		a.denyUser(w, r, principal, path)
	default:
		methodNotAllowed(w, r, http.MethodDelete)
	}
}

func (a *API) approveUser(w http.ResponseWriter, r *http.Request, principal identity.Principal, id string) {
	user, err := a.identity.Approve(r.Context(), principal, id)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"active":   user.Active,
	})
}

func (a *API) denyUser(w http.ResponseWriter, r *http.Request, principal identity.Principal, id string) {
	if _, err := a.identity.Deny(r.Context(), principal, id); err != nil {
		handleIdentityError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}

	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := a.auditLog.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}
