package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"polyrec.org/internal/audit"
	"polyrec.org/internal/identity"
	"polyrec.org/internal/ledger"
	"polyrec.org/internal/records"
)

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("limit must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max))
	}
	return val, nil
}

func handleIdentityError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrUsernameTaken):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, identity.ErrDepartmentFull):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, identity.ErrUnauthorized), errors.Is(err, identity.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, identity.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, identity.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func handleLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidTerm),
		errors.Is(err, ledger.ErrInvalidCourse):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrTxConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func handleRecordsError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, records.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, records.ErrAdmissionTaken):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, records.ErrNotFound), errors.Is(err, ledger.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// requireDepartment gates a handler behind department access. The denial is
// generic and is sent before any resource lookup, so a caller without access
// cannot probe which records exist.
func (a *API) requireDepartment(w http.ResponseWriter, r *http.Request, dept identity.Department) (identity.Principal, bool) {
	p, ok := identity.PrincipalFromContext(r.Context())
	if !ok || !identity.Authorize(p, dept) {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return identity.Principal{}, false
	}
	return p, true
}

func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) (identity.Principal, bool) {
	p, ok := identity.PrincipalFromContext(r.Context())
	if !ok || !identity.AuthorizeAdmin(p) {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return identity.Principal{}, false
	}
	return p, true
}
