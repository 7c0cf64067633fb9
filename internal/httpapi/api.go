package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"polyrec.org/internal/audit"
	"polyrec.org/internal/identity"
	"polyrec.org/internal/ledger"
	"polyrec.org/internal/obs"
	"polyrec.org/internal/records"
	"polyrec.org/internal/stream"
)

// ReadyProbe checks readiness, typically a DB ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the identity, records and fee ledger services.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	identity *identity.Service
	records  *records.Service
	ledger   ledger.Service
	auditLog audit.Store
	stream   *stream.Stream
}

func New(rp ReadyProbe, version string, idsvc *identity.Service, rsvc *records.Service, lsvc ledger.Service, auditLog audit.Store, st *stream.Stream) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		identity:   idsvc,
		records:    rsvc,
		ledger:     lsvc,
		auditLog:   auditLog,
		stream:     st,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// registration approval workflow
	a.mux.HandleFunc("/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/me", a.handleMe)

	// admin surface
	a.mux.HandleFunc("/v1/admin/pending", a.handleAdminPending)
	a.mux.HandleFunc("/v1/admin/users/", a.handleAdminUserResource)
	a.mux.HandleFunc("/v1/admin/audit", a.handleAdminAudit)

	// finance
	a.mux.HandleFunc("/v1/finance/payments", a.handlePayments)
	a.mux.HandleFunc("/v1/finance/payments/recent", a.handleRecentPayments)
	a.mux.HandleFunc("/v1/finance/receipts/", a.handleReceipt)
	a.mux.HandleFunc("/v1/finance/students/", a.handleFinanceStudent)
	a.mux.HandleFunc("/v1/finance/fees", a.handleFeeStructures)
	a.mux.HandleFunc("/v1/finance/stream", a.StreamPayments)

	// admissions
	a.mux.HandleFunc("/v1/admissions/students", a.handleStudentsCollection)
	a.mux.HandleFunc("/v1/admissions/students/", a.handleStudentResource)

	// examinations
	a.mux.HandleFunc("/v1/examinations/results", a.handleExamResults)
	a.mux.HandleFunc("/v1/examinations/students/", a.handleExamStudent)

	// stores
	a.mux.HandleFunc("/v1/stores/items", a.handleStockCollection)
	a.mux.HandleFunc("/v1/stores/items/", a.handleStockResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the http.Handler for the server: mux wrapped with
// authentication and request metrics.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.withAuth(a.mux))
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "polyrec-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "polyrec-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
