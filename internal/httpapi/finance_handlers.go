package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"polyrec.org/internal/identity"
	"polyrec.org/internal/ledger"
	"polyrec.org/internal/records"
	"polyrec.org/internal/stream"
)

type recordPaymentRequest struct {
	StudentID string          `json:"student_id"`
	Amount    decimal.Decimal `json:"amount"`
	Term      int             `json:"term"`
	Reference string          `json:"reference"`
}

type feeStructureRequest struct {
	Course string          `json:"course"`
	Sem1   decimal.Decimal `json:"sem1"`
	Sem2   decimal.Decimal `json:"sem2"`
	Sem3   decimal.Decimal `json:"sem3"`
}

func (a *API) handlePayments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.recordPayment(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) recordPayment(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requireDepartment(w, r, identity.DeptFinance)
	if !ok {
		return
	}

	var req recordPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	studentID := strings.TrimSpace(req.StudentID)
	if studentID == "" {
		writeError(w, r, http.StatusBadRequest, "student_id is required")
		return
	}
	reference := strings.TrimSpace(req.Reference)
	if len(reference) > 128 {
		writeError(w, r, http.StatusBadRequest, "reference too long")
		return
	}

	p, err := a.ledger.RecordPayment(r.Context(), principal.User.ID, studentID, req.Amount, ledger.Term(req.Term), reference)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}

	if a.stream != nil {
		event := stream.PaymentEvent{
			PaymentID: p.ID,
			StudentID: p.StudentID,
			Amount:    p.Amount,
			Term:      int(p.Term),
			ReceiptNo: p.ReceiptNo,
			Timestamp: time.Now().UTC(),
		}
		if st, err := a.records.Student(r.Context(), p.StudentID); err == nil {
			event.StudentName = st.Name
		}
		a.stream.Publish(event)
	}

	w.Header().Set("Location", "/v1/finance/receipts/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) handleRecentPayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireDepartment(w, r, identity.DeptFinance); !ok {
		return
	}

	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 20, 1, 200)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, err := a.ledger.RecentPayments(r.Context(), limit)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleReceipt serves /v1/finance/receipts/{paymentID}: the payment plus
// the student and the balance as of now, enough to print a receipt.
func (a *API) handleReceipt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireDepartment(w, r, identity.DeptFinance); !ok {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/finance/receipts/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	p, err := a.ledger.GetPayment(r.Context(), id)
	if err != nil {
		handleLedgerError(w, r, err)
		return
	}
	resp := map[string]any{"payment": p, "receipt_no": p.ReceiptNo}
	if st, err := a.records.Student(r.Context(), p.StudentID); err == nil {
		resp["student"] = st
	}
	if b, err := a.ledger.GetBalance(r.Context(), p.StudentID); err == nil {
		resp["balance"] = b
		resp["total_due"] = b.TotalDue()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleFinanceStudent dispatches /v1/finance/students/{id}/balance and
// /v1/finance/students/{id}/payments.
func (a *API) handleFinanceStudent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireDepartment(w, r, identity.DeptFinance); !ok {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/finance/students/")
	switch {
	case strings.HasSuffix(path, "/balance"):
		id := strings.TrimSuffix(strings.TrimSuffix(path, "/balance"), "/")
		if id == "" || strings.Contains(id, "/") {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		b, err := a.ledger.GetBalance(r.Context(), id)
		if err != nil {
			handleLedgerError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"balance":   b,
			"total_due": b.TotalDue(),
		})
	case strings.HasSuffix(path, "/payments"):
		id := strings.TrimSuffix(strings.TrimSuffix(path, "/payments"), "/")
		if id == "" || strings.Contains(id, "/") {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		if _, err := a.records.Student(r.Context(), id); err != nil {
			if errors.Is(err, records.ErrNotFound) {
				writeError(w, r, http.StatusNotFound, "student not found")
				return
			}
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		items, err := a.ledger.ListPayments(r.Context(), id)
		if err != nil {
			handleLedgerError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleFeeStructures(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireDepartment(w, r, identity.DeptFinance); !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		items, err := a.ledger.FeeStructures(r.Context())
		if err != nil {
			handleLedgerError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPut:
		var req feeStructureRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		course := strings.TrimSpace(req.Course)
		if course == "" {
			writeError(w, r, http.StatusBadRequest, "course is required")
			return
		}
		if req.Sem1.IsNegative() || req.Sem2.IsNegative() || req.Sem3.IsNegative() {
			writeError(w, r, http.StatusBadRequest, "fee amounts must not be negative")
			return
		}
		fs := ledger.FeeStructure{Course: course, Sem1: req.Sem1, Sem2: req.Sem2, Sem3: req.Sem3}
		if err := a.ledger.PutFeeStructure(r.Context(), fs); err != nil {
			handleLedgerError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, fs)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}
