package httpapi

import (
	"net/http"
	"strings"

	"polyrec.org/internal/identity"
	"polyrec.org/internal/records"
)

type admitStudentRequest struct {
	Name           string `json:"name"`
	AdmissionNo    string `json:"admission_no"`
	IDBirthNo      string `json:"id_birth_no"`
	Phone          string `json:"phone"`
	Sex            string `json:"sex"`
	Course         string `json:"course"`
	LastSchool     string `json:"last_school"`
	ParentContacts string `json:"parent_contacts"`
	Religion       string `json:"religion"`
	YearEnrolled   int    `json:"year_enrolled"`
}

type examResultRequest struct {
	StudentID   string `json:"student_id"`
	Subject     string `json:"subject"`
	Marks       int    `json:"marks"`
	YearOfStudy int    `json:"year_of_study"`
	Semester    int    `json:"semester"`
}

type stockItemRequest struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Category string `json:"category"`
}

func (a *API) handleStudentsCollection(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requireDepartment(w, r, identity.DeptAdmissions)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req admitStudentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		st, err := a.records.AdmitStudent(r.Context(), principal.User.ID, records.Student{
			Name:           req.Name,
			AdmissionNo:    req.AdmissionNo,
			IDBirthNo:      req.IDBirthNo,
			Phone:          req.Phone,
			Sex:            req.Sex,
			Course:         req.Course,
			LastSchool:     req.LastSchool,
			ParentContacts: req.ParentContacts,
			Religion:       req.Religion,
			YearEnrolled:   req.YearEnrolled,
		})
		if err != nil {
			handleRecordsError(w, r, err)
			return
		}
		w.Header().Set("Location", "/v1/admissions/students/"+st.ID)
		writeJSON(w, http.StatusCreated, st)
	case http.MethodGet:
		if admNo := strings.TrimSpace(r.URL.Query().Get("admission_no")); admNo != "" {
			st, err := a.records.StudentByAdmissionNo(r.Context(), admNo)
			if err != nil {
				handleRecordsError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, st)
			return
		}
		items, err := a.records.Students(r.Context())
		if err != nil {
			handleRecordsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleStudentResource(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requireDepartment(w, r, identity.DeptAdmissions)
	if !ok {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/admissions/students/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		st, err := a.records.Student(r.Context(), id)
		if err != nil {
			handleRecordsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	case http.MethodDelete:
		if _, err := a.records.DeleteStudent(r.Context(), principal.User.ID, id); err != nil {
			handleRecordsError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (a *API) handleExamResults(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requireDepartment(w, r, identity.DeptExaminations)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req examResultRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	res, err := a.records.RecordMarks(r.Context(), principal.User.ID, records.ExamResult{
		StudentID:   strings.TrimSpace(req.StudentID),
		Subject:     req.Subject,
		Marks:       req.Marks,
		YearOfStudy: req.YearOfStudy,
		Semester:    req.Semester,
	})
	if err != nil {
		handleRecordsError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleExamStudent serves /v1/examinations/students/{id}/results.
func (a *API) handleExamStudent(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireDepartment(w, r, identity.DeptExaminations); !ok {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/examinations/students/")
	id, found := strings.CutSuffix(path, "/results")
	if !found || id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	items, err := a.records.Results(r.Context(), id)
	if err != nil {
		handleRecordsError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleStockCollection(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requireDepartment(w, r, identity.DeptStores)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req stockItemRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		item, err := a.records.UpsertStockItem(r.Context(), principal.User.ID, records.StockItem{
			Name:     req.Name,
			Quantity: req.Quantity,
			Category: req.Category,
		})
		if err != nil {
			handleRecordsError(w, r, err)
			return
		}
		w.Header().Set("Location", "/v1/stores/items/"+item.ID)
		writeJSON(w, http.StatusCreated, item)
	case http.MethodGet:
		items, err := a.records.StockItems(r.Context())
		if err != nil {
			handleRecordsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleStockResource(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requireDepartment(w, r, identity.DeptStores)
	if !ok {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/stores/items/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req stockItemRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		item, err := a.records.UpsertStockItem(r.Context(), principal.User.ID, records.StockItem{
			ID:       id,
			Name:     req.Name,
			Quantity: req.Quantity,
			Category: req.Category,
		})
		if err != nil {
			handleRecordsError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodDelete:
		if err := a.records.DeleteStockItem(r.Context(), id); err != nil {
			handleRecordsError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	}
}
