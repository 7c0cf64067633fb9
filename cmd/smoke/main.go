// Command smoke drives a running polyrec-api instance end to end: it
// provisions a finance clerk and an admissions clerk, admits a student,
// posts a payment and checks the balance arithmetic.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

type client struct {
	base  string
	http  *http.Client
	token string
}

func main() {
	base := os.Getenv("POLYREC_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	adminUser := os.Getenv("POLYREC_ADMIN_USER")
	adminPass := os.Getenv("POLYREC_ADMIN_PASSWORD")
	if adminUser == "" || adminPass == "" {
		log.Fatal("POLYREC_ADMIN_USER and POLYREC_ADMIN_PASSWORD are required")
	}

	c := &client{base: base, http: &http.Client{Timeout: 10 * time.Second}}

	admin := c.login(adminUser, adminPass)
	suffix := fmt.Sprintf("%06d", rand.New(rand.NewSource(time.Now().UnixNano())).Intn(1_000_000))

	finance := c.provision(admin, "smoke-fin-"+suffix, "finance")
	admissions := c.provision(admin, "smoke-adm-"+suffix, "admissions")

	course := "smoke-course-" + suffix
	c.token = finance
	c.call(http.MethodPut, "/v1/finance/fees", map[string]any{
		"course": course, "sem1": "1000.00", "sem2": "800.00", "sem3": "600.00",
	}, http.StatusOK, nil)

	var student struct {
		ID string `json:"id"`
	}
	c.token = admissions
	c.call(http.MethodPost, "/v1/admissions/students", map[string]any{
		"name":         "Smoke Test",
		"admission_no": "SMK/" + suffix,
		"course":       course,
	}, http.StatusCreated, &student)

	var payment struct {
		ID        string `json:"id"`
		ReceiptNo string `json:"receipt_no"`
	}
	c.token = finance
	c.call(http.MethodPost, "/v1/finance/payments", map[string]any{
		"student_id": student.ID,
		"amount":     "250.00",
		"term":       2,
		"reference":  "SMOKE-" + suffix,
	}, http.StatusCreated, &payment)

	var balance struct {
		Balance struct {
			Sem2 decimal.Decimal `json:"sem2"`
		} `json:"balance"`
		TotalDue decimal.Decimal `json:"total_due"`
	}
	c.call(http.MethodGet, "/v1/finance/students/"+student.ID+"/balance", nil, http.StatusOK, &balance)

	if !balance.Balance.Sem2.Equal(decimal.RequireFromString("550.00")) {
		log.Fatalf("sem2 balance = %s, want 550.00", balance.Balance.Sem2)
	}
	if !balance.TotalDue.Equal(decimal.RequireFromString("2150.00")) {
		log.Fatalf("total due = %s, want 2150.00", balance.TotalDue)
	}

	// Replaying the reference must not post twice.
	var replay struct {
		ID string `json:"id"`
	}
	c.call(http.MethodPost, "/v1/finance/payments", map[string]any{
		"student_id": student.ID,
		"amount":     "250.00",
		"term":       2,
		"reference":  "SMOKE-" + suffix,
	}, http.StatusCreated, &replay)
	if replay.ID != payment.ID {
		log.Fatalf("replay created a second payment: %s vs %s", replay.ID, payment.ID)
	}

	// Cleanup so repeated smoke runs do not accumulate students.
	c.token = admissions
	c.call(http.MethodDelete, "/v1/admissions/students/"+student.ID, nil, http.StatusNoContent, nil)

	fmt.Printf("smoke test passed: student=%s receipt=%s\n", student.ID, payment.ReceiptNo)
}

// provision registers a department account and approves it via the admin
// surface, returning a session token for it.
func (c *client) provision(adminToken, username, department string) string {
	password := "smoke-pass-" + fmt.Sprint(time.Now().UnixNano()%1_000_000)

	c.token = ""
	var reg struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	c.call(http.MethodPost, "/v1/auth/register", map[string]any{
		"username": username, "password": password, "department": department,
	}, http.StatusAccepted, &reg)

	c.token = adminToken
	c.call(http.MethodPost, "/v1/admin/users/"+reg.User.ID+"/approve", nil, http.StatusOK, nil)

	return c.login(username, password)
}

func (c *client) login(username, password string) string {
	c.token = ""
	var out struct {
		Token       string `json:"token"`
		Destination string `json:"destination"`
	}
	c.call(http.MethodPost, "/v1/auth/login", map[string]any{
		"username": username, "password": password,
	}, http.StatusOK, &out)
	if out.Token == "" {
		log.Fatalf("login %s: no token (destination %q)", username, out.Destination)
	}
	return out.Token
}

func (c *client) call(method, path string, body any, wantStatus int, out any) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			log.Fatalf("%s %s: marshal: %v", method, path, err)
		}
	}
	req, err := http.NewRequest(method, c.base+path, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		log.Fatalf("%s %s: status %d, want %d", method, path, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}
