package hubspot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"deal_followup_backend/platform/apperr"
	"deal_followup_backend/platform/logger"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{AccessToken: "pat-test", BaseURL: srv.URL, Timeout: 5 * time.Second}, logger.New("development"))
}

func TestListOpenDealsPaginates(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer pat-test" {
			t.Errorf("missing bearer token")
		}
		if r.URL.Path != "/crm/v3/objects/deals" || r.URL.Query().Get("limit") != "100" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		switch r.URL.Query().Get("after") {
		case "":
			_, _ = io.WriteString(w, `{"results":[
				{"id":"1","properties":{"dealname":"Acme","dealstage":"negotiation","amount":"1200.50","hubspot_owner_id":"7","hs_lastmodifieddate":"2026-02-01T10:00:00.000Z"}},
				{"id":"2","properties":{"dealname":"Closed","hs_is_closed":"true"}}
			],"paging":{"next":{"after":"2"}}}`)
		case "2":
			_, _ = io.WriteString(w, `{"results":[{"id":"3","properties":{"dealname":"","amount":""}}]}`)
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("after"))
		}
	}))

	deals, err := client.ListOpenDeals(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 pages, got %d", calls.Load())
	}
	if len(deals) != 2 || deals[0].ID != "1" || deals[1].ID != "3" {
		t.Fatalf("unexpected deals %+v", deals)
	}
	d := deals[0]
	if d.Amount == nil || *d.Amount != 1200.50 || d.OwnerID != "7" || d.Stage != "negotiation" {
		t.Fatalf("unexpected deal %+v", d)
	}
	if d.LastModified == nil || !d.LastModified.Equal(time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected last modified %v", d.LastModified)
	}
	if deals[1].Amount != nil {
		t.Fatal("empty amount must stay absent")
	}
}

func TestGetContactForDeal(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/crm/v4/objects/deals/1/associations/contacts":
			_, _ = io.WriteString(w, `{"results":[{"toObjectId":501},{"toObjectId":502}]}`)
		case "/crm/v4/objects/deals/2/associations/contacts":
			_, _ = io.WriteString(w, `{"results":[]}`)
		case "/crm/v3/objects/contacts/501":
			_, _ = io.WriteString(w, `{"id":"501","properties":{"email":"jane@acme.test","firstname":"Jane","lastname":"Doe","company":"Acme","phone":"+1 650 253 0000"}}`)
		default:
			http.NotFound(w, r)
		}
	}))

	contact, err := client.GetContactForDeal(context.Background(), "1")
	if err != nil {
		t.Fatalf("get contact: %v", err)
	}
	if contact == nil || contact.Email != "jane@acme.test" || contact.FirstName != "Jane" || contact.Company != "Acme" {
		t.Fatalf("unexpected contact %+v", contact)
	}

	none, err := client.GetContactForDeal(context.Background(), "2")
	if err != nil || none != nil {
		t.Fatalf("expected no contact, got %+v, %v", none, err)
	}
}

func TestGetRecentEmailsNewestFirst(t *testing.T) {
	long := strings.Repeat("word ", 200)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/crm/v4/objects/deals/1/associations/emails":
			_, _ = io.WriteString(w, `{"results":[{"toObjectId":11},{"toObjectId":12},{"toObjectId":13},{"toObjectId":14}]}`)
		case "/crm/v3/objects/emails/batch/read":
			var req struct {
				Inputs []map[string]string `json:"inputs"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Inputs) != 4 {
				t.Errorf("unexpected batch request: %+v %v", req, err)
			}
			resp := map[string]any{"results": []map[string]any{
				{"id": "11", "properties": map[string]string{"hs_email_subject": "old", "hs_timestamp": "2026-01-01T00:00:00Z"}},
				{"id": "12", "properties": map[string]string{"hs_email_subject": "", "hs_timestamp": "2026-01-03T00:00:00Z", "hs_email_text": "<p>Hello&nbsp;there</p>"}},
				{"id": "13", "properties": map[string]string{"hs_email_subject": "middle", "hs_timestamp": "2026-01-02T00:00:00Z", "hs_email_text": long}},
				{"id": "14", "properties": map[string]string{"hs_email_subject": "oldest", "hs_timestamp": "2025-12-01T00:00:00Z"}},
			}}
			_ = json.NewEncoder(w).Encode(resp)
		default:
			http.NotFound(w, r)
		}
	}))

	emails, err := client.GetRecentEmails(context.Background(), "1", 3)
	if err != nil {
		t.Fatalf("get emails: %v", err)
	}
	if len(emails) != 3 || emails[0].ID != "12" || emails[1].ID != "13" || emails[2].ID != "11" {
		t.Fatalf("unexpected order %+v", emails)
	}
	if emails[0].Subject != "(no subject)" {
		t.Fatalf("expected placeholder subject, got %q", emails[0].Subject)
	}
	if strings.Contains(emails[0].BodyPreview, "<p>") {
		t.Fatalf("html not stripped: %q", emails[0].BodyPreview)
	}
	if n := len([]rune(emails[1].BodyPreview)); n > PreviewLength {
		t.Fatalf("preview too long: %d", n)
	}
}

func TestGetOwnerEmail(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/crm/v3/owners/7" {
			_, _ = io.WriteString(w, `{"id":"7","email":"rep@example.test"}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"status":"error","category":"OBJECT_NOT_FOUND","message":"not found"}`)
	}))

	email, err := client.GetOwnerEmail(context.Background(), "7")
	if err != nil || email != "rep@example.test" {
		t.Fatalf("owner = %q, %v", email, err)
	}

	_, err = client.GetOwnerEmail(context.Background(), "8")
	if apperr.GetKind(err) != apperr.KindNotFound {
		t.Fatalf("expected lookup error, got %v", err)
	}
}

func TestCreateNoteAssociatesWithDeal(t *testing.T) {
	var (
		mu       sync.Mutex
		noteBody string
		assoc    []associationSpec
	)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/crm/v3/objects/notes":
			var req struct {
				Properties map[string]string `json:"properties"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			noteBody = req.Properties["hs_note_body"]
			_, _ = io.WriteString(w, `{"id":"900","properties":{}}`)
		case r.Method == http.MethodPut && r.URL.Path == "/crm/v4/objects/notes/900/associations/deals/42":
			_ = json.NewDecoder(r.Body).Decode(&assoc)
			_, _ = io.WriteString(w, `{}`)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusBadRequest)
		}
	}))

	text := NoteBody("jane@acme.test", "Checking in", "Hi Jane")
	id, err := client.CreateNote(context.Background(), "42", text)
	if err != nil || id != "900" {
		t.Fatalf("create note = %q, %v", id, err)
	}

	mu.Lock()
	defer mu.Unlock()
	if noteBody != "[Follow-Up Draft — Approved]\nTo: jane@acme.test\nSubject: Checking in\n\nHi Jane" {
		t.Fatalf("unexpected note body %q", noteBody)
	}
	if len(assoc) != 1 || assoc[0].AssociationTypeID != 214 || assoc[0].AssociationCategory != "HUBSPOT_DEFINED" {
		t.Fatalf("unexpected association %+v", assoc)
	}
}

func TestAPIErrorsSurface(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"category":"INVALID_AUTHENTICATION","message":"expired token"}`)
	}))

	_, err := client.ListOpenDeals(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Message != "expired token" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
	if IsNotFound(err) {
		t.Fatal("401 is not a not-found")
	}
}
