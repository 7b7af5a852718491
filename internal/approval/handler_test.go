package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"deal_followup_backend/internal/followup"
	"deal_followup_backend/internal/followup/store"
	apphttp "deal_followup_backend/internal/http"
	"deal_followup_backend/platform/logger"
	"deal_followup_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const testSecret = "test-signing-secret"

type callbackFixture struct {
	engine *gin.Engine
	store  store.Store
	sender *fakeSender
}

func newCallbackFixture(t *testing.T, replay ReplayGuard) *callbackFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New("development")
	s := newTestStore(t)
	sender := &fakeSender{}
	exec := NewExecutor(s, sender, &fakeCards{}, nil, log)
	handler := NewHandler(exec, NewVerifier(testSecret), replay, validator.New(), log)

	engine := gin.New()
	NewModule(handler).RegisterRoutes(&apphttp.RouterContext{Engine: engine, Root: &engine.RouterGroup})

	return &callbackFixture{engine: engine, store: s, sender: sender}
}

func actionBody(actionID, value string) string {
	payload, _ := json.Marshal(map[string]any{
		"type":    "block_actions",
		"actions": []map[string]string{{"action_id": actionID, "value": value}},
	})
	return "payload=" + url.QueryEscape(string(payload))
}

func (f *callbackFixture) post(body, secret string, at time.Time) *httptest.ResponseRecorder {
	ts := strconv.FormatInt(at.Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/approval", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderSignature, Sign([]byte(secret), ts, []byte(body)))
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func TestCallbackApproveFlow(t *testing.T) {
	f := newCallbackFixture(t, nil)
	seedPending(t, f.store, "fu-1", "deal-1", "")

	rec := f.post(actionBody(ActionApprove, "fu-1"), testSecret, time.Now())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp CallbackResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.Action != "sent" || resp.DealName != "Acme Renewal" {
		t.Fatalf("unexpected response %+v", resp)
	}

	again := f.post(actionBody(ActionApprove, "fu-1"), testSecret, time.Now().Add(time.Second))
	if again.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second approve, got %d", again.Code)
	}
}

func TestCallbackDismissFlow(t *testing.T) {
	f := newCallbackFixture(t, nil)
	seedPending(t, f.store, "fu-1", "deal-1", "")

	rec := f.post(actionBody(ActionDismiss, "fu-1"), testSecret, time.Now())
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"action":"dismissed"`) {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}

	approve := f.post(actionBody(ActionApprove, "fu-1"), testSecret, time.Now().Add(time.Second))
	if approve.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for approve after dismiss, got %d", approve.Code)
	}
}

func TestCallbackNotFoundAndProcessedLookTheSame(t *testing.T) {
	f := newCallbackFixture(t, nil)
	seedPending(t, f.store, "fu-1", "deal-1", "")
	if rec := f.post(actionBody(ActionDismiss, "fu-1"), testSecret, time.Now()); rec.Code != http.StatusOK {
		t.Fatalf("dismiss: %d", rec.Code)
	}

	processed := f.post(actionBody(ActionApprove, "fu-1"), testSecret, time.Now().Add(time.Second))
	missing := f.post(actionBody(ActionApprove, "fu-404"), testSecret, time.Now().Add(2*time.Second))

	if processed.Code != http.StatusNotFound || missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for both, got %d and %d", processed.Code, missing.Code)
	}
	if processed.Body.String() != missing.Body.String() {
		t.Fatalf("bodies differ: %s vs %s", processed.Body.String(), missing.Body.String())
	}
}

func TestCallbackRejectsWrongSecret(t *testing.T) {
	f := newCallbackFixture(t, nil)
	seedPending(t, f.store, "fu-1", "deal-1", "")

	rec := f.post(actionBody(ActionApprove, "fu-1"), "not-the-secret", time.Now())
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	got, err := f.store.GetByID(t.Context(), "fu-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != followup.StatusPending || f.sender.count() != 0 {
		t.Fatalf("record mutated by a forged callback: %+v", got)
	}
}

func TestCallbackRejectsStaleTimestamp(t *testing.T) {
	f := newCallbackFixture(t, nil)
	seedPending(t, f.store, "fu-1", "deal-1", "")

	rec := f.post(actionBody(ActionApprove, "fu-1"), testSecret, time.Now().Add(-10*time.Minute))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCallbackBadRequests(t *testing.T) {
	f := newCallbackFixture(t, nil)
	seedPending(t, f.store, "fu-1", "deal-1", "")

	cases := []struct {
		name string
		body string
	}{
		{"no payload field", "foo=bar"},
		{"payload not json", "payload=" + url.QueryEscape("{nope")},
		{"no actions", "payload=" + url.QueryEscape(`{"actions":[]}`)},
		{"empty value", actionBody(ActionApprove, "")},
		{"unknown action", actionBody("escalate", "fu-1")},
		{"bad form encoding", "payload=%zz"},
	}

	for i, tc := range cases {
		rec := f.post(tc.body, testSecret, time.Now().Add(time.Duration(i)*time.Second))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d: %s", tc.name, rec.Code, rec.Body.String())
		}
	}

	got, _ := f.store.GetByID(t.Context(), "fu-1")
	if got.Status != followup.StatusPending {
		t.Fatal("bad requests must not change the record")
	}
}

func TestCallbackSendFailureIs500(t *testing.T) {
	f := newCallbackFixture(t, nil)
	f.sender.err = errors.New("crm unavailable")
	seedPending(t, f.store, "fu-1", "deal-1", "")

	rec := f.post(actionBody(ActionApprove, "fu-1"), testSecret, time.Now())
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "crm unavailable") {
		t.Fatal("collaborator error leaked to caller")
	}
}

type memoryReplayGuard struct {
	seen map[string]bool
	err  error
}

func (m *memoryReplayGuard) Claim(_ context.Context, sig string, _ time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.seen[sig] {
		return false, nil
	}
	m.seen[sig] = true
	return true, nil
}

func (m *memoryReplayGuard) Release(_ context.Context, sig string) error {
	delete(m.seen, sig)
	return nil
}

func TestCallbackReplayRejected(t *testing.T) {
	f := newCallbackFixture(t, &memoryReplayGuard{seen: map[string]bool{}})
	seedPending(t, f.store, "fu-1", "deal-1", "")
	seedPending(t, f.store, "fu-2", "deal-2", "")

	now := time.Now()
	body := actionBody(ActionDismiss, "fu-2")
	if rec := f.post(body, testSecret, now); rec.Code != http.StatusOK {
		t.Fatalf("first delivery: %d", rec.Code)
	}
	if rec := f.post(body, testSecret, now); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected replay to be rejected with 401, got %d", rec.Code)
	}
}

func TestCallbackReplayGuardOutageIs500(t *testing.T) {
	f := newCallbackFixture(t, &memoryReplayGuard{err: fmt.Errorf("redis down")})
	seedPending(t, f.store, "fu-1", "deal-1", "")

	rec := f.post(actionBody(ActionApprove, "fu-1"), testSecret, time.Now())
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if f.sender.count() != 0 {
		t.Fatal("nothing should be sent when the replay guard is unavailable")
	}
}

func TestCallbackRetryAllowedAfterServerError(t *testing.T) {
	f := newCallbackFixture(t, &memoryReplayGuard{seen: map[string]bool{}})
	seedPending(t, f.store, "fu-1", "deal-1", "")
	f.sender.mu.Lock()
	f.sender.err = errors.New("crm unavailable")
	f.sender.mu.Unlock()

	now := time.Now()
	body := actionBody(ActionApprove, "fu-1")
	if rec := f.post(body, testSecret, now); rec.Code != http.StatusInternalServerError {
		t.Fatalf("first delivery: expected 500, got %d", rec.Code)
	}

	f.sender.mu.Lock()
	f.sender.err = nil
	f.sender.mu.Unlock()

	rec := f.post(body, testSecret, now)
	if rec.Code != http.StatusOK {
		t.Fatalf("retry of the same delivery: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.sender.count() != 1 {
		t.Fatalf("expected one send, got %d", f.sender.count())
	}

	if rec := f.post(body, testSecret, now); rec.Code != http.StatusUnauthorized {
		t.Fatalf("delivery after success: expected 401, got %d", rec.Code)
	}
}

func TestCallbackClientErrorKeepsClaim(t *testing.T) {
	guard := &memoryReplayGuard{seen: map[string]bool{}}
	f := newCallbackFixture(t, guard)

	now := time.Now()
	body := actionBody(ActionDismiss, "missing")
	if rec := f.post(body, testSecret, now); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if len(guard.seen) != 1 {
		t.Fatalf("a 4xx outcome must keep the signature claimed, seen=%d", len(guard.seen))
	}
}
