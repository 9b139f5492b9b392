package repo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakePostgREST is a tiny in-memory stand-in for /rest/v1/{table}.
type fakePostgREST struct {
	mu       sync.Mutex
	emails   map[string]bool
	lastAuth string
	lastKey  string
	prefer   string
	query    string

	insertStatus int
	insertBody   string
}

func (f *fakePostgREST) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastAuth = r.Header.Get("Authorization")
		f.lastKey = r.Header.Get("apikey")

		if r.URL.Path != "/rest/v1/waitlist" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")

		switch r.Method {
		case http.MethodGet:
			f.query = r.URL.RawQuery
			eq := r.URL.Query().Get("email")
			if len(eq) > 3 && f.emails[eq[3:]] {
				_, _ = io.WriteString(w, `[{"id":"x"}]`)
				return
			}
			_, _ = io.WriteString(w, `[]`)
		case http.MethodPost:
			f.prefer = r.Header.Get("Prefer")
			if f.insertStatus != 0 {
				w.WriteHeader(f.insertStatus)
				_, _ = io.WriteString(w, f.insertBody)
				return
			}
			var body struct {
				Email string `json:"email"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode insert body: %v", err)
			}
			if f.emails[body.Email] {
				w.WriteHeader(http.StatusConflict)
				_, _ = io.WriteString(w, `{"code":"23505","message":"duplicate key value violates unique constraint"}`)
				return
			}
			f.emails[body.Email] = true
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func newRESTFixture(t *testing.T) (*RESTStore, *fakePostgREST) {
	t.Helper()
	f := &fakePostgREST{emails: map[string]bool{}}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	s, err := NewRESTStore(RESTOptions{BaseURL: srv.URL + "/", ServiceKey: "svc-key", Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewRESTStore: %v", err)
	}
	return s, f
}

func TestNewRESTStore_RequiresURLAndKey(t *testing.T) {
	if _, err := NewRESTStore(RESTOptions{ServiceKey: "k"}); err == nil {
		t.Fatalf("expected error for missing URL")
	}
	if _, err := NewRESTStore(RESTOptions{BaseURL: "http://x"}); err == nil {
		t.Fatalf("expected error for missing key")
	}
}

func TestRESTStore_InsertExistsAndHeaders(t *testing.T) {
	s, f := newRESTFixture(t)
	ctx := context.Background()

	ok, err := s.ExistsByEmail(ctx, "a+tag@example.com")
	if err != nil || ok {
		t.Fatalf("ExistsByEmail before insert = %v, %v", ok, err)
	}
	if err := s.Insert(ctx, entry("a+tag@example.com")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	ok, err = s.ExistsByEmail(ctx, "a+tag@example.com")
	if err != nil || !ok {
		t.Fatalf("ExistsByEmail after insert = %v, %v", ok, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastAuth != "Bearer svc-key" || f.lastKey != "svc-key" {
		t.Fatalf("auth headers = %q / %q", f.lastAuth, f.lastKey)
	}
	if f.prefer != "return=minimal" {
		t.Fatalf("Prefer = %q", f.prefer)
	}
	q := f.query
	for _, want := range []string{"select=id", "limit=1", "email=eq.a%2Btag%40example.com"} {
		if !strings.Contains(q, want) {
			t.Fatalf("query %q missing %q", q, want)
		}
	}
}

func TestRESTStore_DuplicateMapping(t *testing.T) {
	s, f := newRESTFixture(t)
	ctx := context.Background()

	if err := s.Insert(ctx, entry("d@example.com")); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := s.Insert(ctx, entry("d@example.com")); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("409 err = %v; want ErrDuplicate", err)
	}

	// 23505 in the body without a 409 still counts as a duplicate.
	f.mu.Lock()
	f.insertStatus = http.StatusBadRequest
	f.insertBody = `{"code":"23505","message":"dup"}`
	f.mu.Unlock()
	if err := s.Insert(ctx, entry("e@example.com")); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("23505 err = %v; want ErrDuplicate", err)
	}
}

func TestRESTStore_ServerErrorIsNotDuplicate(t *testing.T) {
	s, f := newRESTFixture(t)
	f.insertStatus = http.StatusInternalServerError
	f.insertBody = `{"code":"XX000","message":"internal"}`

	err := s.Insert(context.Background(), entry("x@example.com"))
	if err == nil || errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v; want non-duplicate failure", err)
	}
	if !strings.Contains(err.Error(), "XX000 internal") {
		t.Fatalf("error should carry PostgREST detail, got %v", err)
	}
}

func TestRESTStore_Ping(t *testing.T) {
	s, _ := newRESTFixture(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	bad, err := NewRESTStore(RESTOptions{BaseURL: "http://127.0.0.1:1", ServiceKey: "k", Timeout: 500 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewRESTStore: %v", err)
	}
	if err := bad.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping failure against closed port")
	}
}

func TestDescribe_Truncates(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	if got := describe(long); len(got) != 256 {
		t.Fatalf("describe len = %d; want 256", len(got))
	}
	if got := describe([]byte(`{"message":"m"}`)); got != "m" {
		t.Fatalf("describe = %q", got)
	}
}
