package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tbourn/go-waitlist-backend/internal/domain"
)

// RESTStore persists waitlist entries through a PostgREST-compatible HTTP
// API (for example a Supabase project) authenticated with a service key.
//
// Existence:  GET  {base}/rest/v1/{table}?email=eq.{email}&select=id&limit=1
// Insert:     POST {base}/rest/v1/{table}   (Prefer: return=minimal)
//
// A 409 response or a PostgreSQL 23505 error code maps to ErrDuplicate.
type RESTStore struct {
	client *resty.Client
	table  string
}

// RESTOptions configures a RESTStore.
type RESTOptions struct {
	BaseURL    string
	ServiceKey string
	Table      string
	Timeout    time.Duration
}

// restError is the PostgREST error envelope.
type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// NewRESTStore validates opts and returns a ready store.
func NewRESTStore(opts RESTOptions) (*RESTStore, error) {
	base := strings.TrimSuffix(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("rest store: base URL is required")
	}
	if strings.TrimSpace(opts.ServiceKey) == "" {
		return nil, errors.New("rest store: service key is required")
	}
	if opts.Table == "" {
		opts.Table = domain.WaitlistEntry{}.TableName()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	c := resty.New().
		SetBaseURL(base+"/rest/v1").
		SetTimeout(opts.Timeout).
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetHeader("apikey", opts.ServiceKey).
		SetAuthToken(opts.ServiceKey).
		SetHeader("Accept", "application/json")

	return &RESTStore{client: c, table: opts.Table}, nil
}

// ExistsByEmail implements the duplicate lookup. Callers pass the lowercased email.
func (s *RESTStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var rows []struct {
		ID string `json:"id"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"email":  "eq." + email,
			"select": "id",
			"limit":  "1",
		}).
		SetResult(&rows).
		Get("/" + s.table)
	if err != nil {
		return false, fmt.Errorf("rest store lookup: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("rest store lookup: status %d: %s", resp.StatusCode(), describe(resp.Body()))
	}
	return len(rows) > 0, nil
}

// Insert creates e. Unique violations surface as ErrDuplicate.
func (s *RESTStore) Insert(ctx context.Context, e *domain.WaitlistEntry) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=minimal").
		SetBody(e).
		Post("/" + s.table)
	if err != nil {
		return fmt.Errorf("rest store insert: %w", err)
	}
	if !resp.IsError() {
		return nil
	}
	if resp.StatusCode() == http.StatusConflict || errorCode(resp.Body()) == uniqueViolation {
		return ErrDuplicate
	}
	return fmt.Errorf("rest store insert: status %d: %s", resp.StatusCode(), describe(resp.Body()))
}

// Ping issues a zero-row read against the table.
func (s *RESTStore) Ping(ctx context.Context) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"select": "id", "limit": "0"}).
		Get("/" + s.table)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("rest store ping: status %d", resp.StatusCode())
	}
	return nil
}

func errorCode(body []byte) string {
	var re restError
	if json.Unmarshal(body, &re) != nil {
		return ""
	}
	return re.Code
}

// describe renders an error body for logs, preferring the PostgREST message.
func describe(body []byte) string {
	var re restError
	if json.Unmarshal(body, &re) == nil && re.Message != "" {
		if re.Code != "" {
			return re.Code + " " + re.Message
		}
		return re.Message
	}
	const max = 256
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}
