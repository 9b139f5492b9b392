// Package services – IntakeService
//
// This file implements IntakeService, the pipeline every waitlist submission
// runs through. Stages execute in a fixed order and the first failing stage
// short-circuits the rest, so cheap checks always run before record-store
// round trips:
//
//  1. rate limit (per source IP, fixed window)
//  2. honeypot      -> disguised success
//  3. fill timing   -> disguised success
//  4. content-safety screen on the raw email
//  5. sanitize
//  6. format check
//  7. disposable-domain denylist
//  8. duplicate lookup
//  9. insert (a uniqueness violation is treated as a duplicate)
//
// Bot detections (2, 3) are reported to the caller exactly like a genuine
// success; only the returned Ack.Outcome tells them apart.
//
// Observability: Submit is OpenTelemetry-instrumented with outcome and reason
// attributes. The email address is never attached to spans.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-waitlist-backend/internal/domain"
	"github.com/tbourn/go-waitlist-backend/internal/emailcheck"
	"github.com/tbourn/go-waitlist-backend/internal/ratelimit"
	"github.com/tbourn/go-waitlist-backend/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SuccessMessage is returned for accepted and disguised submissions alike.
const SuccessMessage = "Thanks for joining the waitlist! We'll be in touch soon."

const (
	defaultSource         = "landing_page"
	defaultMinFillTime    = 2 * time.Second
	defaultPersistTimeout = 8 * time.Second
	maxIPLen              = 64
)

// WaitlistStore is the record store the pipeline persists into.
// Insert must return repo.ErrDuplicate when the email already exists.
type WaitlistStore interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Insert(ctx context.Context, e *domain.WaitlistEntry) error
}

// Submission is one untrusted sign-up attempt.
type Submission struct {
	Email    string
	Honeypot string
	// ClientTimestampMs is when the form was rendered (epoch ms); 0 means absent.
	ClientTimestampMs int64
	SourceIP          string
	UserAgent         string
}

// Outcome distinguishes a genuine acceptance from a concealed bot rejection.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeDisguised Outcome = "disguised"
)

// DisguiseCause names the bot check that produced a disguised outcome.
type DisguiseCause string

const (
	CauseHoneypot DisguiseCause = "honeypot"
	CauseTiming   DisguiseCause = "timing"
)

// Ack is the successful result of Submit. Callers must render Accepted and
// Disguised identically.
type Ack struct {
	Message       string
	Outcome       Outcome
	DisguiseCause DisguiseCause
}

// IntakeService runs the submission pipeline.
//
// Store may be nil, meaning the record store is not configured; submissions
// that reach the duplicate check then fail with ErrConfiguration. Limiter and
// Denylist may be nil to disable those stages (Denylist defaults to the
// built-in list).
type IntakeService struct {
	Store    WaitlistStore
	Limiter  *ratelimit.Limiter
	Denylist *emailcheck.Denylist

	Source         string
	MinFillTime    time.Duration
	PersistTimeout time.Duration

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Submit runs sub through the pipeline. A nil error always comes with a
// non-nil Ack; rejections are the sentinel errors in errors.go.
func (s *IntakeService) Submit(ctx context.Context, sub Submission) (ack *Ack, err error) {
	tr := otel.Tracer("services/IntakeService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.Bool("intake.has_timestamp", sub.ClientTimestampMs != 0),
		),
	)
	defer func() {
		if err != nil {
			span.SetAttributes(attribute.String("intake.reason", Reason(err)))
			if errors.Is(err, ErrPersistence) || errors.Is(err, ErrConfiguration) {
				span.RecordError(err)
				span.SetStatus(codes.Error, Reason(err))
			}
		} else {
			span.SetAttributes(attribute.String("intake.outcome", string(ack.Outcome)))
		}
		span.End()
	}()

	now := s.now()

	// 1. Rate limit. Always counts, whatever happens later.
	if s.Limiter != nil {
		d, lerr := s.Limiter.Allow(ctx, rateKey(sub.SourceIP), now)
		if lerr != nil {
			log.Ctx(ctx).Warn().Err(lerr).Msg("rate limit store unavailable; allowing request")
		}
		if !d.Allowed {
			return nil, &RateLimitedError{RetryAfterSeconds: d.RetryAfter}
		}
	}

	// 2. Honeypot.
	if sub.Honeypot != "" {
		return disguised(CauseHoneypot), nil
	}

	// 3. Fill timing. A timestamp in the future also counts as too fast.
	if sub.ClientTimestampMs != 0 {
		elapsed := now.UnixMilli() - sub.ClientTimestampMs
		if elapsed < s.minFillTime().Milliseconds() {
			return disguised(CauseTiming), nil
		}
	}

	// 4. Content-safety screen on the raw input.
	if emailcheck.Unsafe(sub.Email) {
		return nil, ErrInvalidInput
	}

	// 5. Sanitize.
	clean := emailcheck.Sanitize(sub.Email)
	if clean == "" {
		return nil, ErrMissingInput
	}

	// 6. Format.
	if !emailcheck.ValidFormat(clean) {
		return nil, ErrInvalidFormat
	}
	email := strings.ToLower(clean)

	// 7. Disposable domains.
	if s.denylist().Contains(emailcheck.Domain(email)) {
		return nil, ErrDisposableDomain
	}

	if s.Store == nil {
		return nil, ErrConfiguration
	}

	// 8. Duplicate lookup (fast path; the unique index is authoritative).
	exists, err := s.withTimeout(ctx, func(ctx context.Context) (bool, error) {
		return s.Store.ExistsByEmail(ctx, email)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: lookup: %w", ErrPersistence, err)
	}
	if exists {
		return nil, ErrAlreadyRegistered
	}

	// 9. Insert.
	entry := &domain.WaitlistEntry{
		ID:           uuid.NewString(),
		Email:        email,
		SubscribedAt: now.UTC(),
		Source:       s.source(),
		IPAddress:    emailcheck.Truncate(sub.SourceIP, maxIPLen),
		UserAgent:    emailcheck.Truncate(sub.UserAgent, domain.MaxUserAgentLen),
	}
	_, err = s.withTimeout(ctx, func(ctx context.Context) (bool, error) {
		return false, s.Store.Insert(ctx, entry)
	})
	if err != nil {
		if repo.IsDuplicate(err) {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("%w: insert: %w", ErrPersistence, err)
	}

	return &Ack{Message: SuccessMessage, Outcome: OutcomeAccepted}, nil
}

// Reason maps a Submit error to a stable, low-cardinality label.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrMissingInput):
		return "missing_input"
	case errors.Is(err, ErrInvalidFormat):
		return "invalid_format"
	case errors.Is(err, ErrDisposableDomain):
		return "disposable_domain"
	case errors.Is(err, ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, ErrConfiguration):
		return "configuration_error"
	case errors.Is(err, ErrPersistence):
		return "persistence_error"
	default:
		return "internal"
	}
}

func disguised(cause DisguiseCause) *Ack {
	return &Ack{Message: SuccessMessage, Outcome: OutcomeDisguised, DisguiseCause: cause}
}

func rateKey(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}
	return "intake:" + ip
}

// withTimeout bounds one record-store call by PersistTimeout.
func (s *IntakeService) withTimeout(ctx context.Context, fn func(context.Context) (bool, error)) (bool, error) {
	d := s.PersistTimeout
	if d <= 0 {
		d = defaultPersistTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(cctx)
}

func (s *IntakeService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *IntakeService) minFillTime() time.Duration {
	if s.MinFillTime > 0 {
		return s.MinFillTime
	}
	return defaultMinFillTime
}

func (s *IntakeService) source() string {
	if s.Source != "" {
		return s.Source
	}
	return defaultSource
}

func (s *IntakeService) denylist() *emailcheck.Denylist {
	if s.Denylist != nil {
		return s.Denylist
	}
	return builtinDenylist
}

var builtinDenylist = emailcheck.NewDenylist()
