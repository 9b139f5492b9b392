// Waitlist HTTP handlers.
//
// This file exposes the intake endpoints:
//   - POST /subscribe (join the waitlist)
//   - GET  /health    (liveness)
//   - GET  /ready     (record store reachability)
//
// Handlers are transport-thin: they decode the body, resolve the caller's
// address, call the intake service, and translate its outcome into the JSON
// envelopes in response.go.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-waitlist-backend/internal/emailcheck"
	"github.com/tbourn/go-waitlist-backend/internal/http/middleware"
	"github.com/tbourn/go-waitlist-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// IntakeService runs a submission through the waitlist pipeline.
//
// Implementations must be safe for concurrent use and honor ctx.
type IntakeService interface {
	Submit(ctx context.Context, sub services.Submission) (*services.Ack, error)
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

//
// Handler wiring
//

// Handlers groups the waitlist endpoints.
type Handlers struct {
	intake IntakeService
	store  Pinger
	// readyTimeout bounds the /ready probe.
	readyTimeout time.Duration
}

// New binds the handlers to the intake service. store may be nil, in which
// case /ready reports the service as not ready.
func New(intake IntakeService, store Pinger) *Handlers {
	return &Handlers{intake: intake, store: store, readyTimeout: 2 * time.Second}
}

//
// DTOs
//

// SubscribeRequest is the JSON payload for joining the waitlist.
type SubscribeRequest struct {
	// Email is the address to register.
	Email string `json:"email" example:"ada@example.com"`
	// Honeypot is a hidden form field; humans leave it empty.
	Honeypot string `json:"honeypot" example:""`
	// Timestamp is the client's form-render time in Unix milliseconds.
	// Zero or absent skips the fill-time check.
	Timestamp float64 `json:"timestamp" example:"1718000000000"`
}

// Client-facing messages. Persistence details never reach the caller.
const (
	msgInvalidInput      = "Invalid input detected."
	msgMissingInput      = "Email is required."
	msgInvalidFormat     = "Please enter a valid email address."
	msgDisposableDomain  = "Please use a permanent email address."
	msgAlreadyRegistered = "This email is already on the waitlist."
	msgRateLimited       = "Too many requests. Please try again in %d seconds."
	msgServerError       = "Something went wrong. Please try again later."
	msgBadJSON           = "invalid JSON body"
)

//
// Handlers
//

// Subscribe godoc
// @Summary      Join the waitlist
// @Description  Validates and stores an email address. Submissions detected as automated receive the same success response as genuine ones.
// @Tags         waitlist
// @Accept       json
// @Produce      json
// @Param        body  body      SubscribeRequest  true  "Subscription"
// @Success      200   {object}  SuccessResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      405   {object}  ErrorResponse
// @Failure      413   {object}  ErrorResponse
// @Failure      429   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /subscribe [post]
func (h *Handlers) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.ObserveSubmission("rejected", ErrCodeBadRequest)
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgBadJSON)
		return
	}

	ack, err := h.intake.Submit(c.Request.Context(), services.Submission{
		Email:             req.Email,
		Honeypot:          req.Honeypot,
		ClientTimestampMs: int64(req.Timestamp),
		SourceIP:          middleware.ClientIPFrom(c),
		UserAgent:         c.Request.UserAgent(),
	})
	if err != nil {
		h.reject(c, req.Email, err)
		return
	}

	reason := ""
	if ack.Outcome == services.OutcomeDisguised {
		reason = string(ack.DisguiseCause)
		middleware.LoggerFrom(c).Info().
			Str("cause", reason).
			Msg("bot submission disguised as success")
	}
	middleware.ObserveSubmission(string(ack.Outcome), reason)
	ok(c, http.StatusOK, SuccessResponse{Success: true, Message: ack.Message})
}

// reject maps a pipeline error to its HTTP status and envelope. Only the
// email domain is logged.
func (h *Handlers) reject(c *gin.Context, email string, err error) {
	reason := services.Reason(err)
	lg := middleware.LoggerFrom(c)

	var rl *services.RateLimitedError
	switch {
	case errors.As(err, &rl):
		middleware.ObserveSubmission("rejected", reason)
		lg.Info().Str("reason", reason).Int("retry_after", rl.RetryAfterSeconds).Msg("submission rate limited")
		c.Header("Retry-After", strconv.Itoa(rl.RetryAfterSeconds))
		failWith(c, http.StatusTooManyRequests, ErrorResponse{
			Code:       ErrCodeRateLimited,
			Message:    fmt.Sprintf(msgRateLimited, rl.RetryAfterSeconds),
			RetryAfter: rl.RetryAfterSeconds,
		})
		return
	case errors.Is(err, services.ErrPersistence), errors.Is(err, services.ErrConfiguration):
		middleware.ObserveSubmission("error", reason)
		lg.Error().Err(err).Str("reason", reason).Str("domain", emailcheck.Domain(email)).Msg("submission failed")
		code := ErrCodePersistence
		if errors.Is(err, services.ErrConfiguration) {
			code = ErrCodeConfiguration
		}
		fail(c, http.StatusInternalServerError, code, msgServerError)
		return
	}

	code, msg, known := visibleRejection(err)
	if !known {
		middleware.ObserveSubmission("error", reason)
		lg.Error().Err(err).Msg("unexpected intake error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, msgServerError)
		return
	}
	middleware.ObserveSubmission("rejected", reason)
	lg.Info().Str("reason", reason).Str("domain", emailcheck.Domain(email)).Msg("submission rejected")
	fail(c, http.StatusBadRequest, code, msg)
}

func visibleRejection(err error) (code, msg string, known bool) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return ErrCodeInvalidInput, msgInvalidInput, true
	case errors.Is(err, services.ErrMissingInput):
		return ErrCodeMissingInput, msgMissingInput, true
	case errors.Is(err, services.ErrInvalidFormat):
		return ErrCodeInvalidFormat, msgInvalidFormat, true
	case errors.Is(err, services.ErrDisposableDomain):
		return ErrCodeDisposableDomain, msgDisposableDomain, true
	case errors.Is(err, services.ErrAlreadyRegistered):
		return ErrCodeAlreadyRegistered, msgAlreadyRegistered, true
	}
	return "", "", false
}

// Health godoc
// @Summary  Liveness probe
// @Tags     ops
// @Produce  json
// @Success  200  {object}  map[string]string
// @Router   /health [get]
func (h *Handlers) Health(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"status": "ok"})
}

// Ready godoc
// @Summary  Readiness probe
// @Tags     ops
// @Produce  json
// @Success  200  {object}  map[string]string
// @Failure  503  {object}  ErrorResponse
// @Router   /ready [get]
func (h *Handlers) Ready(c *gin.Context) {
	if h.store == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "record store not configured")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.readyTimeout)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("readiness probe failed")
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "record store unreachable")
		return
	}
	ok(c, http.StatusOK, gin.H{"status": "ready"})
}
