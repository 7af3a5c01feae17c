package httpserver

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/clientproof/backend/internal/application/reports"
	domain "github.com/clientproof/backend/internal/domain/analysis"
	domai "github.com/clientproof/backend/internal/domain/ai"
	"github.com/clientproof/backend/internal/domain/payment"
	"github.com/clientproof/backend/internal/middleware"
	"github.com/clientproof/backend/internal/platform/logger"
)

const maxBodyBytes = 1 << 20 // request bodies are text + small JSON payloads

// Options carries everything the router needs beyond the core service.
type Options struct {
	Webhooks   payment.WebhookVerifier
	TestSecret string
	Production bool
	Health     map[string]middleware.HealthChecker
	RateLimit  struct{ Capacity, RefillRate int }
	Log        *logger.Logger
}

type Router struct {
	svc  *reports.Service
	opts Options
	log  *logger.Logger
}

func NewRouter(svc *reports.Service, opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logger.NewNop()
	}
	r := &Router{svc: svc, opts: opts, log: log}

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Stripe-Signature"},
		MaxAge:         300,
	}))
	mux.Use(middleware.LoggingMiddleware(log))
	mux.Use(middleware.MetricsMiddleware)
	if opts.RateLimit.Capacity > 0 {
		mux.Use(middleware.RateLimitMiddleware(opts.RateLimit.Capacity, opts.RateLimit.RefillRate))
	}

	mux.Get("/health", middleware.HealthHandler(opts.Health))
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Post("/free-analysis", r.wrap(r.handleFreeAnalysis))
	mux.Post("/create-checkout", r.wrap(r.handleCreateCheckout))
	mux.Get("/report/{id}", r.wrap(r.handleReport))
	mux.Post("/verify-payment", r.wrap(r.handleVerifyPayment))
	mux.Post("/payment-webhook", r.wrap(r.handleWebhook))

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap maps domain errors onto the HTTP taxonomy. Every non-2xx body carries
// a machine-readable error code.
func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found")
		case errors.Is(err, domain.ErrNotPaid):
			writeError(w, http.StatusForbidden, "not_paid")
		case errors.Is(err, domain.ErrProcessing):
			writeError(w, http.StatusAccepted, "processing")
		case errors.Is(err, payment.ErrNotVerified):
			writeError(w, http.StatusForbidden, "payment_not_verified")
		case errors.Is(err, payment.ErrBadSignature):
			middleware.IncrementWebhooksRejected()
			writeError(w, http.StatusBadRequest, "invalid_signature")
		case errors.Is(err, domai.ErrUpstream), errors.Is(err, domai.ErrMalformed):
			r.log.Errorw("generation failed", "path", req.URL.Path, "error", err)
			writeError(w, http.StatusInternalServerError, "generation_failed")
		default:
			r.log.Errorw("request failed", "path", req.URL.Path, "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error")
		}
	}
}

// POST /free-analysis
// Body: {"conversation": "<transcript>"}
func (r *Router) handleFreeAnalysis(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Conversation string `json:"conversation"`
	}
	if err := decodeJSON(req, &body); err != nil {
		return err
	}
	conversation := middleware.SanitizeString(body.Conversation)
	if err := middleware.ValidateConversation(conversation); err != nil {
		return err
	}

	rec, err := r.svc.SubmitFree(req.Context(), conversation)
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, map[string]any{
		"id":        rec.ID,
		"score":     rec.Free.Score,
		"riskLevel": rec.Free.RiskLevel,
		"summary":   rec.Free.Summary,
	})
}

// POST /create-checkout
// Body: {"analysisId": "<id>", "testBypassSecret": "<optional>"}
func (r *Router) handleCreateCheckout(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		AnalysisID       string `json:"analysisId"`
		TestBypassSecret string `json:"testBypassSecret"`
	}
	if err := decodeJSON(req, &body); err != nil {
		return err
	}
	if err := middleware.ValidateAnalysisID(body.AnalysisID); err != nil {
		return err
	}
	origin := requestOrigin(req)
	id := domain.ID(body.AnalysisID)

	if body.TestBypassSecret != "" {
		// Pre-production verification only. In production, or on a wrong
		// secret, the path does not exist.
		if r.opts.Production || !secretMatches(body.TestBypassSecret, r.opts.TestSecret) {
			return domain.ErrNotFound
		}
		if err := r.svc.TestBypass(req.Context(), id); err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, map[string]any{
			"url": fmt.Sprintf("%s/rapport?id=%s", origin, id),
		})
	}

	url, err := r.svc.InitiatePayment(req.Context(), id, origin)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"url": url})
}

// GET /report/{id}
func (r *Router) handleReport(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateAnalysisID(id); err != nil {
		return err
	}

	rec, err := r.svc.Resolve(req.Context(), domain.ID(id))
	if err != nil {
		return err
	}

	middleware.IncrementReportsServed()
	return writeJSON(w, http.StatusOK, map[string]any{
		"id":           rec.ID,
		"freeAnalysis": rec.Free,
		"fullAnalysis": rec.Full,
		"createdAt":    rec.CreatedAt,
	})
}

// POST /verify-payment
// Body: {"sessionRef": "...", "analysisId": "...", "conversation": "...", "freeAnalysis": {...}}
// Synchronous fallback to the webhook; conversation/freeAnalysis let the
// server recreate a record the client paid for but the server lost.
func (r *Router) handleVerifyPayment(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		SessionRef   string               `json:"sessionRef"`
		AnalysisID   string               `json:"analysisId"`
		Conversation string               `json:"conversation"`
		FreeAnalysis *domain.FreeAnalysis `json:"freeAnalysis"`
	}
	if err := decodeJSON(req, &body); err != nil {
		return err
	}
	if body.SessionRef == "" {
		return fmt.Errorf("%w: sessionRef is required", domain.ErrInvalidInput)
	}
	if err := middleware.ValidateAnalysisID(body.AnalysisID); err != nil {
		return err
	}

	var recovery *reports.RecoveryData
	if body.Conversation != "" {
		recovery = &reports.RecoveryData{
			Conversation: middleware.SanitizeString(body.Conversation),
			Free:         body.FreeAnalysis,
		}
	}

	if err := r.svc.ConfirmPayment(req.Context(), body.SessionRef, domain.ID(body.AnalysisID), recovery); err != nil {
		return err
	}

	middleware.IncrementPaymentsConfirmed()
	return writeJSON(w, http.StatusOK, map[string]any{
		"verified": true,
		"id":       body.AnalysisID,
	})
}

// POST /payment-webhook
// Provider-pushed signed envelope. Once the signature checks out the response
// is always {"received": true}; app-level failures are logged, not surfaced,
// so the provider does not retry them.
func (r *Router) handleWebhook(w http.ResponseWriter, req *http.Request) error {
	payload, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: reading webhook body", domain.ErrInvalidInput)
	}

	event, err := r.opts.Webhooks.VerifyWebhook(payload, req.Header.Get("Stripe-Signature"))
	if err != nil {
		return err
	}

	if event.Type == payment.EventCheckoutCompleted && event.Session != nil {
		r.svc.HandleCompletedSession(req.Context(), event.Session)
		middleware.IncrementPaymentsConfirmed()
	}

	return writeJSON(w, http.StatusOK, map[string]any{"received": true})
}

func decodeJSON(req *http.Request, v any) error {
	defer req.Body.Close()
	dec := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidInput)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

// secretMatches compares the bypass secret in constant time; an unset server
// secret never matches.
func secretMatches(candidate, secret string) bool {
	if secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(secret)) == 1
}

// requestOrigin prefers the browser-sent Origin header, falling back to the
// request host.
func requestOrigin(req *http.Request) string {
	if origin := req.Header.Get("Origin"); origin != "" && middleware.ValidateOrigin(origin) == nil {
		return origin
	}
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, req.Host)
}
