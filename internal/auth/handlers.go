package auth

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/gostudy/bookbot/internal/logging"
)

// limiterRate bounds the OAuth surface per client IP. The flow is a
// human clicking through a consent screen, so a handful per minute is
// generous.
const (
	limiterRate  = rate.Limit(10.0 / 60.0)
	limiterBurst = 10
)

// ConnectRecorder counts completed OAuth connects. Implemented by the
// metrics collector.
type ConnectRecorder interface {
	RecordConnect()
}

// Handler exposes the connect and callback endpoints.
type Handler struct {
	exchanger *Exchanger
	metrics   ConnectRecorder
	log       *logging.Logger

	mu       sync.Mutex
	limiters map[string]*ipLimiter
}

type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// HandlerOption configures optional handler behavior.
type HandlerOption func(*Handler)

// WithConnectRecorder attaches a connect metrics recorder.
func WithConnectRecorder(rec ConnectRecorder) HandlerOption {
	return func(h *Handler) { h.metrics = rec }
}

// NewHandler creates the HTTP handler for the OAuth flow.
func NewHandler(exchanger *Exchanger, log *logging.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		exchanger: exchanger,
		log:       log.Sub("auth"),
		limiters:  make(map[string]*ipLimiter),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the chi router for mounting under /auth.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.rateLimit)
	r.Get("/connect", h.connect)
	r.Get("/callback", h.callback)
	return r
}

// connect redirects the user to the Calendly consent screen with a
// signed state bound to their chat identity.
func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("telegram_id")
	if identity == "" {
		writeJSONError(w, http.StatusBadRequest, "missing telegram_id parameter", "")
		return
	}

	target, err := h.exchanger.AuthorizationURL(identity)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to build authorization url")
		writeJSONError(w, http.StatusInternalServerError, "failed to start authorization", "")
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}

// callback completes the flow: verifies state, exchanges the code and
// stores the token. Failures carry non-2xx statuses so monitoring and
// the consent screen both see them.
func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	identity, accessToken, err := h.exchanger.HandleCallback(r.Context(), code, state)
	if err != nil {
		var exchangeErr *ExchangeError
		switch {
		case errors.Is(err, ErrMissingParameter):
			writeJSONError(w, http.StatusBadRequest, "missing code or state parameter", "")
		case errors.Is(err, ErrInvalidState):
			writeJSONError(w, http.StatusBadRequest, "invalid or expired state", "")
		case errors.As(err, &exchangeErr):
			h.log.Warn().Err(err).Msg("token exchange failed")
			writeJSONError(w, http.StatusBadGateway, "failed to get access token", exchangeErr.Err.Error())
		default:
			h.log.Error().Err(err).Msg("callback failed")
			writeJSONError(w, http.StatusInternalServerError, "authorization failed", "")
		}
		return
	}

	if h.metrics != nil {
		h.metrics.RecordConnect()
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":          "Calendly connected successfully!",
		"telegram_user_id": identity,
		"access_token":     accessToken,
	})
}

func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "6")
			writeJSONError(w, http.StatusTooManyRequests, "too many requests", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) allow(ip string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	entry, ok := h.limiters[ip]
	if !ok {
		// prune stale entries before growing the map
		for key, old := range h.limiters {
			if now.Sub(old.lastAccess) > 10*time.Minute {
				delete(h.limiters, key)
			}
		}
		entry = &ipLimiter{limiter: rate.NewLimiter(limiterRate, limiterBurst)}
		h.limiters[ip] = entry
	}
	entry.lastAccess = now
	return entry.limiter.Allow()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, msg, details string) {
	body := map[string]string{"error": msg}
	if details != "" {
		body["details"] = details
	}
	writeJSON(w, status, body)
}
