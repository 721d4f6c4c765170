// Package httpapi exposes the service over HTTP: JSON in and out, bearer
// token authentication, and permission-gated handlers.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"docvault.org/internal/auth"
	"docvault.org/internal/docs"
	"docvault.org/internal/obs"
	"docvault.org/internal/spsync"
)

// ReadyProbe reports readiness, pinging the database when one is wired.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	auth *auth.Service
	rbac *auth.RBACService
	docs *docs.Service
	sync *spsync.Worker

	rateBurst    int
	ratePerSec   float64
	maxBodyBytes int64
	devMode      bool
}

// Option adjusts API construction.
type Option func(*API)

// WithRateLimit overrides the per-client token bucket. Non-positive values
// keep the defaults.
func WithRateLimit(burst int, perSecond float64) Option {
	return func(a *API) {
		if burst > 0 {
			a.rateBurst = burst
		}
		if perSecond > 0 {
			a.ratePerSec = perSecond
		}
	}
}

// WithEnv selects the runtime environment. Internal error detail appears in
// 500 bodies only in dev; prod answers with a fixed message.
func WithEnv(env string) Option {
	return func(a *API) {
		a.devMode = env == "dev"
	}
}

// New wires the route table. The sync worker may be nil when the drive sync
// is not configured; its endpoint then answers 503.
func New(rp ReadyProbe, version string, authSvc *auth.Service, rbacSvc *auth.RBACService, docSvc *docs.Service, syncWorker *spsync.Worker, opts ...Option) *API {
	a := &API{
		mux:          http.NewServeMux(),
		readyProbe:   rp,
		version:      version,
		auth:         authSvc,
		rbac:         rbacSvc,
		docs:         docSvc,
		sync:         syncWorker,
		rateBurst:    40,
		ratePerSec:   20,
		maxBodyBytes: 32 << 20,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)

	a.mux.HandleFunc("/v1/users/me", a.handleMe)
	a.mux.HandleFunc("/v1/users", a.handleUsers)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)

	a.mux.HandleFunc("/v1/roles", a.handleRoles)
	a.mux.HandleFunc("/v1/roles/", a.handleRoleResource)
	a.mux.HandleFunc("/v1/permissions", a.handlePermissions)

	a.mux.HandleFunc("/v1/documents", a.handleDocuments)
	a.mux.HandleFunc("/v1/documents/batch", a.handleDocumentBatch)
	a.mux.HandleFunc("/v1/documents/", a.handleDocumentResource)

	a.mux.HandleFunc("/v1/sync/sharepoint", a.handleSharePointSync)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the route table.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = LoggingJSON(h)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "docvault-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}
