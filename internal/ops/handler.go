// Package ops serves the operational HTTP surface: health, Prometheus metrics and
// the admin reconciliation endpoints.
package ops

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	platformmw "roster/internal/platform/middleware"
	"roster/internal/reconcile"
	id "roster/pkg/domain"
	dErrors "roster/pkg/domain-errors"
	"roster/pkg/platform/httputil"
	"roster/pkg/platform/middleware/admin"
	"roster/pkg/platform/middleware/requesttime"
	"roster/pkg/requestcontext"
)

// Reconciler runs leased audits and returns cached reports.
type Reconciler interface {
	RunOnce(ctx context.Context, scope reconcile.Scope) (*reconcile.Report, error)
	Last(ctx context.Context, scope reconcile.Scope) (*reconcile.Report, error)
}

// Registrar mounts additional token-protected routes under /admin.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	reconciler   Reconciler
	checks       map[string]HealthCheck
	gatherer     prometheus.Gatherer
	adminToken   string
	logger       *slog.Logger
	checkTimeout time.Duration
	adminRoutes  []Registrar
}

type Option func(*Handler)

// WithHealthCheck adds a named dependency check to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handler) {
		h.checks[name] = check
	}
}

// WithAdminRoutes mounts domain handlers behind the admin token.
func WithAdminRoutes(registrars ...Registrar) Option {
	return func(h *Handler) {
		h.adminRoutes = append(h.adminRoutes, registrars...)
	}
}

func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) {
		h.gatherer = g
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func New(reconciler Reconciler, adminToken string, opts ...Option) *Handler {
	h := &Handler{
		reconciler:   reconciler,
		checks:       make(map[string]HealthCheck),
		gatherer:     prometheus.DefaultGatherer,
		adminToken:   adminToken,
		logger:       slog.Default(),
		checkTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router builds the chi router with the shared middleware stack.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(platformmw.AccessLog(h.logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", h.HandleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	r.Route("/admin", func(r chi.Router) {
		r.Use(admin.RequireAdminToken(h.adminToken, h.logger))
		r.Post("/reconcile", h.HandleReconcile)
		r.Get("/reconcile/last", h.HandleLastReport)
		for _, reg := range h.adminRoutes {
			reg.Register(r)
		}
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HandleHealth handles GET /healthz.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.checkTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	httputil.WriteJSON(w, status, resp)
}

// HandleReconcile handles POST /admin/reconcile[?tenant_id=...].
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, err := scopeFromRequest(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	report, err := h.reconciler.RunOnce(ctx, scope)
	if errors.Is(err, reconcile.ErrLeaseHeld) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "a reconciliation run is already in progress"))
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "admin reconciliation failed",
			"request_id", requestcontext.RequestID(ctx),
			"scope", scope.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// HandleLastReport handles GET /admin/reconcile/last[?tenant_id=...].
func (h *Handler) HandleLastReport(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFromRequest(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.reconciler.Last(r.Context(), scope)
	if errors.Is(err, reconcile.ErrNoReport) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no reconciliation report for "+scope.String()))
		return
	}
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load report"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func scopeFromRequest(r *http.Request) (reconcile.Scope, error) {
	raw := r.URL.Query().Get("tenant_id")
	if raw == "" {
		return reconcile.Scope{}, nil
	}
	tenantID, err := id.ParseTenantID(raw)
	if err != nil {
		return reconcile.Scope{}, err
	}
	return reconcile.Scope{TenantID: tenantID}, nil
}
