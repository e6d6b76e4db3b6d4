package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/ariefcatur/little-lemon/internal/telemetry"
)

const (
	readTimeout  = 3 * time.Second
	writeTimeout = 5 * time.Second
)

// Deps is everything the API needs. Events, Invalidator and Limiter may be
// nil.
type Deps struct {
	Catalog     CatalogStore
	Cart        CartStore
	Orders      OrderStore
	Users       UserStore
	Roles       RoleSource
	Invalidator RoleInvalidator
	Events      OrderEvents
	Limiter     Limiter

	UserPerMin int
	AnonPerMin int

	Log     *zap.Logger
	Metrics *telemetry.Metrics
	Tracer  trace.Tracer
	Now     func() time.Time
}

func (d *Deps) defaults() {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = telemetry.NopMetrics()
	}
	if d.Tracer == nil {
		d.Tracer = tracenoop.NewTracerProvider().Tracer("httpx")
	}
	if d.Events == nil {
		d.Events = nopEvents{}
	}
	if d.Invalidator == nil {
		d.Invalidator = nopInvalidator{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

func NewRouter(log *zap.Logger, m *telemetry.Metrics, tracer trace.Tracer) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(observe(log, m, tracer))
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// NewAPI builds the full route tree.
func NewAPI(d Deps) *chi.Mux {
	d.defaults()
	r := NewRouter(d.Log, d.Metrics, d.Tracer)

	throttle := &Throttler{Limiter: d.Limiter, UserPerMin: d.UserPerMin, AnonPerMin: d.AnonPerMin, Log: d.Log}
	authn := &Authenticator{Users: d.Users, Roles: d.Roles, Throttle: throttle, Log: d.Log}
	accounts := &AccountsHandler{Users: d.Users, Log: d.Log}

	r.Group(func(r chi.Router) {
		r.Use(throttle.Middleware)
		accounts.RegisterPublic(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(authn.Middleware, throttle.Middleware)
		accounts.Register(r)
		(&CatalogHandler{Store: d.Catalog, Log: d.Log}).Register(r)
		(&CartHandler{Store: d.Cart, Metrics: d.Metrics, Log: d.Log}).Register(r)
		(&OrdersHandler{
			Store:   d.Orders,
			Users:   d.Users,
			Events:  d.Events,
			Metrics: d.Metrics,
			Log:     d.Log,
			Now:     d.Now,
		}).Register(r)
		(&GroupsHandler{Users: d.Users, Roles: d.Invalidator, Log: d.Log}).Register(r)
	})
	return r
}
