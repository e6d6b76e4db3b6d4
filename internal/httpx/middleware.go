package httpx

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ariefcatur/little-lemon/internal/apperr"
	"github.com/ariefcatur/little-lemon/internal/auth"
	"github.com/ariefcatur/little-lemon/internal/telemetry"
)

// observe opens a server span per request, then records the request
// counter, the latency histogram and one access log line.
func observe(log *zap.Logger, m *telemetry.Metrics, tracer trace.Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rc := chi.RouteContext(ctx); rc != nil {
				if p := rc.RoutePattern(); p != "" {
					route = p
				}
			}
			elapsed := time.Since(start)

			attrs := metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("route", route),
				attribute.Int("status", status),
			)
			m.HTTPRequests.Add(ctx, 1, attrs)
			m.HTTPDuration.Record(ctx, elapsed.Seconds(), attrs)

			span.SetAttributes(
				attribute.String("http.route", route),
				attribute.Int("http.status_code", status),
			)
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			log.Info("http request",
				zap.String("request_id", middleware.GetReqID(ctx)),
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", elapsed),
			)
		})
	}
}

type tokenKey struct{}

func tokenFromContext(ctx context.Context) string {
	s, _ := ctx.Value(tokenKey{}).(string)
	return s
}

// Authenticator resolves "Authorization: Token <key>" to an auth.Identity.
// Rejected requests count against the anonymous limit of Throttle.
type Authenticator struct {
	Users    UserStore
	Roles    RoleSource
	Throttle *Throttler
	Log      *zap.Logger
}

func (a *Authenticator) reject(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.Is(err, apperr.KindUnauthenticated) && !a.Throttle.allowAnon(w, r) {
		return
	}
	writeError(w, r, a.Log, err)
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := parseToken(r.Header.Get("Authorization"))
		if err != nil {
			a.reject(w, r, err)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
		defer cancel()

		u, err := a.Users.UserByToken(ctx, key)
		if err != nil {
			a.reject(w, r, err)
			return
		}
		groups, err := a.Roles.GroupsOf(ctx, u.ID)
		if err != nil {
			writeError(w, r, a.Log, err)
			return
		}

		id := auth.Identity{
			UserID:      u.ID,
			Username:    u.Username,
			IsStaff:     u.IsStaff,
			IsSuperuser: u.IsSuperuser,
			Groups:      groups,
		}
		out := auth.WithIdentity(r.Context(), id)
		out = context.WithValue(out, tokenKey{}, key)
		next.ServeHTTP(w, r.WithContext(out))
	})
}

func parseToken(header string) (string, error) {
	if header == "" {
		return "", apperr.Unauthenticated("Authentication credentials were not provided.")
	}
	scheme, key, _ := strings.Cut(strings.TrimSpace(header), " ")
	if !strings.EqualFold(scheme, "Token") && !strings.EqualFold(scheme, "Bearer") {
		return "", apperr.Unauthenticated("Authentication credentials were not provided.")
	}
	key = strings.TrimSpace(key)
	if key == "" || strings.Contains(key, " ") {
		return "", apperr.Unauthenticated("Invalid token header.")
	}
	return key, nil
}

// Throttler limits requests per user, or per client IP for anonymous
// callers. Limiter failures let the request through.
type Throttler struct {
	Limiter    Limiter
	UserPerMin int
	AnonPerMin int
	Log        *zap.Logger
}

func (t *Throttler) Middleware(next http.Handler) http.Handler {
	if t == nil || t.Limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, subject, limit := "anon", clientIP(r), t.AnonPerMin
		if id, ok := auth.FromContext(r.Context()); ok {
			scope, subject, limit = "user", strconv.FormatInt(id.UserID, 10), t.UserPerMin
		}
		if t.allow(w, r, scope, subject, limit) {
			next.ServeHTTP(w, r)
		}
	})
}

// allowAnon charges a request that failed authentication to its client IP.
func (t *Throttler) allowAnon(w http.ResponseWriter, r *http.Request) bool {
	if t == nil || t.Limiter == nil {
		return true
	}
	return t.allow(w, r, "anon", clientIP(r), t.AnonPerMin)
}

// allow writes the 429 itself and returns false when the caller is over
// limit.
func (t *Throttler) allow(w http.ResponseWriter, r *http.Request, scope, subject string, limit int) bool {
	if limit <= 0 {
		return true
	}
	ok, retry, err := t.Limiter.Allow(r.Context(), scope, subject, limit)
	if err != nil {
		t.Log.Warn("throttle check failed", zap.String("scope", scope), zap.Error(err))
		return true
	}
	if ok {
		return true
	}
	secs := int(math.Ceil(retry.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, r, t.Log, apperr.Throttled("Request was throttled. Expected available in %d seconds.", secs))
	return false
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// managerUnlessRead guards catalog routes.
func managerUnlessRead(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := auth.FromContext(r.Context())
			if !auth.ManagerUnlessRead(id, r.Method) {
				writeError(w, r, log, errForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requireManager(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := auth.FromContext(r.Context())
			if !auth.IsManager(id) {
				writeError(w, r, log, errForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
