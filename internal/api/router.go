// Package api wires the HTTP surface: routes, middleware chain, and the
// realtime upgrade endpoint.
package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/opsdesk/server/internal/api/handlers"
	"github.com/opsdesk/server/internal/api/middleware"
	"github.com/opsdesk/server/internal/audit"
	"github.com/opsdesk/server/internal/auth"
	"github.com/opsdesk/server/internal/config"
	"github.com/opsdesk/server/internal/domain/dashboard"
	"github.com/opsdesk/server/internal/domain/maintenance"
	"github.com/opsdesk/server/internal/domain/users"
	"github.com/opsdesk/server/internal/metrics"
	"github.com/opsdesk/server/internal/realtime"
)

// Deps carries the constructed services the router exposes. The caller owns
// their lifecycles.
type Deps struct {
	Config      config.Config
	Logger      zerolog.Logger
	JWT         *auth.JWTManager
	Hub         *realtime.Hub
	Audit       *audit.Service
	Dashboard   *dashboard.Service
	Maintenance *maintenance.Service
	Users       *users.Service
	Pinger      handlers.Pinger
}

func NewRouter(deps Deps) http.Handler {
	env := deps.Config.Environment

	authHandler := handlers.NewAuthHandler(deps.Users, env)
	dashboardHandler := handlers.NewDashboardHandler(deps.Dashboard, env)
	maintenanceHandler := handlers.NewMaintenanceHandler(deps.Maintenance, env)
	usersHandler := handlers.NewUsersHandler(deps.Users, env)
	logsHandler := handlers.NewLogsHandler(deps.Audit, env)
	wsHandler := realtime.NewHandler(deps.Hub, deps.JWT,
		deps.Config.Realtime.AllowedOrigins, deps.Config.Realtime.WriteTimeout, deps.Logger)

	authed := middleware.Authenticate(deps.JWT, env)
	adminOnly := middleware.AdminOnly(env)

	// One limiter store shared by every route; the tier tag has to be in the
	// context before the limiter runs, so it sits inside the tier wrapper.
	rateLimit := middleware.RateLimit(deps.Config.RateLimit)
	staffTier := middleware.WithRateLimitTierHandler(middleware.TierStaff)
	loginTier := middleware.WithRateLimitTierHandler(middleware.TierLogin)

	staff := func(h http.HandlerFunc) http.Handler {
		return authed(staffTier(rateLimit(h)))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return authed(adminOnly(staffTier(rateLimit(h))))
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", handlers.Healthz())
	mux.Handle("/readyz", handlers.Readyz(deps.Pinger))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	mux.Handle("/api/auth/login", methodMux(map[string]http.Handler{
		http.MethodPost: loginTier(rateLimit(http.HandlerFunc(authHandler.Login))),
	}))
	mux.Handle("/api/auth/me", methodMux(map[string]http.Handler{
		http.MethodGet: staff(authHandler.Me),
	}))

	mux.Handle("/api/dashboard", methodMux(map[string]http.Handler{
		http.MethodGet:  staff(dashboardHandler.List),
		http.MethodPost: staff(dashboardHandler.Create),
	}))
	mux.Handle("/api/dashboard/{id}", methodMux(map[string]http.Handler{
		http.MethodPut:    staff(dashboardHandler.Update),
		http.MethodDelete: staff(dashboardHandler.Delete),
	}))

	mux.Handle("/api/maintenance", methodMux(map[string]http.Handler{
		http.MethodGet:  staff(maintenanceHandler.List),
		http.MethodPost: staff(maintenanceHandler.CreateHeading),
	}))
	mux.Handle("/api/maintenance/{id}", methodMux(map[string]http.Handler{
		http.MethodDelete: staff(maintenanceHandler.DeleteHeading),
	}))
	mux.Handle("/api/maintenance/{id}/issues", methodMux(map[string]http.Handler{
		http.MethodPost: staff(maintenanceHandler.AddIssue),
	}))
	mux.Handle("/api/maintenance/{id}/issues/{issueID}", methodMux(map[string]http.Handler{
		http.MethodPut:    staff(maintenanceHandler.UpdateIssue),
		http.MethodDelete: staff(maintenanceHandler.DeleteIssue),
	}))

	mux.Handle("/api/users", methodMux(map[string]http.Handler{
		http.MethodGet:  admin(usersHandler.List),
		http.MethodPost: admin(usersHandler.Create),
	}))
	mux.Handle("/api/users/{id}", methodMux(map[string]http.Handler{
		http.MethodPut:    admin(usersHandler.Update),
		http.MethodDelete: admin(usersHandler.Delete),
	}))

	mux.Handle("/api/logs", methodMux(map[string]http.Handler{
		http.MethodGet: admin(logsHandler.List),
	}))
	mux.Handle("/api/logs/stats", methodMux(map[string]http.Handler{
		http.MethodGet: admin(logsHandler.Stats),
	}))

	mux.Handle("/ws", methodMux(map[string]http.Handler{
		http.MethodGet: wsHandler,
	}))

	var handler http.Handler = mux
	handler = middleware.RequestLogging(deps.Logger)(handler)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.CORS(deps.Config.Realtime.AllowedOrigins, deps.Logger)(handler)
	handler = middleware.CorrelationID(deps.Logger)(handler)
	return handler
}

func methodMux(routes map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := routes[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(routes))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(routes map[string]http.Handler) string {
	methods := make([]string, 0, len(routes))
	for method := range routes {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
