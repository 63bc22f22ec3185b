package api

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mediarank/mediarank/internal/middleware"
	"github.com/mediarank/mediarank/internal/services"
)

// Router wires the lifecycle services to the HTTP surface. Transport
// concerns stop here; everything below speaks typed service errors.
type Router struct {
	logger      *zap.Logger
	frontendURL string

	auth     *services.AuthService
	tests    *services.TestService
	gate     *services.SessionGate
	ratings  *services.RatingService
	results  *services.ResultsService
	catalog  *services.CatalogService
	activity *services.ActivityService
}

type Deps struct {
	Logger      *zap.Logger
	FrontendURL string

	Auth     *services.AuthService
	Tests    *services.TestService
	Gate     *services.SessionGate
	Ratings  *services.RatingService
	Results  *services.ResultsService
	Catalog  *services.CatalogService
	Activity *services.ActivityService
}

func NewRouter(d Deps) *Router {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		logger:      logger,
		frontendURL: strings.TrimRight(d.FrontendURL, "/"),
		auth:        d.Auth,
		tests:       d.Tests,
		gate:        d.Gate,
		ratings:     d.Ratings,
		results:     d.Results,
		catalog:     d.Catalog,
		activity:    d.Activity,
	}
}

func (rt *Router) Register(mux *http.ServeMux) {
	// Public routes
	mux.HandleFunc("/api/admin/login", rt.handleLogin) // POST
	mux.HandleFunc("/api/test/", rt.handleRespondent)  // GET/POST under /api/test/{token}

	// Protected admin routes
	admin := func(h http.HandlerFunc) http.Handler { return middleware.RequireAdmin(h) }
	mux.Handle("/api/admin/tests", admin(rt.handleTests))              // POST/GET
	mux.Handle("/api/admin/tests/", admin(rt.handleTestScoped))        // close/results/users/delete
	mux.Handle("/api/admin/categories", admin(rt.handleCategories))    // POST/GET
	mux.Handle("/api/admin/categories/", admin(rt.handleCategoryByID)) // DELETE
	mux.Handle("/api/admin/media", admin(rt.handleMedia))              // GET
	mux.Handle("/api/admin/media/", admin(rt.handleMediaScoped))       // PUT {id}/categories
	mux.Handle("/api/admin/activity-logs", admin(rt.handleActivityLogs))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the service error taxonomy onto status semantics.
// The distinct classes stay distinguishable; nothing collapses into a
// generic failure.
func (rt *Router) writeError(w http.ResponseWriter, err error) {
	if se, ok := services.AsServiceError(err); ok {
		var status int
		switch se.Code {
		case services.ErrorInvalid:
			status = http.StatusBadRequest
		case services.ErrorUnauthorized:
			status = http.StatusUnauthorized
		case services.ErrorForbidden:
			status = http.StatusForbidden
		case services.ErrorNotFound:
			status = http.StatusNotFound
		case services.ErrorGone:
			status = http.StatusGone
		case services.ErrorConflict, services.ErrorAlreadyClosed, services.ErrorAlreadyCompleted:
			status = http.StatusConflict
		default:
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, errorResponse{Error: se.Message})
		return
	}
	rt.logger.Error("internal error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

// requestMeta captures the requester network/agent metadata recorded
// in the activity log.
func requestMeta(r *http.Request) *services.RequestMeta {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		if idx := strings.IndexByte(ip, ','); idx >= 0 {
			ip = ip[:idx]
		}
		ip = strings.TrimSpace(ip)
	} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	} else {
		ip = r.RemoteAddr
	}
	return &services.RequestMeta{IP: ip, UserAgent: r.UserAgent()}
}

func actorOrReject(rt *Router, w http.ResponseWriter, r *http.Request) (services.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	}
	return actor, ok
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}
