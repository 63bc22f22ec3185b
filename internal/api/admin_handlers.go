package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mediarank/mediarank/internal/models"
	"github.com/mediarank/mediarank/internal/services"
)

// POST /api/admin/login
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}
	res, err := rt.auth.Login(req.Username, req.Password, requestMeta(r))
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST/GET /api/admin/tests
func (rt *Router) handleTests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		actor, ok := actorOrReject(rt, w, r)
		if !ok {
			return
		}
		var req struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			CategoryID  int64  `json:"category_id"`
			LoopMedia   *bool  `json:"loop_media"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload"})
			return
		}
		t, err := rt.tests.Create(actor, req.Name, req.Description, req.CategoryID, req.LoopMedia, requestMeta(r))
		if err != nil {
			rt.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)
	case http.MethodGet:
		tests, err := rt.tests.List()
		if err != nil {
			rt.writeError(w, err)
			return
		}
		if tests == nil {
			tests = []*models.Test{}
		}
		writeJSON(w, http.StatusOK, tests)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleTestScoped dispatches /api/admin/tests/{id}[/close|/results|/users[/{uid}]].
func (rt *Router) handleTestScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/admin/tests/"), "/")
	parts := strings.Split(rest, "/")
	id, ok := parseID(parts[0])
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		actor, ok := actorOrReject(rt, w, r)
		if !ok {
			return
		}
		if err := rt.tests.Delete(actor, id, requestMeta(r)); err != nil {
			rt.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case len(parts) == 2 && parts[1] == "close":
		if r.Method != http.MethodPatch {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		actor, ok := actorOrReject(rt, w, r)
		if !ok {
			return
		}
		t, err := rt.tests.Close(actor, id, requestMeta(r))
		if err != nil {
			rt.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)

	case len(parts) == 2 && parts[1] == "results":
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		res, err := rt.results.Results(id)
		if err != nil {
			rt.writeError(w, err)
			return
		}
		if res.Aggregated == nil {
			res.Aggregated = []*services.MediaAggregate{}
		}
		if res.Individual == nil {
			res.Individual = []*services.IndividualRating{}
		}
		writeJSON(w, http.StatusOK, res)

	case len(parts) == 2 && parts[1] == "users":
		rt.handleTestUsers(w, r, id)

	case len(parts) == 3 && parts[1] == "users":
		if r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		uid, ok := parseID(parts[2])
		if !ok {
			http.NotFound(w, r)
			return
		}
		actor, ok := actorOrReject(rt, w, r)
		if !ok {
			return
		}
		if err := rt.tests.Revoke(actor, id, uid, requestMeta(r)); err != nil {
			rt.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.NotFound(w, r)
	}
}

// POST/GET /api/admin/tests/{id}/users
func (rt *Router) handleTestUsers(w http.ResponseWriter, r *http.Request, testID int64) {
	switch r.Method {
	case http.MethodPost:
		actor, ok := actorOrReject(rt, w, r)
		if !ok {
			return
		}
		var req struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload"})
			return
		}
		sess, err := rt.tests.Grant(actor, testID, req.Email, requestMeta(r))
		if err != nil {
			rt.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"id":    sess.ID,
			"email": sess.Email,
			"link":  rt.frontendURL + "/test/" + sess.Token,
		})
	case http.MethodGet:
		sessions, err := rt.tests.Sessions(testID)
		if err != nil {
			rt.writeError(w, err)
			return
		}
		if sessions == nil {
			sessions = []*models.Session{}
		}
		writeJSON(w, http.StatusOK, sessions)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// POST/GET /api/admin/categories
func (rt *Router) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		actor, ok := actorOrReject(rt, w, r)
		if !ok {
			return
		}
		var req struct {
			Name      string `json:"name"`
			MediaType string `json:"media_type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload"})
			return
		}
		c, err := rt.catalog.CreateCategory(actor, req.Name, req.MediaType, requestMeta(r))
		if err != nil {
			rt.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	case http.MethodGet:
		cats, err := rt.catalog.ListCategories()
		if err != nil {
			rt.writeError(w, err)
			return
		}
		if cats == nil {
			cats = []*models.Category{}
		}
		writeJSON(w, http.StatusOK, cats)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// DELETE /api/admin/categories/{id}
func (rt *Router) handleCategoryByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := parseID(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/admin/categories/"), "/"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	actor, okActor := actorOrReject(rt, w, r)
	if !okActor {
		return
	}
	if err := rt.catalog.DeleteCategory(actor, id, requestMeta(r)); err != nil {
		rt.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/admin/media
func (rt *Router) handleMedia(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	media, err := rt.catalog.ListMedia()
	if err != nil {
		rt.writeError(w, err)
		return
	}
	if media == nil {
		media = []*models.MediaFileWithCategories{}
	}
	writeJSON(w, http.StatusOK, media)
}

// PUT /api/admin/media/{id}/categories
func (rt *Router) handleMediaScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/admin/media/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "categories" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := parseID(parts[0])
	if !ok {
		http.NotFound(w, r)
		return
	}
	actor, okActor := actorOrReject(rt, w, r)
	if !okActor {
		return
	}
	var req struct {
		CategoryIDs []int64 `json:"category_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}
	if err := rt.catalog.UpdateMediaCategories(actor, id, req.CategoryIDs, requestMeta(r)); err != nil {
		rt.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/admin/activity-logs
func (rt *Router) handleActivityLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	filter := services.ActivityFilter{
		AdminUsername:   q.Get("admin"),
		RespondentEmail: q.Get("user_email"),
		Action:          q.Get("action"),
		EntityType:      q.Get("entity_type"),
	}
	for param, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		if v := q.Get(param); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: param + " must be RFC 3339"})
				return
			}
			*dst = &t
		}
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	page, err := rt.activity.Query(filter, limit, offset)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	if page.Entries == nil {
		page.Entries = []*models.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, page)
}
