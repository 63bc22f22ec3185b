package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mediarank/mediarank/internal/models"
)

// handleRespondent dispatches the anonymous token-scoped routes:
//
//	GET  /api/test/{token}           test details and media list
//	POST /api/test/{token}/ratings   submit or revise a rating
//	GET  /api/test/{token}/ratings   ratings submitted so far
//	POST /api/test/{token}/complete  finish the session
func (rt *Router) handleRespondent(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/test/"), "/")
	parts := strings.Split(rest, "/")
	token := parts[0]
	if token == "" {
		http.NotFound(w, r)
		return
	}

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		rt.handleTestAccess(w, r, token)

	case len(parts) == 2 && parts[1] == "ratings":
		switch r.Method {
		case http.MethodPost:
			rt.handleSubmitRating(w, r, token)
		case http.MethodGet:
			ratings, err := rt.ratings.ListForToken(token, requestMeta(r))
			if err != nil {
				rt.writeError(w, err)
				return
			}
			if ratings == nil {
				ratings = []*models.Rating{}
			}
			writeJSON(w, http.StatusOK, ratings)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}

	case len(parts) == 2 && parts[1] == "complete":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := rt.gate.Complete(token, requestMeta(r)); err != nil {
			rt.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.NotFound(w, r)
	}
}

func (rt *Router) handleTestAccess(w http.ResponseWriter, r *http.Request, token string) {
	sess, err := rt.gate.Resolve(token, requestMeta(r))
	if err != nil {
		rt.writeError(w, err)
		return
	}
	t, err := rt.tests.Get(sess.TestID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	media, err := rt.catalog.MediaForTest(sess.TestID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	if media == nil {
		media = []*models.MediaFile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"test":        t,
		"media_files": media,
	})
}

func (rt *Router) handleSubmitRating(w http.ResponseWriter, r *http.Request, token string) {
	var req struct {
		MediaFileID int64   `json:"media_file_id"`
		Stars       float64 `json:"stars"`
		Comment     *string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}
	rating, err := rt.ratings.Submit(token, req.MediaFileID, req.Stars, req.Comment, requestMeta(r))
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rating)
}
