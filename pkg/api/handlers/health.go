package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/marmos91/dittostore/pkg/path"
	"github.com/marmos91/dittostore/pkg/storage"
	"github.com/marmos91/dittostore/pkg/storage/helper"
	"github.com/marmos91/dittostore/pkg/storage/vfs"
)

// RepoSource provides the repository storages served by the browser.
// helper.Context implements it.
type RepoSource interface {
	RepoCount() int
	Repo(ctx context.Context, idx int) (*storage.Storage, error)
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repos RepoSource
}

// NewHealthHandler creates a new health handler. repos may be nil, in
// which case the repository check reports unhealthy.
func NewHealthHandler(repos RepoSource) *HealthHandler {
	return &HealthHandler{repos: repos}
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "dittostore",
	}))
}

// RepoHealth is the health of one repository.
type RepoHealth struct {
	Repo    int    `json:"repo"`
	Type    string `json:"type,omitempty"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Repos handles GET /health/repos. Every repository must answer an info
// request on its archive root within five seconds.
func (h *HealthHandler) Repos(w http.ResponseWriter, r *http.Request) {
	if h.repos == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("no repositories configured"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := make([]RepoHealth, 0, h.repos.RepoCount())
	allHealthy := true
	root := path.MustParse(helper.ExprRepoArchive)

	for idx := 0; idx < h.repos.RepoCount(); idx++ {
		health := RepoHealth{Repo: idx + 1, Status: "healthy"}

		start := time.Now()
		err := checkRepo(ctx, h.repos, idx, root, &health)
		health.Latency = time.Since(start).String()
		if err != nil {
			health.Status = "unhealthy"
			health.Error = err.Error()
			allHealthy = false
		}
		response = append(response, health)
	}

	if allHealthy {
		writeJSON(w, http.StatusOK, healthyResponse(response))
	} else {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(response))
	}
}

func checkRepo(ctx context.Context, repos RepoSource, idx int, root path.Path, health *RepoHealth) error {
	s, err := repos.Repo(ctx, idx)
	if err != nil {
		return err
	}
	health.Type = s.Type()
	if d, ok := s.Driver().(*vfs.Driver); ok {
		if child, ok := d.MountStorage(helper.ExprRepoArchive); ok {
			health.Type = child.Type()
		}
	}
	if _, err := s.Info(ctx, root, storage.InfoOptions{IgnoreMissing: true}); err != nil {
		return fmt.Errorf("info on %s: %w", root, err)
	}
	return nil
}
