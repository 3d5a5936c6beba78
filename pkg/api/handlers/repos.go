package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/bufpool"
	"github.com/marmos91/dittostore/pkg/path"
	"github.com/marmos91/dittostore/pkg/storage"
	"github.com/marmos91/dittostore/pkg/storage/helper"
	"github.com/marmos91/dittostore/pkg/storage/vfs"
)

// RepoHandler browses repositories read-only. Paths are expression paths
// such as "<REPO:ARCHIVE>/16-1" given in the path query parameter.
type RepoHandler struct {
	repos RepoSource
}

// NewRepoHandler creates a repository handler.
func NewRepoHandler(repos RepoSource) *RepoHandler {
	return &RepoHandler{repos: repos}
}

// Entry is one listed file, path or link.
type Entry struct {
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Size         uint64    `json:"size"`
	TimeModified time.Time `json:"time_modified"`
	Mode         string    `json:"mode,omitempty"`
	User         string    `json:"user,omitempty"`
	Group        string    `json:"group,omitempty"`
	Link         string    `json:"link,omitempty"`
}

func newEntry(info storage.Info) Entry {
	e := Entry{
		Name:         info.Name,
		Type:         info.Type.String(),
		Size:         info.Size,
		TimeModified: info.TimeModified.UTC(),
		User:         info.User,
		Group:        info.Group,
		Link:         info.LinkDestination,
	}
	if info.Level == storage.InfoLevelDetail {
		e.Mode = "0" + strconv.FormatUint(uint64(info.Mode.Perm()), 8)
	}
	return e
}

// List handles GET /api/v1/repos/{idx}/list?path=&recurse=.
func (h *RepoHandler) List(w http.ResponseWriter, r *http.Request) {
	s, p, ok := h.resolve(w, r)
	if !ok {
		return
	}

	recurse, _ := strconv.ParseBool(r.URL.Query().Get("recurse"))
	infos, err := s.InfoList(r.Context(), p, storage.InfoListOptions{
		Recurse:    recurse,
		Sort:       storage.SortAsc,
		Expression: r.URL.Query().Get("expression"),
	})
	if err != nil {
		writeStorageError(w, err)
		return
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, newEntry(info))
	}
	writeJSON(w, http.StatusOK, okResponse(entries))
}

// Info handles GET /api/v1/repos/{idx}/info?path=.
func (h *RepoHandler) Info(w http.ResponseWriter, r *http.Request) {
	s, p, ok := h.resolve(w, r)
	if !ok {
		return
	}

	info, err := s.Info(r.Context(), p, storage.InfoOptions{})
	if err != nil {
		writeStorageError(w, err)
		return
	}
	e := newEntry(info)
	e.Name = p.String()
	writeJSON(w, http.StatusOK, okResponse(e))
}

// File handles GET /api/v1/repos/{idx}/file?path= and streams the file.
func (h *RepoHandler) File(w http.ResponseWriter, r *http.Request) {
	s, p, ok := h.resolve(w, r)
	if !ok {
		return
	}

	rd, err := s.NewRead(r.Context(), p, storage.ReadOptions{})
	if err != nil {
		writeStorageError(w, err)
		return
	}
	if _, err := rd.Open(r.Context()); err != nil {
		writeStorageError(w, err)
		return
	}
	defer func() { _ = rd.Close() }()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)

	buf := bufpool.Get(bufpool.CopySize())
	defer bufpool.Put(buf)
	if _, err := io.CopyBuffer(w, rd, buf); err != nil {
		// Headers are gone, the client sees a truncated body.
		logger.WarnCtx(r.Context(), "file download interrupted", logger.KeyPath, p.String(), logger.KeyError, err.Error())
	}
}

// resolve finds the storage and the path of a request, writing the
// problem response when either is invalid.
func (h *RepoHandler) resolve(w http.ResponseWriter, r *http.Request) (*storage.Storage, path.Path, bool) {
	if h.repos == nil {
		writeProblem(w, http.StatusNotFound, "no repositories configured")
		return nil, path.Path{}, false
	}

	idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
	if err != nil || idx < 1 || idx > h.repos.RepoCount() {
		writeProblem(w, http.StatusNotFound, "repository "+chi.URLParam(r, "idx")+" is not configured")
		return nil, path.Path{}, false
	}

	raw := r.URL.Query().Get("path")
	if raw == "" {
		raw = helper.ExprRepoArchive
	}
	p, err := path.Parse(raw)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, err.Error())
		return nil, path.Path{}, false
	}

	s, err := h.repos.Repo(r.Context(), idx-1)
	if err != nil {
		writeStorageError(w, err)
		return nil, path.Path{}, false
	}
	return s, p, true
}

// writeStorageError maps storage errors onto HTTP statuses.
func writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrFileMissing), errors.Is(err, storage.ErrPathMissing):
		writeProblem(w, http.StatusNotFound, err.Error())
	case errors.Is(err, vfs.ErrMountPointNotFound),
		errors.Is(err, storage.ErrExpressionUnresolved),
		errors.Is(err, storage.ErrPathNotContained),
		errors.Is(err, helper.ErrInvalidExpression),
		errors.Is(err, helper.ErrStanzaRequired),
		errors.Is(err, path.ErrMalformedPath),
		errors.Is(err, path.ErrPathEscapesRoot):
		writeProblem(w, http.StatusBadRequest, err.Error())
	default:
		writeProblem(w, http.StatusInternalServerError, err.Error())
	}
}
