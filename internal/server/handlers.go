package server

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"vfm-go/internal/model"
	"vfm-go/internal/vault"
	"vfm-go/internal/vfm"
)

type userResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Provider model.Provider `json:"provider"`
}

type urlResponse struct {
	URL  string `json:"url"`
	Href string `json:"href,omitempty"` // set for URLs served from /objects
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	writeJSON(w, http.StatusOK, userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Provider: u.Provider})
}

func (s *Server) handleContents(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	q := r.URL.Query()

	var folderID *string
	if id := q.Get("folder"); id != "" {
		folderID = &id
	}

	contents, err := s.services.Workspace.Contents(r.Context(), folderID, u.ID, u.AccountID, vfm.ContentsQuery{
		Types:  parseTypes(q.Get("type")),
		Search: q.Get("search"),
		Sort:   q.Get("sort"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contents)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	q := r.URL.Query()

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	writeJSON(w, http.StatusOK, s.services.Workspace.Recent(r.Context(), u.ID, q.Get("sort"), q.Get("search"), limit))
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.services.Files.Usage(r.Context(), currentUser(r).ID))
}

func (s *Server) handleShared(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	writeJSON(w, http.StatusOK, s.services.Sharing.ListSharedWithMe(r.Context(), u.ID, u.Email))
}

func (s *Server) handleFileContent(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	file, blob, err := s.services.Files.Open(r.Context(), chi.URLParam(r, "fileID"), u.ID, u.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeBlob(w, file.Name, blob)
}

func (s *Server) handleFileURL(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	_, url, err := s.services.Files.URL(r.Context(), chi.URLParam(r, "fileID"), u.ID, u.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Registry URLs stay valid until DELETE /objects/{token}.
	resp := urlResponse{URL: url.URL}
	if token, ok := strings.CutPrefix(url.URL, vault.URLPrefix); ok {
		resp.Href = "/objects/" + token
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleObject(w http.ResponseWriter, r *http.Request) {
	blob, ok := s.urls.Resolve(chi.URLParam(r, "token"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "Object URL not found"})
		return
	}
	writeBlob(w, blob.Name, blob)
}

func (s *Server) handleReleaseObject(w http.ResponseWriter, r *http.Request) {
	if !s.urls.Release(chi.URLParam(r, "token")) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "Object URL not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeBlob(w http.ResponseWriter, name string, blob *vfm.StoredBlob) {
	contentType := blob.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	if d := mime.FormatMediaType("inline", map[string]string{"filename": name}); d != "" {
		w.Header().Set("Content-Disposition", d)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(blob.Data)
}

// parseTypes reads a comma-separated list of file types; blanks are skipped.
func parseTypes(s string) []model.FileType {
	var out []model.FileType
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, model.FileType(t))
		}
	}
	return out
}
