package webapp

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/JubinSaniei/filesystem/app"
	"github.com/JubinSaniei/filesystem/models"
)

type pathRequest struct {
	Path string `json:"path"`
}

type writeRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Mode    string `json:"mode"`
}

type deleteRequest struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive"`
}

type moveRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

type scanRequest struct {
	Path  string `json:"path"`
	Force bool   `json:"force"`
}

type queryRequest struct {
	Query  string `json:"query"`
	Params []any  `json:"params"`
	Limit  int    `json:"limit"`
}

type editRequest struct {
	Path   string          `json:"path"`
	Edits  []models.EditOp `json:"edits"`
	DryRun bool            `json:"dryRun"`
}

type treeRequest struct {
	Path          string `json:"path"`
	MaxDepth      int    `json:"maxDepth"`
	IncludeHidden bool   `json:"includeHidden"`
}

type contentSearchRequest struct {
	Path        string `json:"path"`
	Query       string `json:"query"`
	Recursive   *bool  `json:"recursive"`
	FilePattern string `json:"filePattern"`
	Limit       int    `json:"limit"`
	Offset      int    `json:"offset"`
}

func (webapp *WebApp) readFile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pathRequest
		if !decode(w, r, &req) {
			return
		}

		data, err := webapp.Service.ReadFile(req.Path)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"path":    req.Path,
			"content": string(data),
			"size":    len(data),
		})
	}
}

func (webapp *WebApp) writeFile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req writeRequest
		if !decode(w, r, &req) {
			return
		}

		mode, err := models.ParseWriteMode(req.Mode)
		if err != nil {
			writeError(w, badRequest(err))
			return
		}
		if err := webapp.Service.WriteFile(req.Path, []byte(req.Content), mode); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"path": req.Path, "written": true})
	}
}

func (webapp *WebApp) deletePath() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req deleteRequest
		if !decode(w, r, &req) {
			return
		}

		if err := webapp.Service.Delete(req.Path, req.Recursive); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"path": req.Path, "deleted": true})
	}
}

func (webapp *WebApp) movePath() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req moveRequest
		if !decode(w, r, &req) {
			return
		}

		if err := webapp.Service.Move(r.Context(), req.Source, req.Destination); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"source":      req.Source,
			"destination": req.Destination,
			"moved":       true,
		})
	}
}

func (webapp *WebApp) editFile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req editRequest
		if !decode(w, r, &req) {
			return
		}
		if len(req.Edits) == 0 {
			writeError(w, badRequest(errors.New("no edits supplied")))
			return
		}

		diff, err := webapp.Service.EditFile(req.Path, req.Edits, req.DryRun)
		if err != nil {
			writeError(w, err)
			return
		}
		if req.DryRun {
			writeJSON(w, http.StatusOK, map[string]any{"path": req.Path, "diff": diff})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"path": req.Path, "edited": true})
	}
}

func (webapp *WebApp) directoryTree() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req treeRequest
		if !decode(w, r, &req) {
			return
		}

		depth := req.MaxDepth
		if depth <= 0 {
			depth = 5
		}
		if depth > 20 {
			depth = 20
		}

		tree, err := webapp.Service.Tree(req.Path, depth, req.IncludeHidden)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tree": tree})
	}
}

func (webapp *WebApp) searchContent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req contentSearchRequest
		if !decode(w, r, &req) {
			return
		}
		if req.Query == "" {
			writeError(w, badRequest(errors.New("query is required")))
			return
		}

		filter := models.ContentFilter{
			Path:        req.Path,
			Query:       req.Query,
			Recursive:   req.Recursive == nil || *req.Recursive,
			FilePattern: req.FilePattern,
			Limit:       req.Limit,
			Offset:      req.Offset,
		}
		result, err := webapp.Service.SearchContent(r.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (webapp *WebApp) createDirectory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pathRequest
		if !decode(w, r, &req) {
			return
		}

		if err := webapp.Service.CreateDirectory(req.Path); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"path": req.Path, "created": true})
	}
}

func (webapp *WebApp) listDirectory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pathRequest
		if !decode(w, r, &req) {
			return
		}

		items, err := webapp.Service.ListDirectory(req.Path)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"path": req.Path, "items": items})
	}
}

func (webapp *WebApp) getMetadata() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pathRequest
		if !decode(w, r, &req) {
			return
		}

		rec, err := webapp.Service.GetMetadata(req.Path)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (webapp *WebApp) databaseQuery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if !decode(w, r, &req) {
			return
		}

		result, err := webapp.Service.Query(r.Context(), req.Query, req.Params, req.Limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (webapp *WebApp) metadataSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter models.SearchFilter
		if !decode(w, r, &filter) {
			return
		}

		result, err := webapp.Service.Search(r.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (webapp *WebApp) watchDirectory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pathRequest
		if !decode(w, r, &req) {
			return
		}

		result, err := webapp.Service.Watch(req.Path)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (webapp *WebApp) unwatchDirectory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pathRequest
		if !decode(w, r, &req) {
			return
		}

		result, err := webapp.Service.Unwatch(req.Path)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (webapp *WebApp) scanDirectories() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scanRequest
		if !decode(w, r, &req) {
			return
		}

		scanned, err := webapp.Service.Scan(r.Context(), req.Path, req.Force)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"scannedDirectories": scanned})
	}
}

func (webapp *WebApp) reindexDirectory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pathRequest
		if !decode(w, r, &req) {
			return
		}

		count, err := webapp.Service.Index(r.Context(), req.Path)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"path": req.Path, "fileCount": count})
	}
}

func (webapp *WebApp) watcherStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, webapp.Service.Status())
	}
}

type httpError struct {
	code int
	err  error
}

func (e *httpError) Error() string { return e.err.Error() }

func badRequest(err error) error {
	return &httpError{code: http.StatusBadRequest, err: err}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, badRequest(err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError

	var he *httpError
	var qse *app.QuerySecurityError
	switch {
	case errors.As(err, &he):
		code = he.code
	case errors.As(err, &qse):
		code = http.StatusForbidden
	case errors.Is(err, app.ErrEditMismatch):
		code = http.StatusBadRequest
	case errors.Is(err, app.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, app.ErrPoolBusy):
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{"error": err.Error()})
}
