package rag

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxUploadBytes bounds one multipart upload held in memory.
const maxUploadBytes = 64 << 20

// Handler serves the HTTP API over an Engine.
type Handler struct {
	engine *Engine
	logger *zap.Logger
}

func NewHandler(engine *Engine, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: engine, logger: logger}
}

// Routes mounts the API endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/ingest", h.ingest)
	r.Delete("/documents", h.deleteDocument)
	r.Get("/documents", h.listDocuments)
	r.Post("/query", h.query)
	r.Post("/sessions", h.createSession)
	r.Get("/sessions/{id}/messages", h.sessionMessages)
	r.Get("/stats", h.stats)
}

func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, fmt.Errorf("%w: parsing multipart form: %v", ErrBadRequest, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: missing file part", ErrBadRequest))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, fmt.Errorf("reading upload: %w", err))
		return
	}

	metadata, err := parseMetadata(r.FormValue("metadata"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.engine.Ingest(r.Context(), header.Filename, content, metadata)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// parseMetadata decodes the optional metadata form value: a flat JSON
// object whose values are scalars, stringified for storage.
func parseMetadata(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("%w: metadata is not a JSON object: %v", ErrInvalidMetadata, err)
	}

	metadata := make(map[string]string, len(decoded))
	for k, v := range decoded {
		switch val := v.(type) {
		case string:
			metadata[k] = val
		case float64:
			metadata[k] = formatNumber(val)
		case bool:
			if val {
				metadata[k] = "true"
			} else {
				metadata[k] = "false"
			}
		default:
			return nil, fmt.Errorf("%w: metadata field %q is not a scalar", ErrInvalidMetadata, k)
		}
	}
	return metadata, nil
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

func (h *Handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Filename == "" {
		h.writeError(w, fmt.Errorf("%w: body must be {\"filename\": ...}", ErrBadRequest))
		return
	}

	removed, err := h.engine.Delete(r.Context(), req.Filename)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"filename":       req.Filename,
		"chunks_deleted": removed,
	})
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	names, err := h.engine.ListDocuments(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"documents": names})
}

func (h *Handler) query(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string            `json:"session_id"`
		Query     string            `json:"query"`
		Filters   map[string]string `json:"filters"`
		TopK      int               `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: decoding request body: %v", ErrBadRequest, err))
		return
	}
	if req.SessionID == "" {
		h.writeError(w, fmt.Errorf("%w: session_id is required", ErrBadRequest))
		return
	}
	if req.Query == "" {
		h.writeError(w, fmt.Errorf("%w: query is required", ErrBadRequest))
		return
	}
	if req.TopK < 0 {
		h.writeError(w, fmt.Errorf("%w: top_k must be positive", ErrBadRequest))
		return
	}

	answer, err := h.engine.Query(r.Context(), req.SessionID, req.Query, req.Filters, req.TopK)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, answer)
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	sessions := h.engine.Sessions()
	if sessions == nil {
		h.writeError(w, fmt.Errorf("sessions: %w", ErrNotInitialized))
		return
	}
	sess, err := sessions.Create(r.Context())
	if err != nil {
		h.writeError(w, fmt.Errorf("creating session: %w", err))
		return
	}
	h.writeJSON(w, http.StatusCreated, sess)
}

func (h *Handler) sessionMessages(w http.ResponseWriter, r *http.Request) {
	sessions := h.engine.Sessions()
	if sessions == nil {
		h.writeError(w, fmt.Errorf("sessions: %w", ErrNotInitialized))
		return
	}
	id := chi.URLParam(r, "id")

	ok, err := sessions.Exists(r.Context(), id)
	if err != nil {
		h.writeError(w, fmt.Errorf("checking session: %w", err))
		return
	}
	if !ok {
		h.writeError(w, fmt.Errorf("%w: %s", ErrUnknownSession, id))
		return
	}

	messages, err := sessions.Messages(r.Context(), id)
	if err != nil {
		h.writeError(w, fmt.Errorf("loading transcript: %w", err))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"messages":   messages,
	})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("writing response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("code", Code(err)), zap.Error(err))
	}
	h.writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  Code(err),
	})
}
