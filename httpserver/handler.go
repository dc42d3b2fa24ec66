package httpserver

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/tee-reporteer/state"
)

//go:embed templates/index.html
var templatesFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// HashResponse is the body of GET /api/hash.
type HashResponse struct {
	DerivedKeyHash string `json:"derived_key_hash"`
}

// ReportTextResponse is the body of GET /api/report when no envelope exists.
type ReportTextResponse struct {
	AttestationReport string `json:"attestation_report"`
}

type indexData struct {
	DerivedKeyHash    string
	AttestationReport string
}

// Handler projects the shared state into HTML and JSON views.
// It only ever reads from the store.
type Handler struct {
	store *state.Store
	log   *slog.Logger
}

// NewHandler creates a Handler reading from store.
func NewHandler(store *state.Store, log *slog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log,
	}
}

// RegisterRoutes configures the router with the public views:
//   - GET /
//   - GET /api/hash
//   - GET /api/report
//   - GET /health
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleIndex)
	r.Get("/api/hash", h.HandleHash)
	r.Get("/api/report", h.HandleReport)
	r.Get("/health", h.HandleHealth)
}

// HandleIndex renders the status page.
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, indexData{
		DerivedKeyHash:    snap.Fingerprint,
		AttestationReport: snap.ReportText,
	}); err != nil {
		h.log.Error("Failed to render index", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// HandleHash returns the derived key fingerprint, or the sentinel when the
// key could not be fetched.
func (h *Handler) HandleHash(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	h.writeJSON(w, HashResponse{DerivedKeyHash: snap.Fingerprint})
}

// HandleReport returns the report envelope when one was rendered and the
// plain report text otherwise.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	if envelope, ok := snap.Report.Get(); ok {
		h.writeJSON(w, envelope)
		return
	}
	h.writeJSON(w, ReportTextResponse{AttestationReport: snap.ReportText})
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.log.Error("Failed to encode response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
