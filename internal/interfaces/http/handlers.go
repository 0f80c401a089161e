package http

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/evafinance/evacore/internal/errs"
	"github.com/evafinance/evacore/internal/metrics"
	"github.com/evafinance/evacore/internal/models"
	"github.com/evafinance/evacore/internal/store"
)

const maxIntakeBody = 1 << 20

// intakeRequest is the admission envelope.
type intakeRequest struct {
	Source     string         `json:"source" validate:"required,max=64"`
	PlatformID string         `json:"platform_id" validate:"required,max=255"`
	Timestamp  string         `json:"timestamp" validate:"required"`
	Text       string         `json:"text" validate:"required,min=1,max=40000"`
	URL        *string        `json:"url" validate:"omitempty,url"`
	Meta       map[string]any `json:"meta"`
}

type handlers struct {
	store    *store.Store
	validate *validator.Validate
}

func newHandlers(st *store.Store) *handlers {
	return &handlers{store: st, validate: validator.New()}
}

// intake admits one post. Re-delivery of a known (source, platform_id)
// returns the original id with duplicate set; the stored row never
// changes.
func (h *handlers) intake(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIntakeBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		metrics.PostsRejected.Inc()
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		metrics.PostsRejected.Inc()
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("validation failed: %v", err))
		return
	}
	ts, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		metrics.PostsRejected.Inc()
		writeError(w, http.StatusUnprocessableEntity, "timestamp must be RFC3339")
		return
	}

	meta := models.JSONMap(req.Meta)
	if meta == nil {
		meta = models.JSONMap{}
	}
	res, err := h.store.InsertRaw(r.Context(), models.RawPost{
		Source:     req.Source,
		PlatformID: req.PlatformID,
		Timestamp:  ts,
		Text:       req.Text,
		URL:        req.URL,
		Meta:       meta,
	})
	if err != nil {
		h.storeError(w, err, "intake insert failed")
		return
	}

	if res.Duplicate {
		metrics.PostsDuplicate.Inc()
	} else {
		metrics.PostsIngested.Inc()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "received",
		"duplicate": res.Duplicate,
		"id":        res.ID,
	})
}

// listEvents returns signal events, unacknowledged by default.
func (h *handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	acknowledged := r.URL.Query().Get("acknowledged") == "true"
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be 1..500")
			return
		}
		limit = n
	}

	events, err := h.store.ListEvents(r.Context(), acknowledged, limit)
	if err != nil {
		h.storeError(w, err, "event list failed")
		return
	}
	if events == nil {
		events = []models.SignalEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func (h *handlers) ackEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	ok, err := h.store.AckEvent(r.Context(), id)
	if err != nil {
		h.storeError(w, err, "event ack failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "acknowledged", "id": id})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	backlog, err := h.store.UnprocessedCount(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"error":  "store unreachable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"unprocessed_backlog": backlog,
		"time":                time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handlers) notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

// storeError maps classified store errors onto status codes: caller
// errors are 4xx, everything else is a 5xx with no internals leaked.
func (h *handlers) storeError(w http.ResponseWriter, err error, msg string) {
	log.Error().Err(err).Msg(msg)
	switch errs.KindOf(err) {
	case errs.KindInvalidInput:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errs.KindStoreTransient:
		writeError(w, http.StatusServiceUnavailable, "store temporarily unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"status": "error", "error": message})
}

// Hijack lets the websocket upgrader take over logged connections.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}
