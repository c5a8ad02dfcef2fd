// Package httpapi exposes the mover service over a JSON HTTP API.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"movercore/internal/adapters/archive"
	"movercore/internal/core"
	"movercore/pkg/domain"
)

// Handler routes /api/v1 requests to the mover service. Exports is optional;
// when nil the export endpoints return 404.
type Handler struct {
	Service *core.Service
	Exports archive.Scheduler
}

// NewHandler constructs an API handler over the given service.
func NewHandler(service *core.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "service not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/v1/movers":
		switch r.Method {
		case http.MethodPost:
			h.handleCreateMover(w, r)
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"movers": h.Service.Queries().ListMovers()})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case path == "/api/v1/items":
		switch r.Method {
		case http.MethodPost:
			h.handleCreateItem(w, r)
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"items": h.Service.Queries().ListItems()})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case path == "/api/v1/transitions":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		filter, ok := parseFilter(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transitions": h.Service.Queries().Transitions(filter)})
	case path == "/api/v1/leaderboard":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleLeaderboard(w, r)
	case strings.HasPrefix(path, "/api/v1/movers/"):
		h.handleMover(w, r, strings.TrimPrefix(path, "/api/v1/movers/"))
	case strings.HasPrefix(path, "/api/v1/exports"):
		if h.Exports == nil {
			http.NotFound(w, r)
			return
		}
		h.handleExports(w, r, path)
	default:
		http.NotFound(w, r)
	}
}

type createMoverRequest struct {
	Name        string  `json:"name"`
	WeightLimit float64 `json:"weight_limit"`
}

func (h *Handler) handleCreateMover(w http.ResponseWriter, r *http.Request) {
	var req createMoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid mover payload")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "mover name required")
		return
	}
	if req.WeightLimit <= 0 {
		writeError(w, http.StatusBadRequest, "weight limit must be positive")
		return
	}
	mover, err := h.Service.CreateMover(r.Context(), req.Name, req.WeightLimit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"mover": mover})
}

type createItemRequest struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

func (h *Handler) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid item payload")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "item name required")
		return
	}
	if req.Weight <= 0 {
		writeError(w, http.StatusBadRequest, "item weight must be positive")
		return
	}
	item, err := h.Service.CreateItem(r.Context(), req.Name, req.Weight)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": item})
}

func (h *Handler) handleMover(w http.ResponseWriter, r *http.Request, remainder string) {
	segments := strings.Split(remainder, "/")
	id := segments[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if len(segments) == 1 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		detail, ok := h.Service.Queries().GetMover(id)
		if !ok {
			writeError(w, http.StatusNotFound, "mover not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"mover": detail})
		return
	}

	if len(segments) != 2 {
		http.NotFound(w, r)
		return
	}

	switch segments[1] {
	case "load":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleLoad(w, r, id)
	case "start-mission":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		mover, err := h.Service.StartMission(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"mover": mover})
	case "end-mission":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		mover, err := h.Service.EndMission(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"mover": mover})
	case "transitions":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		filter, ok := parseFilter(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transitions": h.Service.Queries().MoverTransitions(id, filter)})
	default:
		http.NotFound(w, r)
	}
}

type loadRequest struct {
	ItemIDs []string `json:"item_ids"`
}

func (h *Handler) handleLoad(w http.ResponseWriter, r *http.Request, id string) {
	var req loadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid load payload")
		return
	}
	mover, err := h.Service.Load(r.Context(), id, req.ItemIDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mover": mover})
}

func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": h.Service.Queries().Leaderboard(limit)})
}

type exportRequest struct {
	MoverID     string   `json:"mover_id"`
	Formats     []string `json:"formats"`
	RequestedBy string   `json:"requested_by"`
}

func (h *Handler) handleExports(w http.ResponseWriter, r *http.Request, path string) {
	if path == "/api/v1/exports" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req exportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid export payload")
			return
		}
		formats := make([]archive.Format, 0, len(req.Formats))
		for _, f := range req.Formats {
			switch strings.ToLower(strings.TrimSpace(f)) {
			case "json":
				formats = append(formats, archive.FormatJSON)
			case "csv":
				formats = append(formats, archive.FormatCSV)
			default:
				writeError(w, http.StatusBadRequest, "unsupported export format")
				return
			}
		}
		record, err := h.Exports.EnqueueExport(r.Context(), archive.Input{
			MoverID:     req.MoverID,
			Formats:     formats,
			RequestedBy: req.RequestedBy,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
		return
	}

	if !strings.HasPrefix(path, "/api/v1/exports/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(path, "/api/v1/exports/")
	record, ok := h.Exports.GetExport(id)
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": record})
}

// parseFilter builds a transition filter from query parameters. Reports false
// after writing an error response when a parameter is malformed.
func parseFilter(w http.ResponseWriter, r *http.Request) (domain.TransitionFilter, bool) {
	var filter domain.TransitionFilter
	q := r.URL.Query()
	if raw := q.Get("action"); raw != "" {
		action := domain.Action(raw)
		if !action.Valid() {
			writeError(w, http.StatusBadRequest, "invalid action filter")
			return filter, false
		}
		filter.Action = &action
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from timestamp")
			return filter, false
		}
		filter.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to timestamp")
			return filter, false
		}
		filter.To = &t
	}
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return filter, false
		}
		filter.Limit = parsed
	}
	if raw := q.Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return filter, false
		}
		filter.Offset = parsed
	}
	if order := q.Get("order"); strings.EqualFold(order, "asc") {
		filter.Ascending = true
	}
	return filter, true
}

// statusForKind maps the error taxonomy onto HTTP statuses. The switch is
// total over the defined kinds; anything unrecognised is treated as internal.
func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindBadRequest:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindUnprocessable:
		return http.StatusUnprocessableEntity
	case domain.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	message := "internal server error"
	var derr *domain.Error
	if errors.As(err, &derr) {
		message = derr.PublicMessage()
	}
	writeJSON(w, statusForKind(kind), map[string]any{"error": message, "kind": string(kind)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
