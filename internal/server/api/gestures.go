// Package api provides HTTP API handlers for the Signify exemplar store.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/ayusman/signify/internal/log"
	"github.com/ayusman/signify/internal/store"
)

// Reloader rebuilds the recognition indices from the store.
type Reloader interface {
	ReloadIndex() (int, error)
}

// GestureHandler handles HTTP requests for gesture exemplars.
type GestureHandler struct {
	store    *store.Store
	reloader Reloader
}

// NewGestureHandler creates a new GestureHandler with the given store.
// reloader may be nil, in which case edits take effect on the next reload.
func NewGestureHandler(s *store.Store, reloader Reloader) *GestureHandler {
	return &GestureHandler{store: s, reloader: reloader}
}

// Register mounts the gesture routes under /api on the root router r.
// Routes on a PathPrefix subrouter answer 404 instead of 405 on a method
// mismatch, so full paths are used.
func (h *GestureHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/gestures", h.List).Methods(http.MethodGet)
	r.HandleFunc("/api/gestures", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/api/gestures/reload", h.Reload).Methods(http.MethodPost)
	r.HandleFunc("/api/gestures/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/gestures/{id}", h.Update).Methods(http.MethodPut)
	r.HandleFunc("/api/gestures/{id}", h.Delete).Methods(http.MethodDelete)
}

// Request and response types

type gestureRequest struct {
	Name  string      `json:"name"`
	Kind  string      `json:"kind"`
	Left  *store.Hand `json:"left"`
	Right *store.Hand `json:"right"`
}

type gestureResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Kind      string      `json:"kind"`
	Left      *store.Hand `json:"left,omitempty"`
	Right     *store.Hand `json:"right,omitempty"`
	CreatedAt string      `json:"created_at"`
	UpdatedAt string      `json:"updated_at"`
}

type listGesturesResponse struct {
	Gestures []gestureResponse `json:"gestures"`
}

type reloadResponse struct {
	Exemplars int `json:"exemplars"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// toResponse converts a store.Gesture to a gestureResponse.
func toResponse(g *store.Gesture) gestureResponse {
	return gestureResponse{
		ID:        g.ID,
		Name:      g.Name,
		Kind:      string(g.Kind),
		Left:      g.Left,
		Right:     g.Right,
		CreatedAt: g.CreatedAt.Format(time.RFC3339),
		UpdatedAt: g.UpdatedAt.Format(time.RFC3339),
	}
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Debugw("Failed to encode response", "error", err)
		}
	}
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, errorResponse{Error: message})
}

// validate normalizes and checks a create or update request.
func (req *gestureRequest) validate() error {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return errors.New("name is required")
	}
	if req.Kind == "" {
		req.Kind = string(store.GestureKindStatic)
	}
	if k := store.GestureKind(req.Kind); k != store.GestureKindStatic && k != store.GestureKindDynamic {
		return fmt.Errorf("invalid gesture kind %q", req.Kind)
	}
	if req.Left == nil && req.Right == nil {
		return errors.New("at least one hand is required")
	}
	for _, h := range []*store.Hand{req.Left, req.Right} {
		if h == nil {
			continue
		}
		if h.GyroAxis < 0 || h.GyroAxis > 3 || h.AccelAxis < 0 || h.AccelAxis > 3 {
			return errors.New("axis must be 0 (none), 1 (x), 2 (y) or 3 (z)")
		}
	}
	return nil
}

// List handles GET /api/gestures and returns all gestures.
func (h *GestureHandler) List(w http.ResponseWriter, r *http.Request) {
	gestures, err := h.store.Gestures().List()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list gestures")
		return
	}

	response := listGesturesResponse{
		Gestures: make([]gestureResponse, 0, len(gestures)),
	}

	for _, g := range gestures {
		response.Gestures = append(response.Gestures, toResponse(g))
	}

	WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/gestures/{id} and returns a single gesture.
func (h *GestureHandler) Get(w http.ResponseWriter, r *http.Request) {
	gesture, err := h.store.Gestures().GetByID(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Gesture not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to get gesture")
		return
	}

	WriteJSON(w, http.StatusOK, toResponse(gesture))
}

// Create handles POST /api/gestures and stores a new exemplar.
func (h *GestureHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req gestureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := req.validate(); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.store.Gestures().GetByName(req.Name); err == nil {
		WriteError(w, http.StatusConflict, "Gesture name already exists")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		WriteError(w, http.StatusInternalServerError, "Failed to check gesture name")
		return
	}

	gesture := &store.Gesture{
		Name:  req.Name,
		Kind:  store.GestureKind(req.Kind),
		Left:  req.Left,
		Right: req.Right,
	}

	if err := h.store.Gestures().Create(gesture); err != nil {
		log.Errorw("Failed to create gesture", "name", req.Name, "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to create gesture")
		return
	}

	h.reload()
	WriteJSON(w, http.StatusCreated, toResponse(gesture))
}

// Update handles PUT /api/gestures/{id} and replaces an exemplar.
func (h *GestureHandler) Update(w http.ResponseWriter, r *http.Request) {
	gesture, err := h.store.Gestures().GetByID(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Gesture not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to get gesture")
		return
	}

	var req gestureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := req.validate(); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if other, err := h.store.Gestures().GetByName(req.Name); err == nil && other.ID != gesture.ID {
		WriteError(w, http.StatusConflict, "Gesture name already exists")
		return
	}

	gesture.Name = req.Name
	gesture.Kind = store.GestureKind(req.Kind)
	gesture.Left = req.Left
	gesture.Right = req.Right

	if err := h.store.Gestures().Update(gesture); err != nil {
		log.Errorw("Failed to update gesture", "id", gesture.ID, "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to update gesture")
		return
	}

	h.reload()
	WriteJSON(w, http.StatusOK, toResponse(gesture))
}

// Delete handles DELETE /api/gestures/{id} and removes an exemplar.
func (h *GestureHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.store.Gestures().Delete(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Gesture not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to delete gesture")
		return
	}

	h.reload()
	w.WriteHeader(http.StatusNoContent)
}

// Reload handles POST /api/gestures/reload and rebuilds the indices.
func (h *GestureHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.reloader == nil {
		WriteError(w, http.StatusServiceUnavailable, "Recognition pipeline not available")
		return
	}

	n, err := h.reloader.ReloadIndex()
	if err != nil {
		log.Errorw("Index reload failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to reload gestures")
		return
	}

	WriteJSON(w, http.StatusOK, reloadResponse{Exemplars: n})
}

// reload refreshes the indices after an edit. Failures leave the previous
// indices in place.
func (h *GestureHandler) reload() {
	if h.reloader == nil {
		return
	}
	if _, err := h.reloader.ReloadIndex(); err != nil {
		log.Warnw("Index reload after edit failed", "error", err)
	}
}
