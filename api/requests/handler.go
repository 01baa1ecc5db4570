package requests

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/tyreaid/roadaid/core/dispatch"
	"github.com/tyreaid/roadaid/core/model"
	"github.com/tyreaid/roadaid/infra/logger"
)

// Service is the slice of the dispatch manager the request handlers use.
type Service interface {
	CreateRequest(ctx context.Context, in dispatch.NewRequest) (model.ServiceRequest, error)
	GetRequest(ctx context.Context, id string) (model.ServiceRequest, error)
	PendingRequests(ctx context.Context) ([]model.ServiceRequest, error)
	VisibilityFor(ctx context.Context, providerID string) (dispatch.Visibility, error)
	Accept(ctx context.Context, requestID, providerID string) (model.ServiceRequest, error)
	Complete(ctx context.Context, requestID, providerID string) (model.ServiceRequest, error)
	Cancel(ctx context.Context, requestID, actorID string) (model.ServiceRequest, error)
}

// Handler serves the request endpoints. Requests must include an
// Authorization header with "Bearer <token>" when token is non-empty.
type Handler struct {
	svc      Service
	validate *validator.Validate
	token    string
	log      logger.Logger
}

// NewHandler creates a request Handler.
func NewHandler(svc Service, token string) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
		token:    token,
		log:      logger.New("requests-api"),
	}
}

// Register mounts the request routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /requests", h.auth(h.create))
	mux.Handle("GET /requests", h.auth(h.visibility))
	mux.Handle("GET /requests/pending", h.auth(h.pending))
	mux.Handle("GET /requests/{id}", h.auth(h.get))
	mux.Handle("POST /requests/{id}/accept", h.auth(h.accept))
	mux.Handle("POST /requests/{id}/complete", h.auth(h.complete))
	mux.Handle("POST /requests/{id}/cancel", h.auth(h.cancel))
}

func (h *Handler) auth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.token != "" && r.Header.Get("Authorization") != "Bearer "+h.token {
			writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}
		next(w, r)
	})
}

type createBody struct {
	RequesterID string  `json:"requester_id" validate:"required"`
	Lat         float64 `json:"lat" validate:"min=-90,max=90"`
	Lon         float64 `json:"lon" validate:"min=-180,max=180"`
	Priority    string  `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	Title       string  `json:"title" validate:"max=200"`
	Description string  `json:"description" validate:"max=2000"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var body createBody
	if !h.decode(w, r, &body) {
		return
	}
	priority, _ := model.PriorityFromString(body.Priority)
	req, err := h.svc.CreateRequest(r.Context(), dispatch.NewRequest{
		RequesterID: body.RequesterID,
		Location:    model.Location{Lat: body.Lat, Lon: body.Lon},
		Priority:    priority,
		Title:       body.Title,
		Description: body.Description,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *Handler) visibility(w http.ResponseWriter, r *http.Request) {
	providerID := r.URL.Query().Get("providerId")
	if providerID == "" {
		writeError(w, http.StatusBadRequest, "validation", "providerId query parameter is required")
		return
	}
	vis, err := h.svc.VisibilityFor(r.Context(), providerID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vis)
}

func (h *Handler) pending(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.svc.PendingRequests(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if reqs == nil {
		reqs = []model.ServiceRequest{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.GetRequest(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type providerBody struct {
	ProviderID string `json:"provider_id" validate:"required"`
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	var body providerBody
	if !h.decode(w, r, &body) {
		return
	}
	req, err := h.svc.Accept(r.Context(), r.PathValue("id"), body.ProviderID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	var body providerBody
	if !h.decode(w, r, &body) {
		return
	}
	req, err := h.svc.Complete(r.Context(), r.PathValue("id"), body.ProviderID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type cancelBody struct {
	ActorID string `json:"actor_id" validate:"required"`
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	var body cancelBody
	if !h.decode(w, r, &body) {
		return
	}
	req, err := h.svc.Cancel(r.Context(), r.PathValue("id"), body.ActorID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	reason := dispatch.Reason(err)
	status := statusFor(reason)
	if status == http.StatusInternalServerError {
		h.log.Errorf("request handler: %v", err)
	}
	writeError(w, status, reason, err.Error())
}

func statusFor(reason string) int {
	switch reason {
	case "validation":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "not_authorized", "invalid_provider":
		return http.StatusForbidden
	case "already_claimed", "terminal_state", "invalid_transition", "state_changed":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func writeError(w http.ResponseWriter, status int, reason, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Reason: reason})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
