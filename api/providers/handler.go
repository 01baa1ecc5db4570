package providers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/tyreaid/roadaid/core/model"
	"github.com/tyreaid/roadaid/infra/logger"
)

// defaultRadiusKm applies when a provider registers without choosing a
// service radius.
const defaultRadiusKm = 15

// Directory is the slice of the dispatch manager the provider handlers use.
type Directory interface {
	UpsertProvider(p model.Provider) error
	SetProviderActive(id string, active bool) error
	Provider(id string) (model.Provider, bool)
}

// Handler serves the provider endpoints. Requests must include an
// Authorization header with "Bearer <token>" when token is non-empty.
type Handler struct {
	dir      Directory
	validate *validator.Validate
	token    string
	log      logger.Logger
}

// NewHandler creates a provider Handler.
func NewHandler(dir Directory, token string) *Handler {
	return &Handler{
		dir:      dir,
		validate: validator.New(),
		token:    token,
		log:      logger.New("providers-api"),
	}
}

// Register mounts the provider routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("GET /providers/{id}", h.auth(h.get))
	mux.Handle("PUT /providers/{id}/location", h.auth(h.location))
	mux.Handle("PUT /providers/{id}/active", h.auth(h.active))
}

func (h *Handler) auth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.token != "" && r.Header.Get("Authorization") != "Bearer "+h.token {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.dir.Provider(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type locationBody struct {
	Lat      float64 `json:"lat" validate:"min=-90,max=90"`
	Lon      float64 `json:"lon" validate:"min=-180,max=180"`
	RadiusKm float64 `json:"radius_km" validate:"omitempty,gt=0,lte=500"`
}

func (h *Handler) location(w http.ResponseWriter, r *http.Request) {
	var body locationBody
	if !h.decode(w, r, &body) {
		return
	}
	id := r.PathValue("id")
	p, ok := h.dir.Provider(id)
	if !ok {
		// First contact registers the provider as active.
		p = model.Provider{ID: id, Active: true}
	}
	p.Location = model.Location{Lat: body.Lat, Lon: body.Lon}
	if body.RadiusKm > 0 {
		p.RadiusKm = body.RadiusKm
	} else if p.RadiusKm == 0 {
		p.RadiusKm = defaultRadiusKm
	}
	if err := h.dir.UpsertProvider(p); err != nil {
		h.log.Errorf("upsert provider %s: %v", id, err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type activeBody struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *Handler) active(w http.ResponseWriter, r *http.Request) {
	var body activeBody
	if !h.decode(w, r, &body) {
		return
	}
	id := r.PathValue("id")
	if err := h.dir.SetProviderActive(id, *body.Active); err != nil {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}
	p, _ := h.dir.Provider(id)
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
