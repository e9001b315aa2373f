package assignment

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/identity"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/incidents"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/httputil"
)

var errorMappings = append([]httputil.ErrorMapping{
	{Error: ErrNotAvailable, Status: http.StatusConflict},
	{Error: identity.ErrUserNotFound, Status: http.StatusNotFound, Message: "responder not found"},
}, incidents.ErrorMappings...)

// Handler handles HTTP requests for the assignment module.
type Handler struct {
	resolver  *Resolver
	validator *validator.Validate
}

// NewHandler creates a new assignment handler.
func NewHandler(resolver *Resolver) *Handler {
	return &Handler{
		resolver:  resolver,
		validator: httputil.NewValidator(),
	}
}

// RegisterRoutes registers assignment routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/responders", h.ListCandidates)
	r.Post("/incidents/{id}/assignment", h.Assign)
}

// ListCandidates handles GET /responders.
func (h *Handler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := CandidateFilter{
		IncidentID:    q.Get("incident_id"),
		AvailableOnly: q.Get("available") == "true",
		Skill:         q.Get("skill"),
		Query:         q.Get("q"),
	}

	candidates, err := h.resolver.ListCandidates(r.Context(), httputil.GetSession(r.Context()), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, candidates)
}

// AssignRequest represents request body for assigning a responder.
type AssignRequest struct {
	ResponderID string `json:"responder_id" validate:"required"`
}

// Assign handles POST /incidents/{id}/assignment.
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	inc, err := h.resolver.Assign(r.Context(), httputil.GetSession(r.Context()), chi.URLParam(r, "id"), req.ResponderID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, incidents.NewIncidentView(inc))
}
