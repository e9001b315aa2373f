package messages

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/incidents"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/httputil"
)

var errorMappings = append([]httputil.ErrorMapping{
	{Error: ErrValidation, Status: http.StatusBadRequest},
}, incidents.ErrorMappings...)

// Handler handles HTTP requests for incident threads.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new messages handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
	}
}

// RegisterRoutes registers message routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/incidents/{id}/messages", h.List)
	r.Post("/incidents/{id}/messages", h.Send)
}

// List handles GET /incidents/{id}/messages.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), httputil.GetSession(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, items)
}

// SendRequest represents request body for posting a message.
type SendRequest struct {
	Message string `json:"message" validate:"required"`
}

// Send handles POST /incidents/{id}/messages.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	msg, err := h.service.Send(r.Context(), httputil.GetSession(r.Context()), chi.URLParam(r, "id"), req.Message)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, msg)
}
