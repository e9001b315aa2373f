package catalog

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/access"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/deadline"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/httputil"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrCategoryNotFound, Status: http.StatusNotFound, Message: "category not found"},
	{Error: ErrSubcategoryNotFound, Status: http.StatusNotFound, Message: "subcategory not found"},
	{Error: ErrDuplicateName, Status: http.StatusConflict},
	{Error: ErrValidation, Status: http.StatusBadRequest},
	{Error: access.ErrPermissionDenied, Status: http.StatusForbidden},
	{Error: deadline.ErrTimeout, Status: http.StatusGatewayTimeout, Message: "request timed out"},
}

// Handler handles HTTP requests for the catalog module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new catalog handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
	}
}

// RegisterRoutes registers category routes. Reads are open to every
// registered user; writes are checked by the service.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)

		r.Post("/{id}/subcategories", h.AddSubcategory)
		r.Patch("/{id}/subcategories/{subID}", h.RenameSubcategory)
		r.Post("/{id}/subcategories/{subID}/toggle", h.ToggleSubcategory)
		r.Delete("/{id}/subcategories/{subID}", h.DeleteSubcategory)
	})
}

// List handles GET /categories.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := Filter{}
	if r.URL.Query().Get("include_archived") == "true" {
		filter.IncludeArchived = true
	}

	categories, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, categories)
}

// Get handles GET /categories/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	category, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, category)
}

// CreateCategoryRequest represents request body for creating a category.
type CreateCategoryRequest struct {
	Name          string   `json:"name" validate:"required,min=1,max=100"`
	Priority      string   `json:"priority" validate:"omitempty,oneof=Low Normal High Critical"`
	Icon          string   `json:"icon" validate:"max=50"`
	Color         string   `json:"color" validate:"max=30"`
	Status        string   `json:"status" validate:"omitempty,oneof=Active Archived"`
	Subcategories []string `json:"subcategories" validate:"max=50,dive,max=100"`
}

// Create handles POST /categories.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	category, err := h.service.Create(r.Context(), httputil.GetSession(r.Context()), CreateInput{
		Name:          req.Name,
		Priority:      domain.CategoryPriority(req.Priority),
		Icon:          req.Icon,
		Color:         req.Color,
		Status:        domain.CategoryStatus(req.Status),
		Subcategories: req.Subcategories,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, category)
}

// UpdateCategoryRequest represents request body for updating a category.
type UpdateCategoryRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=100"`
	Priority *string `json:"priority" validate:"omitempty,oneof=Low Normal High Critical"`
	Icon     *string `json:"icon" validate:"omitempty,max=50"`
	Color    *string `json:"color" validate:"omitempty,max=30"`
	Status   *string `json:"status" validate:"omitempty,oneof=Active Archived"`
}

// Update handles PATCH /categories/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	input := UpdateInput{
		Name:  req.Name,
		Icon:  req.Icon,
		Color: req.Color,
	}
	if req.Priority != nil {
		p := domain.CategoryPriority(*req.Priority)
		input.Priority = &p
	}
	if req.Status != nil {
		s := domain.CategoryStatus(*req.Status)
		input.Status = &s
	}

	category, err := h.service.Update(r.Context(), httputil.GetSession(r.Context()), chi.URLParam(r, "id"), input)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, category)
}

// Delete handles DELETE /categories/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), httputil.GetSession(r.Context()), chi.URLParam(r, "id")); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SubcategoryRequest represents request body for naming a subcategory.
type SubcategoryRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// AddSubcategory handles POST /categories/{id}/subcategories.
func (h *Handler) AddSubcategory(w http.ResponseWriter, r *http.Request) {
	var req SubcategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	category, err := h.service.AddSubcategory(r.Context(), httputil.GetSession(r.Context()), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, category)
}

// RenameSubcategory handles PATCH /categories/{id}/subcategories/{subID}.
func (h *Handler) RenameSubcategory(w http.ResponseWriter, r *http.Request) {
	var req SubcategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	category, err := h.service.RenameSubcategory(r.Context(), httputil.GetSession(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "subID"), req.Name)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, category)
}

// ToggleSubcategory handles POST /categories/{id}/subcategories/{subID}/toggle.
func (h *Handler) ToggleSubcategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.service.ToggleSubcategory(r.Context(), httputil.GetSession(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "subID"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, category)
}

// DeleteSubcategory handles DELETE /categories/{id}/subcategories/{subID}.
func (h *Handler) DeleteSubcategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.service.DeleteSubcategory(r.Context(), httputil.GetSession(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "subID"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, category)
}
