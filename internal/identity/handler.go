package identity

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
	{Error: ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
	{Error: ErrUserExists, Status: http.StatusConflict, Message: "profile already registered"},
	{Error: ErrEmailExists, Status: http.StatusConflict, Message: "email already in use"},
	{Error: ErrValidation, Status: http.StatusBadRequest},
	{Error: access.ErrPermissionDenied, Status: http.StatusForbidden},
	{Error: deadline.ErrTimeout, Status: http.StatusGatewayTimeout, Message: "request timed out"},
}

// Handler handles HTTP requests for the identity module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new identity handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
	}
}

// RegisterRoutes registers routes open to any authenticated subject.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/users/register", h.Register)
	r.Get("/me", h.Me)
}

// RegisterProtectedRoutes registers routes that require a registered profile.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Patch("/me", h.UpdateMe)
	r.Put("/me/push-token", h.SavePushToken)
	r.Put("/me/availability", h.SetAvailability)
	r.Put("/me/location", h.SetLocation)

	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.ListUsers)
		r.Get("/{id}", h.GetUser)
		r.Patch("/{id}", h.UpdateUser)
	})
}

// RegisterRequest represents registration request body.
type RegisterRequest struct {
	FullName   string   `json:"full_name" validate:"required,max=200"`
	Email      string   `json:"email" validate:"omitempty,email"`
	Role       string   `json:"role" validate:"omitempty,oneof=Reporter Reviewer Responder Admin"`
	Department string   `json:"department" validate:"max=200"`
	Skills     []string `json:"skills" validate:"max=20,dive,max=50"`
}

// Register handles POST /users/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	user, err := h.service.Register(r.Context(), httputil.GetSession(r.Context()), RegisterInput{
		FullName:   req.FullName,
		Email:      req.Email,
		Role:       domain.Role(req.Role),
		Department: req.Department,
		Skills:     req.Skills,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, user)
}

// Me handles GET /me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Me(r.Context(), httputil.GetSession(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, profile)
}

// UpdateProfileRequest represents request body for profile edits.
type UpdateProfileRequest struct {
	FullName   *string   `json:"full_name" validate:"omitempty,max=200"`
	Department *string   `json:"department" validate:"omitempty,max=200"`
	Skills     *[]string `json:"skills" validate:"omitempty,max=20,dive,max=50"`
}

// UpdateMe handles PATCH /me.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	h.updateProfile(w, r, httputil.GetUserID(r.Context()))
}

// UpdateUser handles PATCH /users/{id}.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	h.updateProfile(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request, id string) {
	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), httputil.GetSession(r.Context()), id, UpdateProfileInput{
		FullName:   req.FullName,
		Department: req.Department,
		Skills:     req.Skills,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, user)
}

// PushTokenRequest represents request body for saving a push token.
type PushTokenRequest struct {
	Token string `json:"token" validate:"required,max=500"`
}

// SavePushToken handles PUT /me/push-token.
func (h *Handler) SavePushToken(w http.ResponseWriter, r *http.Request) {
	var req PushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	if err := h.service.SavePushToken(r.Context(), httputil.GetSession(r.Context()), req.Token); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AvailabilityRequest represents request body for availability changes.
type AvailabilityRequest struct {
	Availability string `json:"availability" validate:"required,oneof=available busy offline"`
}

// SetAvailability handles PUT /me/availability.
func (h *Handler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	var req AvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	user, err := h.service.SetAvailability(r.Context(), httputil.GetSession(r.Context()), domain.Availability(req.Availability))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, user)
}

// LocationRequest represents request body for location updates.
type LocationRequest struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

// SetLocation handles PUT /me/location.
func (h *Handler) SetLocation(w http.ResponseWriter, r *http.Request) {
	var req LocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	user, err := h.service.SetLocation(r.Context(), httputil.GetSession(r.Context()), domain.Location{Lat: *req.Lat, Lng: *req.Lng})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, user)
}

// ListUsers handles GET /users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	var role *domain.Role
	if v := r.URL.Query().Get("role"); v != "" {
		rl := domain.Role(v)
		role = &rl
	}

	users, err := h.service.ListUsers(r.Context(), httputil.GetSession(r.Context()), role)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, users)
}

// GetUser handles GET /users/{id}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetProfile(r.Context(), httputil.GetSession(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, user)
}
