package incidents

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/access"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/deadline"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/httputil"
)

// Pagination constants.
const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// ErrorMappings maps incident errors to HTTP responses. Exported for the
// handlers of packages that drive the lifecycle engine.
var ErrorMappings = []httputil.ErrorMapping{
	{Error: ErrIncidentNotFound, Status: http.StatusNotFound, Message: "incident not found"},
	{Error: ErrResponderNotFound, Status: http.StatusNotFound, Message: "responder not found"},
	{Error: ErrValidation, Status: http.StatusBadRequest},
	{Error: ErrInvalidScope, Status: http.StatusBadRequest},
	{Error: ErrInvalidTransition, Status: http.StatusConflict},
	{Error: ErrAssignmentRequired, Status: http.StatusConflict},
	{Error: ErrNotEditable, Status: http.StatusConflict},
	{Error: access.ErrPermissionDenied, Status: http.StatusForbidden},
	{Error: deadline.ErrTimeout, Status: http.StatusGatewayTimeout, Message: "request timed out"},
}

// Handler handles HTTP requests for the incidents module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new incidents handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: httputil.NewValidator(),
	}
}

// RegisterRoutes registers incident routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/incidents", h.List)
	r.Post("/incidents", h.Create)
	r.Get("/incidents/{id}", h.Get)
	r.Patch("/incidents/{id}", h.UpdateDetails)
	r.Post("/incidents/{id}/transitions", h.Transition)
	r.Post("/incidents/{id}/approve", h.Approve)
	r.Post("/incidents/{id}/reject", h.Reject)
	r.Put("/incidents/{id}/priority", h.ChangePriority)
	r.Post("/incidents/{id}/updates", h.AddUpdate)
	r.Post("/incidents/{id}/evidence", h.AttachEvidence)
}

// LocationRequest is a coordinate in request bodies.
type LocationRequest struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

func (l *LocationRequest) toDomain() *domain.Location {
	if l == nil {
		return nil
	}
	return &domain.Location{Lat: l.Lat, Lng: l.Lng}
}

// CreateIncidentRequest represents request body for reporting an incident.
type CreateIncidentRequest struct {
	Title         string           `json:"title" validate:"required,max=200"`
	Description   string           `json:"description" validate:"required,max=5000"`
	Category      string           `json:"category" validate:"required,max=100"`
	SubcategoryID *string          `json:"subcategory_id" validate:"omitempty,uuid"`
	Department    string           `json:"department" validate:"max=200"`
	Office        string           `json:"office" validate:"max=200"`
	Area          string           `json:"area" validate:"max=200"`
	Location      *LocationRequest `json:"location"`
	Priority      string           `json:"priority" validate:"omitempty,oneof=Low Medium High Critical"`
	EvidenceURLs  []string         `json:"evidence_urls" validate:"max=10,dive,url"`
}

// IncidentView is the API shape of an incident: the stored record plus the
// statuses the lifecycle table allows next.
type IncidentView struct {
	*domain.Incident
	AllowedTransitions []domain.IncidentStatus `json:"allowed_transitions"`
}

// NewIncidentView wraps inc for a response.
func NewIncidentView(inc *domain.Incident) IncidentView {
	return IncidentView{Incident: inc, AllowedTransitions: AllowedTransitions(inc.Status)}
}

// NewIncidentViews wraps every incident in list.
func NewIncidentViews(list []*domain.Incident) []IncidentView {
	views := make([]IncidentView, len(list))
	for i, inc := range list {
		views[i] = NewIncidentView(inc)
	}
	return views
}

// Create handles POST /incidents.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateIncidentRequest
	if !h.decode(w, r, &req) {
		return
	}

	inc, err := h.service.Create(r.Context(), httputil.GetSession(r.Context()), CreateInput{
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		SubcategoryID: req.SubcategoryID,
		Department:    req.Department,
		Office:        req.Office,
		Area:          req.Area,
		Location:      req.Location.toDomain(),
		Priority:      domain.Priority(req.Priority),
		EvidenceURLs:  req.EvidenceURLs,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, ErrorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, NewIncidentView(inc))
}

// List handles GET /incidents.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	input, err := ParseListInput(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.service.List(r.Context(), httputil.GetSession(r.Context()), input)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, ErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, NewIncidentViews(list))
}

// ParseListInput reads scope, status, category and limit query parameters.
// The scope defaults to reported.
func ParseListInput(r *http.Request) (ListInput, error) {
	q := r.URL.Query()

	input := ListInput{Scope: ScopeReported}
	if scope := q.Get("scope"); scope != "" {
		input.Scope = Scope(scope)
	}

	for _, raw := range q["status"] {
		for _, st := range strings.Split(raw, ",") {
			if st = strings.TrimSpace(st); st != "" {
				input.Statuses = append(input.Statuses, domain.IncidentStatus(st))
			}
		}
	}

	if category := q.Get("category"); category != "" {
		input.Category = &category
	}

	if l := q.Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			return ListInput{}, errors.New("limit must be a positive integer")
		}
		input.Limit = min(parsed, MaxListLimit)
	} else if input.Scope != ScopeRecent {
		input.Limit = DefaultListLimit
	}

	return input, nil
}

// Get handles GET /incidents/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	inc, err := h.service.Get(r.Context(), httputil.GetSession(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, ErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, NewIncidentView(inc))
}

// UpdateIncidentRequest represents request body for editing incident details.
type UpdateIncidentRequest struct {
	Title         *string          `json:"title" validate:"omitempty,max=200"`
	Description   *string          `json:"description" validate:"omitempty,max=5000"`
	Category      *string          `json:"category" validate:"omitempty,max=100"`
	SubcategoryID *string          `json:"subcategory_id" validate:"omitempty,uuid"`
	Department    *string          `json:"department" validate:"omitempty,max=200"`
	Office        *string          `json:"office" validate:"omitempty,max=200"`
	Area          *string          `json:"area" validate:"omitempty,max=200"`
	Location      *LocationRequest `json:"location"`
}

// UpdateDetails handles PATCH /incidents/{id}.
func (h *Handler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	var req UpdateIncidentRequest
	if !h.decode(w, r, &req) {
		return
	}

	inc, err := h.service.UpdateDetails(r.Context(), httputil.GetSession(r.Context()), chi.URLParam(r, "id"), UpdateDetailsInput{
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		SubcategoryID: req.SubcategoryID,
		Department:    req.Department,
		Office:        req.Office,
		Area:          req.Area,
		Location:      req.Location.toDomain(),
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, ErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, NewIncidentView(inc))
}

// TransitionRequest represents request body for a status change.
type TransitionRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=2000"`
}

// Transition handles POST /incidents/{id}/transitions.
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if !h.decode(w, r, &req) {
		return
	}

	inc, err := h.service.Transition(r.Context(), httputil.GetSession(r.Context()), chi.URLParam(r, "id"), domain.IncidentStatus(req.Status), req.Note)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, ErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, NewIncidentView(inc))
}

// Approve handles POST /incidents/{id}/approve.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	inc, err := h.service.Approve(r.Context(), httputil.GetSession(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, ErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, NewIncidentView(inc))
}

// RejectRequest represents request body for rejecting an incident.
type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// Reject handles POST /incidents/{id}/reject.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if !h.decode(w, r, &req) {
		return
	}

	inc, err := h.service.Reject(r.Context(), httputil.GetSession(r.Context()), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, ErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, NewIncidentView(inc))
}

// PriorityRequest represents request body for a priority change.
type PriorityRequest struct {
	Priority string `json:"priority" validate:"required,oneof=Low Medium High Critical"`
}

// ChangePriority handles PUT /incidents/{id}/priority.
func (h *Handler) ChangePriority(w http.ResponseWriter, r *http.Request) {
	var req PriorityRequest
	if !h.decode(w, r, &req) {
		return
	}

	inc, err := h.service.ChangePriority(r.Context(), httputil.GetSession(r.Context()), chi.URLParam(r, "id"), domain.Priority(req.Priority))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, ErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, NewIncidentView(inc))
}

// UpdateRequest represents request body for a progress note.
type UpdateRequest struct {
	Note string `json:"note" validate:"required,max=2000"`
}

// AddUpdate handles POST /incidents/{id}/updates.
func (h *Handler) AddUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !h.decode(w, r, &req) {
		return
	}

	inc, err := h.service.AddUpdate(r.Context(), httputil.GetSession(r.Context()), chi.URLParam(r, "id"), req.Note)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, ErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, NewIncidentView(inc))
}

// EvidenceRequest represents request body for attaching evidence.
type EvidenceRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// AttachEvidence handles POST /incidents/{id}/evidence.
func (h *Handler) AttachEvidence(w http.ResponseWriter, r *http.Request) {
	var req EvidenceRequest
	if !h.decode(w, r, &req) {
		return
	}

	inc, err := h.service.AttachEvidence(r.Context(), httputil.GetSession(r.Context()), chi.URLParam(r, "id"), req.URL)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, ErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, NewIncidentView(inc))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		httputil.ValidationError(w, err)
		return false
	}
	return true
}
