package notifications

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/access"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/deadline"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/httputil"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrNotificationNotFound, Status: http.StatusNotFound, Message: "notification not found"},
	{Error: ErrInvalidNotification, Status: http.StatusBadRequest},
	{Error: access.ErrPermissionDenied, Status: http.StatusForbidden},
	{Error: deadline.ErrTimeout, Status: http.StatusGatewayTimeout, Message: "request timed out"},
}

// Handler handles HTTP requests for the notifications module.
type Handler struct {
	dispatcher *Dispatcher
}

// NewHandler creates a new notifications handler.
func NewHandler(dispatcher *Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

// RegisterRoutes registers notification routes (require auth).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/unread-count", h.UnreadCount)
		r.Post("/read-all", h.MarkAllRead)
		r.Post("/{id}/read", h.MarkRead)
	})
}

// List handles GET /notifications.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	session := httputil.GetSession(r.Context())

	items, err := h.dispatcher.List(r.Context(), session)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, items)
}

// UnreadCount handles GET /notifications/unread-count.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	session := httputil.GetSession(r.Context())

	count, err := h.dispatcher.UnreadCount(r.Context(), session)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]int{"unread": count})
}

// MarkRead handles POST /notifications/{id}/read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	session := httputil.GetSession(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.dispatcher.MarkRead(r.Context(), session, id); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /notifications/read-all.
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	session := httputil.GetSession(r.Context())

	n, err := h.dispatcher.MarkAllRead(r.Context(), session)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]int{"updated": n})
}
