package analytics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/access"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/deadline"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/httputil"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrInvalidRange, Status: http.StatusBadRequest},
	{Error: access.ErrPermissionDenied, Status: http.StatusForbidden},
	{Error: deadline.ErrTimeout, Status: http.StatusGatewayTimeout, Message: "request timed out"},
}

// Handler handles HTTP requests for analytics.
type Handler struct {
	service *Service
}

// NewHandler creates a new analytics handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers analytics routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/analytics", h.Report)
}

// Report handles GET /analytics?range=7d.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	rng := Range(r.URL.Query().Get("range"))
	if rng == "" {
		rng = Range7Days
	}

	report, err := h.service.Report(r.Context(), httputil.GetSession(r.Context()), rng)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, report)
}
