package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/smartcrop/advisor/internal/application/dashboard"
	"github.com/smartcrop/advisor/internal/infrastructure/http/middleware"
	"github.com/smartcrop/advisor/internal/infrastructure/http/render"
	"github.com/smartcrop/advisor/internal/ports/outbound"
)

// ReferenceHandlers serves lookup data and the dashboard summary
type ReferenceHandlers struct {
	places    outbound.LocationLookup
	dashboard DashboardBuilder
	logger    *zap.Logger
}

// NewReferenceHandlers creates new reference data handlers
func NewReferenceHandlers(places outbound.LocationLookup, dashboard DashboardBuilder, logger *zap.Logger) *ReferenceHandlers {
	return &ReferenceHandlers{
		places:    places,
		dashboard: dashboard,
		logger:    logger.Named("reference-handlers"),
	}
}

// StatesDistricts handles GET /states-districts.json. The body is the bare
// state to districts map.
func (h *ReferenceHandlers) StatesDistricts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	render.JSON(w, http.StatusOK, h.places.StatesDistricts())
}

// DashboardResponse is the body of GET /dashboard-data for a farmer.
type DashboardResponse struct {
	Success       bool          `json:"success"`
	Authenticated bool          `json:"authenticated"`
	User          *UserResponse `json:"user"`
	*dashboard.Dashboard
}

// DashboardData handles GET /dashboard-data. Guests get a bare
// unauthenticated marker instead of an error.
func (h *ReferenceHandlers) DashboardData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	farmer := middleware.CurrentUser(ctx)
	if farmer == nil {
		render.JSON(w, http.StatusOK, map[string]interface{}{
			"success":           true,
			"authenticated":     false,
			"profile_completed": false,
		})
		return
	}

	board, err := h.dashboard.Build(ctx, farmer, middleware.Language(ctx).Code)
	if err != nil {
		render.Error(w, r, h.logger, err)
		return
	}

	render.JSON(w, http.StatusOK, DashboardResponse{
		Success:       true,
		Authenticated: true,
		User:          toUserResponse(farmer),
		Dashboard:     board,
	})
}
