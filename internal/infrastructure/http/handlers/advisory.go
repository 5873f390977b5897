package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/smartcrop/advisor/internal/domain/advisory"
	"github.com/smartcrop/advisor/internal/infrastructure/http/middleware"
	"github.com/smartcrop/advisor/internal/infrastructure/http/render"
	apperrors "github.com/smartcrop/advisor/pkg/errors"
)

// AdvisoryHandlers serves the personalised recommendations
type AdvisoryHandlers struct {
	advisor Advisor
	logger  *zap.Logger
}

// NewAdvisoryHandlers creates new recommendation handlers
func NewAdvisoryHandlers(advisor Advisor, logger *zap.Logger) *AdvisoryHandlers {
	return &AdvisoryHandlers{
		advisor: advisor,
		logger:  logger.Named("advisory-handlers"),
	}
}

// RecommendationRequest optionally overrides profile fields for one
// recommendation.
type RecommendationRequest struct {
	State          string       `json:"state" validate:"max=100"`
	District       string       `json:"district" validate:"max=100"`
	PrimaryCrop    string       `json:"primary_crop" validate:"max=100"`
	FarmSize       lenientFloat `json:"farm_size"`
	SoilType       string       `json:"soil_type" validate:"max=50"`
	IrrigationType string       `json:"irrigation_type" validate:"max=50"`
}

func (req RecommendationRequest) overrides() advisory.Overrides {
	o := advisory.Overrides{
		State:          req.State,
		District:       req.District,
		PrimaryCrop:    req.PrimaryCrop,
		SoilType:       req.SoilType,
		IrrigationType: req.IrrigationType,
	}
	if req.FarmSize.Value != nil {
		o.FarmSize = *req.FarmSize.Value
	}
	return o
}

// PersonalizedMarket handles POST /api/personalized-market
func (h *AdvisoryHandlers) PersonalizedMarket(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	result := h.advisor.Recommend(r.Context(), advisory.KindMarket, snap)
	location := fmt.Sprintf("%s, %s", snap.State, snap.District)

	data := stamped(result)
	data["user_crop"] = snap.Crop()
	data["user_location"] = location

	render.JSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"market_data": data,
		"user": map[string]interface{}{
			"crop":     snap.Crop(),
			"location": location,
		},
	})
}

// FertilizerRecommendation handles POST /api/fertilizer-recommendation
func (h *AdvisoryHandlers) FertilizerRecommendation(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	result := h.advisor.Recommend(r.Context(), advisory.KindFertilizer, snap)
	farmSize := farmSizeOf(snap)

	data := stamped(result)
	data["user_crop"] = snap.Crop()
	data["farm_size"] = farmSize

	render.JSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"fertilizer_data": data,
		"user": map[string]interface{}{
			"crop":      snap.Crop(),
			"farm_size": farmSize,
		},
	})
}

// QuickRecommendations handles GET /api/quick-recommendations
func (h *AdvisoryHandlers) QuickRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap := h.profileSnapshot(r)

	market := h.advisor.Recommend(ctx, advisory.KindQuickMarket, snap)
	fertilizer := h.advisor.Recommend(ctx, advisory.KindQuickFertilizer, snap)

	render.JSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"market":     market.Fields,
		"fertilizer": fertilizer.Fields,
		"user": map[string]interface{}{
			"crop":      snap.Crop(),
			"location":  fmt.Sprintf("%s, %s", snap.State, snap.District),
			"farm_size": farmSizeOf(snap),
		},
	})
}

// TaskRecommendation handles GET /api/task-recommendation/{taskType}
func (h *AdvisoryHandlers) TaskRecommendation(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "taskType")
	task, ok := advisory.ParseTaskType(raw)
	if !ok {
		render.Error(w, r, h.logger, apperrors.NewInvalidTaskTypeError(raw))
		return
	}

	snap := h.profileSnapshot(r)
	result := h.advisor.Recommend(r.Context(), advisory.TaskKind(task), snap)

	render.JSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"task_type":      task,
		"recommendation": result.Fields,
		"user_crop":      snap.Crop(),
	})
}

func (h *AdvisoryHandlers) profileSnapshot(r *http.Request) advisory.Snapshot {
	ctx := r.Context()
	return advisory.SnapshotOf(middleware.CurrentUser(ctx), middleware.Language(ctx).Code, h.advisor.Now())
}

// snapshot builds the farmer snapshot with the request overrides applied.
func (h *AdvisoryHandlers) snapshot(w http.ResponseWriter, r *http.Request) (advisory.Snapshot, bool) {
	var req RecommendationRequest
	if err := render.DecodeOptional(w, r, &req); err != nil {
		render.Error(w, r, h.logger, err)
		return advisory.Snapshot{}, false
	}
	if err := validateRequest(req); err != nil {
		render.Error(w, r, h.logger, err)
		return advisory.Snapshot{}, false
	}
	return h.profileSnapshot(r).With(req.overrides()), true
}

// stamped copies the result fields and adds the generation time.
func stamped(result advisory.Result) map[string]interface{} {
	data := make(map[string]interface{}, len(result.Fields)+3)
	for k, v := range result.Fields {
		data[k] = v
	}
	data["timestamp"] = result.GeneratedAt.UTC().Format(time.RFC3339)
	return data
}

func farmSizeOf(snap advisory.Snapshot) *float64 {
	if snap.FarmSize <= 0 {
		return nil
	}
	size := snap.FarmSize
	return &size
}
