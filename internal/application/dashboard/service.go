// Package dashboard assembles the farmer's home screen summary.
package dashboard

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	domain "github.com/smartcrop/advisor/internal/domain/advisory"
	"github.com/smartcrop/advisor/internal/domain/language"
	"github.com/smartcrop/advisor/internal/domain/user"
)

// Recommender is the slice of the recommendation pipeline the dashboard uses.
type Recommender interface {
	Recommend(ctx context.Context, kind domain.Kind, snap domain.Snapshot) domain.Result
	Now() time.Time
}

// ChatStats counts a farmer's chat activity.
type ChatStats interface {
	Stats(ctx context.Context, u *user.User) (sessions, messages int64, err error)
}

var cropStages = map[string]string{
	"Rice":      "Vegetative",
	"Wheat":     "Tillering",
	"Maize":     "Silking",
	"Cotton":    "Flowering",
	"Sugarcane": "Grand Growth",
}

var nextActions = map[string]string{
	"Rice":      "Fertilizer application",
	"Wheat":     "Weed control",
	"Maize":     "Harvest preparation",
	"Cotton":    "Pest monitoring",
	"Sugarcane": "Irrigation",
}

// Stats summarises farm and chat figures.
type Stats struct {
	ChatSessions  int64    `json:"chat_sessions"`
	TotalMessages int64    `json:"total_messages"`
	FarmSize      *float64 `json:"farm_size"`
	CropAge       string   `json:"crop_age"`
}

// defaultTrendPercentage is shown when the quick quote carries no weekly
// change; the quick market schema asks only for price and trend.
const defaultTrendPercentage = "1.2%"

func trendPercentage(quote domain.Result) string {
	if pct := quote.String("trend_percentage"); pct != "" {
		return pct
	}
	return defaultTrendPercentage
}

// Market is the price tile.
type Market struct {
	Crop            string `json:"crop"`
	Price           string `json:"price"`
	Unit            string `json:"unit"`
	Trend           string `json:"trend"`
	TrendPercentage string `json:"trend_percentage"`
	Location        string `json:"location"`
}

// CropStatus is the growth tile.
type CropStatus struct {
	Stage         string `json:"stage"`
	Progress      int    `json:"progress"`
	NextAction    string `json:"next_action"`
	DaysToHarvest int    `json:"days_to_harvest"`
}

// Update is one item of the farm updates feed.
type Update struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Icon     string `json:"icon"`
	Priority string `json:"priority"`
}

// Dashboard is the full summary.
type Dashboard struct {
	Stats       Stats      `json:"stats"`
	Market      Market     `json:"market"`
	CropStatus  CropStatus `json:"crop_status"`
	FarmUpdates []Update   `json:"farm_updates"`
	QuickTips   []string   `json:"quick_tips"`
}

// Service builds dashboards.
type Service struct {
	advisor Recommender
	chats   ChatStats
	mu      sync.Mutex
	rng     *rand.Rand
	logger  *zap.Logger
}

// NewService creates a dashboard service. A nil rng seeds a random one.
func NewService(advisor Recommender, chats ChatStats, rng *rand.Rand, logger *zap.Logger) *Service {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Service{
		advisor: advisor,
		chats:   chats,
		rng:     rng,
		logger:  logger.Named("dashboard"),
	}
}

// Build returns the dashboard of farmer u.
func (s *Service) Build(ctx context.Context, u *user.User, lang language.Code) (*Dashboard, error) {
	sessions, messages, err := s.chats.Stats(ctx, u)
	if err != nil {
		return nil, err
	}

	profile := u.Profile()
	snap := domain.SnapshotOf(u, lang, s.advisor.Now())
	quote := s.advisor.Recommend(ctx, domain.KindQuickMarket, snap)

	var farmSize *float64
	if profile.FarmSize > 0 {
		size := profile.FarmSize
		farmSize = &size
	}

	crop := snap.Crop()
	progress, daysToHarvest := s.sample()

	s.logger.Debug("Dashboard built",
		zap.Stringer("user_id", u.ID()),
		zap.String("market_source", string(quote.Source)),
	)

	return &Dashboard{
		Stats: Stats{
			ChatSessions:  sessions,
			TotalMessages: messages,
			FarmSize:      farmSize,
			CropAge:       "45 days",
		},
		Market: Market{
			Crop:            crop,
			Price:           quote.String("price"),
			Unit:            "per quintal",
			Trend:           quote.String("trend"),
			TrendPercentage: trendPercentage(quote),
			Location:        fmt.Sprintf("%s, %s", profile.State, profile.District),
		},
		CropStatus: CropStatus{
			Stage:         lookup(cropStages, crop, "Growing"),
			Progress:      progress,
			NextAction:    lookup(nextActions, crop, "Regular monitoring"),
			DaysToHarvest: daysToHarvest,
		},
		FarmUpdates: []Update{
			{Type: "weather", Title: "Weather Update", Message: "Clear skies expected for next 3 days", Icon: "fa-cloud-sun", Priority: "info"},
			{Type: "crop", Title: "Crop Health", Message: crop + " growing well", Icon: "fa-seedling", Priority: "success"},
			{Type: "market", Title: "Price Alert", Message: "Market prices trending " + trendWord(quote.String("trend")), Icon: "fa-chart-line", Priority: "warning"},
		},
		QuickTips: []string{
			"Apply fertilizer for " + crop + " this week",
			"Check soil moisture before next irrigation",
			"Monitor for pest activity",
		},
	}, nil
}

func (s *Service) sample() (progress, daysToHarvest int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return 30 + s.rng.IntN(51), 30 + s.rng.IntN(91)
}

func lookup(m map[string]string, key, fallback string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return fallback
}

func trendWord(trend string) string {
	switch trend {
	case "up":
		return "upward"
	case "down":
		return "downward"
	}
	return "stable"
}
