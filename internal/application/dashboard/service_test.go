package dashboard

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domain "github.com/smartcrop/advisor/internal/domain/advisory"
	"github.com/smartcrop/advisor/internal/domain/language"
	"github.com/smartcrop/advisor/internal/domain/user"
)

type fixedAdvisor struct {
	kinds  []domain.Kind
	fields map[string]any
}

func (f *fixedAdvisor) Recommend(_ context.Context, kind domain.Kind, _ domain.Snapshot) domain.Result {
	f.kinds = append(f.kinds, kind)
	fields := f.fields
	if fields == nil {
		fields = map[string]any{"price": "₹ 2,100", "trend": "up"}
	}
	return domain.Result{Kind: kind, Source: domain.SourceFallback, Fields: fields}
}

func (f *fixedAdvisor) Now() time.Time {
	return time.Date(2024, time.August, 1, 0, 0, 0, 0, time.UTC)
}

type fixedStats struct {
	sessions, messages int64
	err                error
}

func (f fixedStats) Stats(context.Context, *user.User) (int64, int64, error) {
	return f.sessions, f.messages, f.err
}

func farmer(t *testing.T, crop string, size float64) *user.User {
	t.Helper()
	u, err := user.NewUser("meena", "meena@example.in", "secret1", language.Tamil)
	require.NoError(t, err)
	state, district := "Tamil Nadu", "Madurai"
	require.NoError(t, u.ApplyProfile(user.ProfileUpdate{State: &state, District: &district, PrimaryCrop: &crop, FarmSize: &size}, time.Now()))
	return u
}

func TestBuild(t *testing.T) {
	advisor := &fixedAdvisor{}
	svc := NewService(advisor, fixedStats{sessions: 3, messages: 17}, rand.New(rand.NewPCG(3, 4)), zaptest.NewLogger(t))

	d, err := svc.Build(context.Background(), farmer(t, "Cotton", 2.5), language.Tamil)

	require.NoError(t, err)
	assert.Equal(t, []domain.Kind{domain.KindQuickMarket}, advisor.kinds)
	assert.Equal(t, int64(3), d.Stats.ChatSessions)
	assert.Equal(t, int64(17), d.Stats.TotalMessages)
	require.NotNil(t, d.Stats.FarmSize)
	assert.Equal(t, 2.5, *d.Stats.FarmSize)
	assert.Equal(t, "₹ 2,100", d.Market.Price)
	assert.Equal(t, "Tamil Nadu, Madurai", d.Market.Location)
	assert.Equal(t, "1.2%", d.Market.TrendPercentage)
	assert.Equal(t, "Flowering", d.CropStatus.Stage)
	assert.Equal(t, "Pest monitoring", d.CropStatus.NextAction)
	assert.GreaterOrEqual(t, d.CropStatus.Progress, 30)
	assert.LessOrEqual(t, d.CropStatus.Progress, 80)
	assert.GreaterOrEqual(t, d.CropStatus.DaysToHarvest, 30)
	assert.LessOrEqual(t, d.CropStatus.DaysToHarvest, 120)
	assert.Len(t, d.FarmUpdates, 3)
	assert.Equal(t, "Market prices trending upward", d.FarmUpdates[2].Message)
}

func TestBuild_TrendPercentageFromQuote(t *testing.T) {
	advisor := &fixedAdvisor{fields: map[string]any{"price": "₹ 6,900", "trend": "down", "trend_percentage": "3.4%"}}
	svc := NewService(advisor, fixedStats{}, nil, zaptest.NewLogger(t))

	d, err := svc.Build(context.Background(), farmer(t, "Cotton", 2.5), language.Tamil)

	require.NoError(t, err)
	assert.Equal(t, "3.4%", d.Market.TrendPercentage)
	assert.Equal(t, "down", d.Market.Trend)
}

func TestBuild_UnknownCropUsesDefaults(t *testing.T) {
	svc := NewService(&fixedAdvisor{}, fixedStats{}, nil, zaptest.NewLogger(t))

	d, err := svc.Build(context.Background(), farmer(t, "Millet", 0), language.English)

	require.NoError(t, err)
	assert.Equal(t, "Growing", d.CropStatus.Stage)
	assert.Equal(t, "Regular monitoring", d.CropStatus.NextAction)
	assert.Nil(t, d.Stats.FarmSize)
}

func TestBuild_StatsError(t *testing.T) {
	svc := NewService(&fixedAdvisor{}, fixedStats{err: errors.New("db down")}, nil, zaptest.NewLogger(t))

	_, err := svc.Build(context.Background(), farmer(t, "Rice", 1), language.English)

	assert.Error(t, err)
}
