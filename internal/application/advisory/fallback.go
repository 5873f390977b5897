package advisory

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	domain "github.com/smartcrop/advisor/internal/domain/advisory"
)

const (
	fertilizerKgPerAcre = 120
	assumedFarmAcres    = 5
)

var trends = []string{"up", "down", "stable"}

// fallbacks synthesises kind-shaped results when the provider cannot be
// used. Values are plain JSON shapes (string, []any, map[string]any) so a
// fallback looks exactly like a decoded provider payload.
type fallbacks struct {
	mu      sync.Mutex
	rng     *rand.Rand
	printer *message.Printer
}

func newFallbacks(rng *rand.Rand) *fallbacks {
	return &fallbacks{
		rng:     rng,
		printer: message.NewPrinter(language.English),
	}
}

// For returns the fallback fields of kind. Unknown kinds yield an empty map.
func (f *fallbacks) For(kind domain.Kind, snap domain.Snapshot) map[string]any {
	switch kind {
	case domain.KindMarket:
		return f.market()
	case domain.KindFertilizer:
		return f.fertilizer(snap)
	case domain.KindQuickMarket:
		return map[string]any{"price": "₹ 2,100", "trend": "stable"}
	case domain.KindQuickFertilizer:
		return map[string]any{"npk": "10:26:26", "quantity": "120 kg/acre"}
	}
	if task, ok := kind.Task(); ok {
		return taskFallback(task, snap)
	}
	return map[string]any{}
}

// intn returns a uniform integer in [lo, hi].
func (f *fallbacks) intn(lo, hi int) int {
	return lo + f.rng.IntN(hi-lo+1)
}

func (f *fallbacks) rupees(amount int) string {
	return f.printer.Sprintf("₹ %d", amount)
}

func (f *fallbacks) market() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	return map[string]any{
		"price":             f.rupees(f.intn(1800, 3200)) + " per quintal",
		"trend":             trends[f.rng.IntN(len(trends))],
		"trend_percentage":  fmt.Sprintf("%.1f%%", 0.5+f.rng.Float64()*4.5),
		"trend_explanation": "Prices influenced by seasonal demand",
		"best_time_to_sell": "Within 7-10 days",
		"nearby_mandis": []any{
			map[string]any{"name": "APMC Market", "price": f.rupees(f.intn(1850, 3100)), "distance": "15 km"},
			map[string]any{"name": "Co-op Market", "price": f.rupees(f.intn(1750, 3000)), "distance": "25 km"},
		},
		"storage_advice":       "Store in dry place if prices are expected to rise",
		"government_schemes":   "Check PM-KISAN for subsidy updates",
		"prediction_next_week": "Stable to slightly upward trend",
		"personalized_advice":  "Monitor local mandi prices daily",
	}
}

func (f *fallbacks) fertilizer(snap domain.Snapshot) map[string]any {
	acres := snap.FarmSize
	if acres <= 0 {
		acres = assumedFarmAcres
	}
	total := strconv.FormatFloat(acres*fertilizerKgPerAcre, 'f', -1, 64)

	return map[string]any{
		"npk_ratio":         "10:26:26",
		"quantity_per_acre": fmt.Sprintf("%d kg", fertilizerKgPerAcre),
		"total_required":    total + " kg for your farm",
		"recommended_brands": []any{
			"IFFCO", "Coromandel", "Nagarjuna",
		},
		"application_schedule": []any{
			map[string]any{"stage": "Basal", "timing": "At sowing", "quantity": "50% of total"},
			map[string]any{"stage": "Top Dressing", "timing": "After 30 days", "quantity": "50% of total"},
		},
		"organic_alternatives": []any{
			"Vermicompost", "Neem cake", "Farmyard manure",
		},
		"estimated_cost":       "₹ 8,400",
		"government_subsidies": "40% subsidy available under PM-KISAN",
		"soil_health_tips":     "Add organic matter to improve soil structure",
		"irrigation_tips":      "Use drip irrigation for water efficiency",
		"personalized_advice":  "Get soil testing done for precise recommendations",
	}
}

type taskAdvice struct {
	summary     string
	steps       []any
	inputs      []any
	timing      string
	precautions string
}

var taskAdvices = map[domain.TaskType]taskAdvice{
	domain.TaskSoilPrep: {
		summary: "Prepare a fine, level seedbed with enough organic matter before sowing.",
		steps: []any{
			"Plough deeply once after the previous harvest",
			"Add well-rotted farmyard manure or compost",
			"Harrow twice to break clods",
			"Level the field for even water distribution",
		},
		inputs:      []any{"Farmyard manure", "Rotavator or harrow", "Soil testing kit"},
		timing:      "Two to three weeks before sowing",
		precautions: "Avoid working the soil when it is too wet",
	},
	domain.TaskPestControl: {
		summary: "Scout the field weekly and act early with the least harmful control that works.",
		steps: []any{
			"Inspect plants twice a week for pests and disease spots",
			"Install pheromone and yellow sticky traps",
			"Spray neem oil at the first sign of infestation",
			"Use recommended chemicals only above the threshold level",
		},
		inputs:      []any{"Neem oil 1500 ppm", "Pheromone traps", "Yellow sticky traps"},
		timing:      "Throughout the growing season, early morning or evening",
		precautions: "Wear protective gear and follow label doses",
	},
	domain.TaskIrrigation: {
		summary: "Irrigate according to crop stage and soil moisture rather than a fixed calendar.",
		steps: []any{
			"Check soil moisture at root depth before each irrigation",
			"Give light, frequent irrigation at establishment",
			"Ensure water at flowering and grain filling",
			"Stop irrigation one to two weeks before harvest",
		},
		inputs:      []any{"Soil moisture meter", "Drip or sprinkler set", "Mulch"},
		timing:      "Early morning to reduce evaporation",
		precautions: "Avoid waterlogging, which damages roots",
	},
	domain.TaskHarvesting: {
		summary: "Harvest at physiological maturity and dry the produce quickly to protect quality.",
		steps: []any{
			"Check grain hardness and colour for maturity",
			"Drain the field a week before harvest where applicable",
			"Harvest in dry weather",
			"Dry produce to safe moisture before storage",
		},
		inputs:      []any{"Sickle or combine harvester", "Tarpaulins", "Moisture meter"},
		timing:      "When most of the crop shows maturity signs",
		precautions: "Do not store produce with high moisture",
	},
}

func taskFallback(task domain.TaskType, snap domain.Snapshot) map[string]any {
	advice := taskAdvices[task]
	return map[string]any{
		"task":               fmt.Sprintf("%s for %s", task, snap.Crop()),
		"summary":            advice.summary,
		"steps":              append([]any(nil), advice.steps...),
		"recommended_inputs": append([]any(nil), advice.inputs...),
		"best_timing":        advice.timing,
		"precautions":        advice.precautions,
	}
}
