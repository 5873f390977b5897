// Package advisory defines the recommendation kinds, the farmer snapshot a
// prompt is built from and the result shape every recommendation carries.
package advisory

import (
	"strings"
	"time"
)

// Kind selects the prompt and schema of a recommendation.
type Kind string

const (
	KindMarket          Kind = "market"
	KindFertilizer      Kind = "fertilizer"
	KindQuickMarket     Kind = "quick_market"
	KindQuickFertilizer Kind = "quick_fertilizer"

	taskPrefix = "task:"
)

// TaskType names a field operation for task-specific advice.
type TaskType string

const (
	TaskSoilPrep    TaskType = "soil_prep"
	TaskPestControl TaskType = "pest_control"
	TaskIrrigation  TaskType = "irrigation"
	TaskHarvesting  TaskType = "harvesting"
)

// TaskTypes lists the supported task types.
var TaskTypes = []TaskType{TaskSoilPrep, TaskPestControl, TaskIrrigation, TaskHarvesting}

// ParseTaskType accepts one of the supported task types.
func ParseTaskType(raw string) (TaskType, bool) {
	for _, t := range TaskTypes {
		if string(t) == raw {
			return t, true
		}
	}
	return "", false
}

// TaskKind returns the kind for a task type.
func TaskKind(t TaskType) Kind {
	return Kind(taskPrefix + string(t))
}

// Task returns the task type of a task kind.
func (k Kind) Task() (TaskType, bool) {
	if !strings.HasPrefix(string(k), taskPrefix) {
		return "", false
	}
	return ParseTaskType(strings.TrimPrefix(string(k), taskPrefix))
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindMarket, KindFertilizer, KindQuickMarket, KindQuickFertilizer:
		return true
	}
	_, ok := k.Task()
	return ok
}

// Season is the Indian cropping season label used in prompts.
type Season string

const (
	Kharif Season = "Kharif"
	Rabi   Season = "Rabi"
)

// SeasonFor returns Kharif for June through October and Rabi otherwise.
func SeasonFor(t time.Time) Season {
	if m := t.Month(); m >= time.June && m <= time.October {
		return Kharif
	}
	return Rabi
}
