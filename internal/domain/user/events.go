package user

import (
	"github.com/google/uuid"

	"github.com/smartcrop/advisor/internal/domain/shared"
)

// FarmerRegisteredEvent is recorded when a new account is created.
type FarmerRegisteredEvent struct {
	shared.BaseEvent
	UserID   uuid.UUID
	Username string
}

func (FarmerRegisteredEvent) EventName() string { return "farmer.registered" }

// ProfileUpdatedEvent is recorded when the farm profile changes.
type ProfileUpdatedEvent struct {
	shared.BaseEvent
	UserID uuid.UUID
}

func (ProfileUpdatedEvent) EventName() string { return "farmer.profile_updated" }
