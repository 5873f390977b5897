// Package testutils provides test data factories for consistent test data generation
package testutils

import (
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/smartcrop/advisor/internal/domain/chat"
	"github.com/smartcrop/advisor/internal/domain/language"
	"github.com/smartcrop/advisor/internal/domain/user"
)

// DefaultPassword is the password of every factory-built farmer
const DefaultPassword = "kharif-2024"

var crops = []string{"Rice", "Cotton", "Maize", "Groundnut", "Red Gram", "Chilli"}

// FarmerFactory provides methods to create test farmers
type FarmerFactory struct {
	faker *gofakeit.Faker
}

// NewFarmerFactory creates a new farmer factory with seeded faker
func NewFarmerFactory(seed int64) *FarmerFactory {
	return &FarmerFactory{
		faker: gofakeit.New(seed),
	}
}

// Credentials returns a fresh username and email pair
func (f *FarmerFactory) Credentials() (username, email string) {
	username = fmt.Sprintf("%s_%d", f.faker.Username(), f.faker.Number(100, 999))
	return username, f.faker.Email()
}

// Farmer creates a registered farmer with no profile
func (f *FarmerFactory) Farmer(t testing.TB) *user.User {
	t.Helper()
	username, email := f.Credentials()
	u, err := user.NewUser(username, email, DefaultPassword, language.English)
	require.NoError(t, err)
	u.Events()
	return u
}

// FarmerWithProfile creates a farmer in Hyderabad with a completed profile
func (f *FarmerFactory) FarmerWithProfile(t testing.TB) *user.User {
	t.Helper()
	u := f.Farmer(t)

	size := f.faker.Float64Range(1, 20)
	crop := crops[f.faker.Number(0, len(crops)-1)]
	soil := "Black"
	irrigation := "Drip"
	require.NoError(t, u.ApplyProfile(user.ProfileUpdate{
		FarmSize:       &size,
		PrimaryCrop:    &crop,
		SoilType:       &soil,
		IrrigationType: &irrigation,
	}, time.Now()))
	u.SetLocation("Telangana", "Hyderabad", user.Coordinates{Latitude: 17.385, Longitude: 78.4867})
	u.Events()
	return u
}

// Message builds a chat message for the given session and owner
func Message(t testing.TB, sessionID string, owner *uuid.UUID, role chat.Role, content string, at time.Time) *chat.Message {
	t.Helper()
	m, err := chat.NewMessage(sessionID, owner, role, content, language.English, at)
	require.NoError(t, err)
	return m
}
