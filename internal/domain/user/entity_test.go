package user

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcrop/advisor/internal/domain/language"
)

func TestNewUser(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
		wantErr  error
	}{
		{"valid farmer", "ravi_kumar", "Ravi@Example.IN", "secret1", nil},
		{"short username", "rk", "ravi@example.in", "secret1", ErrUsernameTooShort},
		{"email without dot", "ravi_kumar", "ravi@localhost", "secret1", ErrInvalidEmail},
		{"email without at", "ravi_kumar", "ravi.example.in", "secret1", ErrInvalidEmail},
		{"email longer than column", "ravi_kumar", strings.Repeat("r", 90) + "@example.in", "secret1", ErrInvalidEmail},
		{"email at column width", "ravi_kumar", strings.Repeat("r", 89) + "@example.in", "secret1", nil},
		{"short password", "ravi_kumar", "ravi@example.in", "12345", ErrPasswordTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := NewUser(tt.username, tt.email, tt.password, language.Telugu)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, u)
				return
			}
			require.NoError(t, err)
			if tt.email == "Ravi@Example.IN" {
				assert.Equal(t, "ravi@example.in", u.Email())
			}
			assert.Equal(t, language.Telugu, u.PreferredLanguage())
			assert.True(t, u.IsActive())
			assert.True(t, u.VoiceEnabled())
			assert.NoError(t, u.CheckPassword(tt.password))
			assert.Error(t, u.CheckPassword("wrong-password"))

			events := u.Events()
			require.Len(t, events, 1)
			assert.Equal(t, "farmer.registered", events[0].EventName())
			assert.Empty(t, u.Events())
		})
	}
}

func TestNewUser_UnsupportedLanguageFallsBackToDefault(t *testing.T) {
	u, err := NewUser("ravi_kumar", "ravi@example.in", "secret1", "fr")

	require.NoError(t, err)
	assert.Equal(t, language.Default, u.PreferredLanguage())
}

func TestApplyProfile(t *testing.T) {
	u, err := NewUser("ravi_kumar", "ravi@example.in", "secret1", language.English)
	require.NoError(t, err)
	u.Events()

	state, crop, lang := "Telangana", " Rice ", "HI"
	size, badSize := 4.5, -2.0
	now := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, u.ApplyProfile(ProfileUpdate{State: &state, PrimaryCrop: &crop, FarmSize: &size, PreferredLanguage: &lang}, now))
	require.NoError(t, u.ApplyProfile(ProfileUpdate{FarmSize: &badSize}, now))

	p := u.Profile()
	assert.Equal(t, "Telangana", p.State)
	assert.Equal(t, "Rice", p.PrimaryCrop)
	assert.Equal(t, 4.5, p.FarmSize)
	assert.Equal(t, language.Hindi, u.PreferredLanguage())
	assert.True(t, u.ProfileCompleted())
	assert.Equal(t, now, *u.LastWeatherFetch())
	assert.Len(t, u.Events(), 2)
}

func TestApplyProfile_RejectsUnsupportedLanguage(t *testing.T) {
	u, err := NewUser("ravi_kumar", "ravi@example.in", "secret1", language.English)
	require.NoError(t, err)
	lang := "klingon"

	err = u.ApplyProfile(ProfileUpdate{PreferredLanguage: &lang}, time.Now())

	assert.ErrorIs(t, err, ErrInvalidLanguage)
	assert.Equal(t, language.English, u.PreferredLanguage())
}

func TestSnapshotRoundTrip(t *testing.T) {
	u, err := NewUser("ravi_kumar", "ravi@example.in", "secret1", language.Tamil)
	require.NoError(t, err)
	u.SetLocation("Telangana", "Hyderabad", Coordinates{Latitude: 17.38, Longitude: 78.48})

	restored := Reconstitute(u.Snapshot())

	assert.Equal(t, u.ID(), restored.ID())
	assert.Equal(t, u.Profile(), restored.Profile())
	assert.True(t, restored.ProfileCompleted())
	assert.NoError(t, restored.CheckPassword("secret1"))
	assert.Empty(t, restored.Events())
}
