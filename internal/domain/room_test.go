package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidRoom(t *testing.T) {
	for _, room := range ContinentalRooms {
		assert.True(t, IsValidRoom(room), "continental room %q should be valid", room)
	}

	assert.True(t, IsValidRoom("country-US"))
	assert.True(t, IsValidRoom("country-TR"))
	assert.True(t, IsValidRoom("country-DE"))

	assert.False(t, IsValidRoom("Mars"))
	assert.False(t, IsValidRoom("global"))
	assert.False(t, IsValidRoom("country-ZZ"))
	assert.False(t, IsValidRoom("country-"))
	assert.False(t, IsValidRoom(""))
}

func TestCountryRoom(t *testing.T) {
	assert.Equal(t, "country-US", CountryRoom("US"))
	assert.True(t, IsValidRoom(CountryRoom("JP")))
}

func TestCountryName(t *testing.T) {
	assert.Equal(t, "United States of America", CountryName("US"))
	assert.Equal(t, "Turkey", CountryName("TR"))

	// Unknown codes fall back to the code itself
	assert.Equal(t, "ZZ", CountryName("ZZ"))
}

func TestFlagPath(t *testing.T) {
	assert.Equal(t, "assets/flags/us.png", FlagPath("US"))
	assert.Equal(t, "assets/flags/tr.png", FlagPath("TR"))
}

func TestContinentalRoomOf(t *testing.T) {
	assert.Equal(t, "North-America", ContinentalRoomOf("US"))
	assert.Equal(t, "Europe", ContinentalRoomOf("DE"))
	assert.Equal(t, "Asia", ContinentalRoomOf("JP"))
	assert.Equal(t, "South-America", ContinentalRoomOf("BR"))
	assert.Equal(t, "Oceania", ContinentalRoomOf("AU"))

	// Unknown codes land in the default room
	assert.Equal(t, DefaultRoom, ContinentalRoomOf("ZZ"))
}
