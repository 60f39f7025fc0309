package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpret_DispenserProgress(t *testing.T) {
	facts := Interpret("Processing Dispenser #3 of 8")

	require.NotNil(t, facts.DispenserCurrent)
	require.NotNil(t, facts.DispenserTotal)
	assert.Equal(t, 3, *facts.DispenserCurrent)
	assert.Equal(t, 8, *facts.DispenserTotal)
}

func TestInterpret_DispenserSlashSeparator(t *testing.T) {
	facts := Interpret("Form #2/5 submitted")

	require.NotNil(t, facts.DispenserCurrent)
	require.NotNil(t, facts.DispenserTotal)
	assert.Equal(t, 2, *facts.DispenserCurrent)
	assert.Equal(t, 5, *facts.DispenserTotal)
}

func TestInterpret_DispenserWithoutTotal(t *testing.T) {
	facts := Interpret("now on dispenser #4")

	require.NotNil(t, facts.DispenserCurrent)
	assert.Equal(t, 4, *facts.DispenserCurrent)
	assert.Nil(t, facts.DispenserTotal)
}

func TestInterpret_FuelProgress(t *testing.T) {
	facts := Interpret("Fuel type: Diesel (2/5)")

	assert.Equal(t, "Diesel", facts.FuelType)
	require.NotNil(t, facts.FuelCurrent)
	require.NotNil(t, facts.FuelTotal)
	assert.Equal(t, 2, *facts.FuelCurrent)
	assert.Equal(t, 5, *facts.FuelTotal)
}

func TestInterpret_FuelGradeWithSpaces(t *testing.T) {
	facts := Interpret("fuel grade: Unleaded 91 (1/3)")

	assert.Equal(t, "Unleaded 91", facts.FuelType)
	require.NotNil(t, facts.FuelCurrent)
	assert.Equal(t, 1, *facts.FuelCurrent)
}

func TestInterpret_CombinedMessage(t *testing.T) {
	facts := Interpret("Dispenser #2 of 6 - Fuel type: E10 (1/2)")

	require.NotNil(t, facts.DispenserCurrent)
	assert.Equal(t, 2, *facts.DispenserCurrent)
	assert.Equal(t, "E10", facts.FuelType)
	require.NotNil(t, facts.FuelTotal)
	assert.Equal(t, 2, *facts.FuelTotal)
}

func TestInterpret_EmptyAndMalformedInput(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"no counters here",
		"dispenser without a number",
		"fuel type: (/)",
	}

	for _, message := range cases {
		facts := Interpret(message)
		assert.True(t, facts.IsEmpty(), "expected empty facts for %q", message)
	}
}

func TestInterpret_FirstMatchWins(t *testing.T) {
	facts := Interpret("Dispenser #1 of 4 then Dispenser #9 of 9")

	require.NotNil(t, facts.DispenserCurrent)
	assert.Equal(t, 1, *facts.DispenserCurrent)
	require.NotNil(t, facts.DispenserTotal)
	assert.Equal(t, 4, *facts.DispenserTotal)
}

func TestSanitizeMessage_InternalPath(t *testing.T) {
	message := "Navigating to https://backend.internal/work-orders/183204/visits/77102/forms"

	sanitized := SanitizeMessage(message)

	assert.Equal(t, "Processing visit: Work Order #183204, Visit #77102", sanitized)
}

func TestSanitizeMessage_PlainMessagePassesThrough(t *testing.T) {
	message := "Processing Dispenser #3 of 8"

	assert.Equal(t, message, SanitizeMessage(message))
}

func TestSanitizeMessage_Empty(t *testing.T) {
	assert.Equal(t, "", SanitizeMessage(""))
}
