// -----------------------------------------------------------------------
// Progress Message Interpreter - Free-text status messages to facts
// -----------------------------------------------------------------------

package status

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/vigil/internal/models"
)

// The automation worker reports progress as free text. These patterns
// extract the counters the UI cares about. Extraction is best-effort:
// the output is a hint only, never authoritative (the unifier prefers
// fields the backend reports directly).
var (
	// "Dispenser #3 of 8", "Form #2/5", "dispenser #4"
	dispenserPattern = regexp.MustCompile(`(?i)\b(?:dispenser|form)\s*#\s*(\d+)(?:\s*(?:of|/)\s*(\d+))?`)

	// "Fuel type: Diesel (2/5)", "fuel grade: Unleaded 91 (1/3)"
	fuelPattern = regexp.MustCompile(`(?i)\bfuel\s+(?:type|grade)\s*:\s*([^()]+?)\s*\(\s*(\d+)\s*/\s*(\d+)\s*\)`)

	// Internal navigation paths the worker sometimes leaks into messages,
	// e.g. ".../work-orders/183204/visits/77102...". The two numeric
	// segments are the work-order id and the visit id.
	internalPathPattern = regexp.MustCompile(`/[A-Za-z][A-Za-z0-9_-]*/(\d+)/[A-Za-z][A-Za-z0-9_-]*/(\d+)`)
)

// Interpret extracts structured progress facts from a free-text status
// message. Pure and total: malformed or empty input yields empty facts,
// never an error. First match per category wins. A number that fails to
// parse leaves the field nil rather than defaulting to zero.
func Interpret(message string) models.ProgressFacts {
	var facts models.ProgressFacts
	if strings.TrimSpace(message) == "" {
		return facts
	}

	if m := dispenserPattern.FindStringSubmatch(message); m != nil {
		facts.DispenserCurrent = parseCount(m[1])
		if len(m) > 2 && m[2] != "" {
			facts.DispenserTotal = parseCount(m[2])
		}
	}

	if m := fuelPattern.FindStringSubmatch(message); m != nil {
		facts.FuelType = strings.TrimSpace(m[1])
		facts.FuelCurrent = parseCount(m[2])
		facts.FuelTotal = parseCount(m[3])
	}

	return facts
}

// SanitizeMessage replaces any message that embeds an internal work-order
// path with a fixed display template. Raw internal addresses must never
// reach the user; only the work-order and visit ids survive.
func SanitizeMessage(message string) string {
	m := internalPathPattern.FindStringSubmatch(message)
	if m == nil {
		return message
	}
	return fmt.Sprintf("Processing visit: Work Order #%s, Visit #%s", m[1], m[2])
}

// parseCount parses a decimal counter, returning nil on failure.
func parseCount(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
