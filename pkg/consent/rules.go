package consent

import (
	"strings"
	"time"
)

// Jurisdiction-specific age thresholds, below which guardian consent is
// mandatory.
const (
	// GDPRAgeThreshold is the EU digital age of consent in this system's
	// simplified model.
	GDPRAgeThreshold = 16

	// COPPAAgeThreshold is the US COPPA age threshold.
	COPPAAgeThreshold = 13
)

// Requirement is the outcome of the jurisdiction rule table.
type Requirement struct {
	// Required reports whether guardian consent is mandatory.
	Required bool

	// Type is the regime requiring consent; empty when not required.
	Type Type
}

// AgeOn returns the calendar-correct age in whole years at the given
// instant: the year difference, minus one if the birthday has not yet
// occurred in at's year. Day-count division would be wrong across leap
// years, so the comparison is by year, month, and day.
func AgeOn(birthDate, at time.Time) int {
	years := at.Year() - birthDate.Year()
	if at.Month() < birthDate.Month() ||
		(at.Month() == birthDate.Month() && at.Day() < birthDate.Day()) {
		years--
	}
	return years
}

// CheckRequired applies the jurisdiction rule table to a birth date:
//
//	EU and age < 16 ⇒ GDPR consent required
//	US and age < 13 ⇒ COPPA consent required
//	otherwise       ⇒ not required
//
// The jurisdiction code is matched case-insensitively. Age is evaluated
// at the given instant.
func CheckRequired(birthDate time.Time, jurisdiction string, at time.Time) Requirement {
	age := AgeOn(birthDate, at)

	switch strings.ToUpper(jurisdiction) {
	case "EU":
		if age < GDPRAgeThreshold {
			return Requirement{Required: true, Type: TypeGDPR}
		}
	case "US":
		if age < COPPAAgeThreshold {
			return Requirement{Required: true, Type: TypeCOPPA}
		}
	}
	return Requirement{}
}
