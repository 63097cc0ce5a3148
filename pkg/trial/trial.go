// Package trial implements the trial-phase lifecycle granted at account
// creation: a 14-day full-access window, a 14-day extended "soft landing"
// with reduced access, and the free tier afterwards.
//
// All functions in this package are pure and total: phase and warning
// decisions depend only on their arguments, and the end-date computation is
// deterministic for a given clock reading and timezone. The billing
// collaborator consumes them; nothing here persists state beyond the trial
// end instant written once by the account resolver.
package trial

import "fmt"

// Phase identifies the access tier of a trial account.
type Phase string

const (
	// PhaseFullAccess is the initial trial tier with every feature enabled.
	PhaseFullAccess Phase = "full_access"

	// PhaseExtended is the reduced-access soft-landing tier between the
	// full-access window and the free tier.
	PhaseExtended Phase = "extended"

	// PhaseFree is the terminal free tier.
	PhaseFree Phase = "free"
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// Trial phase boundaries, in whole days since the trial started.
const (
	// FullAccessDays is the length of the full-access window. Day 14 is
	// the first extended day.
	FullAccessDays = 14

	// ExtendedUntilDays is the day on which the free tier begins.
	ExtendedUntilDays = 28
)

// PhaseForDay returns the trial phase for the given number of whole days
// since the trial started. Negative inputs are treated as day zero.
func PhaseForDay(daysSinceStart int) Phase {
	switch {
	case daysSinceStart < FullAccessDays:
		return PhaseFullAccess
	case daysSinceStart < ExtendedUntilDays:
		return PhaseExtended
	default:
		return PhaseFree
	}
}

// Warning returns the user-facing milestone message for the given trial
// day, and whether one fires. Messages fire at 3, 1, and 0 days remaining
// in the full-access window and on days 1, 7, and 14 of the extended
// period; every other day produces no message.
func Warning(daysSinceStart int) (string, bool) {
	if daysSinceStart < 0 {
		daysSinceStart = 0
	}

	switch PhaseForDay(daysSinceStart) {
	case PhaseFullAccess:
		// Days remaining after today; the last full-access day is day
		// FullAccessDays-1, with 0 days remaining.
		remaining := FullAccessDays - 1 - daysSinceStart
		switch remaining {
		case 3:
			return "Your full-access trial ends in 3 days.", true
		case 1:
			return "Your full-access trial ends tomorrow.", true
		case 0:
			return "Your full-access trial ends today.", true
		}
	case PhaseExtended:
		extendedDay := daysSinceStart - FullAccessDays + 1
		switch extendedDay {
		case 1:
			return "Your full-access trial has ended. You now have reduced access for 14 more days.", true
		case 7:
			return "7 days of reduced access remaining before the free tier.", true
		case 14:
			return fmt.Sprintf("Reduced access ends today. The free tier begins on day %d.", ExtendedUntilDays), true
		}
	}

	return "", false
}
