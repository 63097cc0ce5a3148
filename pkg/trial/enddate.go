package trial

import (
	"time"
)

// ResolveLocation returns the IANA location for the given timezone name,
// falling back to UTC when the name is empty or unknown. Accounts created
// without a usable timezone get UTC day boundaries for their trial.
func ResolveLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ComputeTrialEndDate returns the trial's end instant: 23:59:59.999 local
// time in loc, days calendar days after now, expressed in UTC.
//
// The future UTC instant is first converted to the target timezone's local
// calendar date, so the result accounts for the timezone's offset and any
// day-boundary crossing: for a UTC+2 location the returned instant reads
// 21:59:59.999Z on the local end date.
func ComputeTrialEndDate(now time.Time, loc *time.Location, days int) time.Time {
	if loc == nil {
		loc = time.UTC
	}

	local := now.In(loc).AddDate(0, 0, days)
	end := time.Date(
		local.Year(), local.Month(), local.Day(),
		23, 59, 59, 999_000_000,
		loc,
	)
	return end.UTC()
}
