// Package session implements the learning-session timer: persona-specific
// session length limits, hard caps, silence detection, and autosave
// scheduling. The timer itself is a pure function over an immutable
// [TimerState] snapshot; persistence of activity snapshots lives in the
// Redis-backed [Store].
package session

import (
	"time"

	"github.com/google/uuid"
)

// Thresholds are the timing limits applied to one session, chosen by
// persona.
type Thresholds struct {
	// NudgeAfter is how long a session may run before the learner is
	// nudged to take a break.
	NudgeAfter time.Duration

	// HardCapAfter is the absolute session length limit. Once elapsed
	// time reaches it the session must end.
	HardCapAfter time.Duration
}

// Fixed timing rules shared by all personas.
const (
	// SilencePromptAfter is how long without activity before the learner
	// is asked whether they are still there.
	SilencePromptAfter = 3 * time.Minute

	// AutoSaveAfter is how long without activity before the session is
	// saved and closed automatically.
	AutoSaveAfter = 30 * time.Minute
)

// Persona-specific limits.
var (
	// MinorThresholds applies to learner profiles: shorter sessions with
	// an earlier nudge.
	MinorThresholds = Thresholds{
		NudgeAfter:   15 * time.Minute,
		HardCapAfter: 20 * time.Minute,
	}

	// DefaultThresholds applies to all other sessions.
	DefaultThresholds = Thresholds{
		NudgeAfter:   25 * time.Minute,
		HardCapAfter: 30 * time.Minute,
	}
)

// ForPersona selects the thresholds for a session: minor personas get the
// shorter limits.
func ForPersona(minor bool) Thresholds {
	if minor {
		return MinorThresholds
	}
	return DefaultThresholds
}

// TimerState is an immutable snapshot of one session's timing. Methods
// that advance the state return a new value.
type TimerState struct {
	// SessionID identifies the session.
	SessionID uuid.UUID

	// ProfileID is the profile running the session.
	ProfileID uuid.UUID

	// StartedAt is when the session began.
	StartedAt time.Time

	// LastActivityAt is the most recent learner activity.
	LastActivityAt time.Time

	// Thresholds are the persona-specific limits for this session.
	Thresholds Thresholds

	// Nudged records that the break nudge has already been delivered, so
	// it fires at most once per session.
	Nudged bool
}

// NewTimerState starts a session timer at the given instant.
func NewTimerState(sessionID, profileID uuid.UUID, thresholds Thresholds, startedAt time.Time) TimerState {
	return TimerState{
		SessionID:      sessionID,
		ProfileID:      profileID,
		StartedAt:      startedAt,
		LastActivityAt: startedAt,
		Thresholds:     thresholds,
	}
}

// RecordActivity returns a copy of the state with the last-activity
// instant advanced. The receiver is unchanged.
func (s TimerState) RecordActivity(at time.Time) TimerState {
	s.LastActivityAt = at
	return s
}

// MarkNudged returns a copy of the state with the nudge recorded as
// delivered. The receiver is unchanged.
func (s TimerState) MarkNudged() TimerState {
	s.Nudged = true
	return s
}
