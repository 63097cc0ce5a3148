package session

import "time"

// Action is the timer's verdict for one evaluation instant.
type Action string

const (
	// ActionContinue: no limit reached, the session keeps running.
	ActionContinue Action = "continue"

	// ActionSilencePrompt: no activity for the silence window, ask the
	// learner whether they are still there.
	ActionSilencePrompt Action = "silence_prompt"

	// ActionNudge: the session has run long enough that the learner
	// should be nudged to take a break.
	ActionNudge Action = "nudge"

	// ActionAutoSave: no activity for the autosave window, save and
	// close the session.
	ActionAutoSave Action = "auto_save"

	// ActionHardCap: the absolute session limit is reached, the session
	// must end now.
	ActionHardCap Action = "hard_cap"
)

// Verdict is the outcome of one timer evaluation.
type Verdict struct {
	// Action is the single highest-priority action due at the
	// evaluation instant.
	Action Action

	// Elapsed is the session length at the evaluation instant.
	Elapsed time.Duration

	// Silence is the time since the last activity.
	Silence time.Duration
}

// Check evaluates the timer at the given instant and returns the single
// action due. When several limits are crossed at once, severity decides:
//
//	hard_cap > auto_save > nudge > silence_prompt > continue
//
// Boundary instants count as crossed: a session at exactly the hard cap
// is over. The nudge fires at most once per session; callers record
// delivery with [TimerState.MarkNudged].
func Check(state TimerState, now time.Time) Verdict {
	v := Verdict{
		Action:  ActionContinue,
		Elapsed: now.Sub(state.StartedAt),
		Silence: now.Sub(state.LastActivityAt),
	}

	switch {
	case v.Elapsed >= state.Thresholds.HardCapAfter:
		v.Action = ActionHardCap
	case v.Silence >= AutoSaveAfter:
		v.Action = ActionAutoSave
	case v.Elapsed >= state.Thresholds.NudgeAfter && !state.Nudged:
		v.Action = ActionNudge
	case v.Silence >= SilencePromptAfter:
		v.Action = ActionSilencePrompt
	}
	return v
}
