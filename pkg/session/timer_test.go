package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForPersona(t *testing.T) {
	t.Parallel()

	assert.Equal(t, MinorThresholds, ForPersona(true))
	assert.Equal(t, DefaultThresholds, ForPersona(false))
}

func TestCheck_ActionPriority(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, time.August, 30, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		thresholds Thresholds
		elapsed    time.Duration
		silence    time.Duration
		nudged     bool
		want       Action
	}{
		{
			name:       "fresh session continues",
			thresholds: DefaultThresholds,
			elapsed:    time.Minute,
			silence:    time.Minute,
			want:       ActionContinue,
		},
		{
			name:       "silence prompt at exactly three minutes",
			thresholds: DefaultThresholds,
			elapsed:    10 * time.Minute,
			silence:    SilencePromptAfter,
			want:       ActionSilencePrompt,
		},
		{
			name:       "just under the silence window continues",
			thresholds: DefaultThresholds,
			elapsed:    10 * time.Minute,
			silence:    SilencePromptAfter - time.Second,
			want:       ActionContinue,
		},
		{
			name:       "nudge at the persona limit",
			thresholds: DefaultThresholds,
			elapsed:    25 * time.Minute,
			silence:    time.Minute,
			want:       ActionNudge,
		},
		{
			name:       "nudge fires only once",
			thresholds: DefaultThresholds,
			elapsed:    26 * time.Minute,
			silence:    time.Minute,
			nudged:     true,
			want:       ActionContinue,
		},
		{
			name:       "nudge outranks silence prompt",
			thresholds: DefaultThresholds,
			elapsed:    25 * time.Minute,
			silence:    5 * time.Minute,
			want:       ActionNudge,
		},
		{
			name:       "already-nudged session still gets the silence prompt",
			thresholds: DefaultThresholds,
			elapsed:    26 * time.Minute,
			silence:    5 * time.Minute,
			nudged:     true,
			want:       ActionSilencePrompt,
		},
		{
			name:       "autosave outranks nudge",
			thresholds: Thresholds{NudgeAfter: 25 * time.Minute, HardCapAfter: 2 * time.Hour},
			elapsed:    40 * time.Minute,
			silence:    AutoSaveAfter,
			want:       ActionAutoSave,
		},
		{
			name:       "hard cap outranks autosave",
			thresholds: DefaultThresholds,
			elapsed:    30 * time.Minute,
			silence:    30 * time.Minute,
			want:       ActionHardCap,
		},
		{
			name:       "minor hard cap at twenty minutes",
			thresholds: MinorThresholds,
			elapsed:    20 * time.Minute,
			silence:    time.Minute,
			want:       ActionHardCap,
		},
		{
			name:       "minor nudge at fifteen minutes",
			thresholds: MinorThresholds,
			elapsed:    15 * time.Minute,
			silence:    time.Minute,
			want:       ActionNudge,
		},
		{
			name:       "just under the minor hard cap nudges",
			thresholds: MinorThresholds,
			elapsed:    20*time.Minute - time.Second,
			silence:    time.Second,
			want:       ActionNudge,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			state := NewTimerState(uuid.New(), uuid.New(), tc.thresholds, start)
			now := start.Add(tc.elapsed)
			state = state.RecordActivity(now.Add(-tc.silence))
			if tc.nudged {
				state = state.MarkNudged()
			}

			v := Check(state, now)
			assert.Equal(t, tc.want, v.Action)
			assert.Equal(t, tc.elapsed, v.Elapsed)
			assert.Equal(t, tc.silence, v.Silence)
		})
	}
}

func TestTimerState_Immutability(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, time.August, 30, 9, 0, 0, 0, time.UTC)
	original := NewTimerState(uuid.New(), uuid.New(), DefaultThresholds, start)

	active := original.RecordActivity(start.Add(5 * time.Minute))
	require.Equal(t, start, original.LastActivityAt,
		"RecordActivity must not mutate the receiver")
	assert.Equal(t, start.Add(5*time.Minute), active.LastActivityAt)

	nudged := original.MarkNudged()
	require.False(t, original.Nudged,
		"MarkNudged must not mutate the receiver")
	assert.True(t, nudged.Nudged)
}

func TestNewTimerState_StartsWithActivity(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, time.August, 30, 9, 0, 0, 0, time.UTC)
	state := NewTimerState(uuid.New(), uuid.New(), MinorThresholds, start)

	assert.Equal(t, start, state.StartedAt)
	assert.Equal(t, start, state.LastActivityAt)
	assert.False(t, state.Nudged)
	assert.Equal(t, MinorThresholds, state.Thresholds)
}
