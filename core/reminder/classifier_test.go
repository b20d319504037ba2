package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_Classify(t *testing.T) {
	now := time.Date(2021, 3, 14, 10, 0, 0, 0, time.UTC)
	threshold := 48 * time.Hour

	optedIn := func(lastOptInAt time.Time) *Settings {
		return &Settings{UserID: "u1", OptedIn: true, LastOptInAt: lastOptInAt}
	}
	activityAt := func(ts time.Time) *Activity {
		return &Activity{UserID: "u1", LastProgressAt: ts}
	}
	dedupAt := func(anchor time.Time) *DedupRecord {
		return &DedupRecord{UserID: "u1", LastReminderSentAt: anchor.Add(threshold), EpisodeAnchor: anchor}
	}

	tests := []struct {
		name        string
		settings    *Settings
		activity    *Activity
		dedup       *DedupRecord
		wantOutcome Outcome
		wantAnchor  time.Time
	}{
		{
			name:        "no settings record",
			activity:    activityAt(now.Add(-50 * time.Hour)),
			wantOutcome: OutcomeNotOptedIn,
		},
		{
			name:        "opted out",
			settings:    &Settings{UserID: "u1", OptedIn: false},
			activity:    activityAt(now.Add(-50 * time.Hour)),
			wantOutcome: OutcomeNotOptedIn,
		},
		{
			name:        "opted out ignores activity and dedup state",
			settings:    &Settings{UserID: "u1", OptedIn: false},
			activity:    activityAt(now.Add(-500 * time.Hour)),
			dedup:       dedupAt(now.Add(-100 * time.Hour)),
			wantOutcome: OutcomeNotOptedIn,
		},
		{
			name:        "recently active",
			settings:    optedIn(now.Add(-200 * time.Hour)),
			activity:    activityAt(now.Add(-10 * time.Hour)),
			wantOutcome: OutcomeRecentlyActive,
			wantAnchor:  now.Add(-10 * time.Hour),
		},
		{
			name:        "active exactly at the threshold",
			settings:    optedIn(now.Add(-200 * time.Hour)),
			activity:    activityAt(now.Add(-threshold)),
			wantOutcome: OutcomeEligible,
			wantAnchor:  now.Add(-threshold),
		},
		{
			name:        "stalled and never reminded",
			settings:    optedIn(now.Add(-200 * time.Hour)),
			activity:    activityAt(now.Add(-50 * time.Hour)),
			wantOutcome: OutcomeEligible,
			wantAnchor:  now.Add(-50 * time.Hour),
		},
		{
			name:        "stalled but already reminded for this episode",
			settings:    optedIn(now.Add(-200 * time.Hour)),
			activity:    activityAt(now.Add(-50 * time.Hour)),
			dedup:       dedupAt(now.Add(-50 * time.Hour)),
			wantOutcome: OutcomeAlreadyReminded,
			wantAnchor:  now.Add(-50 * time.Hour),
		},
		{
			name:        "resumed and stalled again since the last reminder",
			settings:    optedIn(now.Add(-200 * time.Hour)),
			activity:    activityAt(now.Add(-50 * time.Hour)),
			dedup:       dedupAt(now.Add(-100 * time.Hour)),
			wantOutcome: OutcomeEligible,
			wantAnchor:  now.Add(-50 * time.Hour),
		},
		{
			name:        "never active, opted in recently",
			settings:    optedIn(now.Add(-10 * time.Hour)),
			wantOutcome: OutcomeRecentlyActive,
			wantAnchor:  now.Add(-10 * time.Hour),
		},
		{
			name:        "never active, opted in past the threshold",
			settings:    optedIn(now.Add(-72 * time.Hour)),
			wantOutcome: OutcomeEligible,
			wantAnchor:  now.Add(-72 * time.Hour),
		},
		{
			name:        "never active, reminded for the opt-in episode",
			settings:    optedIn(now.Add(-72 * time.Hour)),
			dedup:       dedupAt(now.Add(-72 * time.Hour)),
			wantOutcome: OutcomeAlreadyReminded,
			wantAnchor:  now.Add(-72 * time.Hour),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(now, tt.settings, tt.activity, tt.dedup, threshold)
			assert.Equal(t, tt.wantOutcome, got.Outcome, "outcome")
			if !tt.wantAnchor.IsZero() {
				assert.True(t, got.Anchor.Equal(tt.wantAnchor), "anchor: want %s, got %s", tt.wantAnchor, got.Anchor)
			}
		})
	}
}

func Test_Classify_isPure(t *testing.T) {
	now := time.Date(2021, 3, 14, 10, 0, 0, 0, time.UTC)
	settings := &Settings{UserID: "u1", OptedIn: true, LastOptInAt: now.Add(-200 * time.Hour)}
	activity := &Activity{UserID: "u1", LastProgressAt: now.Add(-50 * time.Hour)}

	first := Classify(now, settings, activity, nil, 48*time.Hour)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(now, settings, activity, nil, 48*time.Hour))
	}
}
