package reminder

import "time"

// Outcome is the result of classifying one learner against the stall rules.
type Outcome int

const (
	OutcomeEligible Outcome = iota
	OutcomeNotOptedIn
	OutcomeRecentlyActive
	OutcomeAlreadyReminded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEligible:
		return "eligible"
	case OutcomeNotOptedIn:
		return "not-opted-in"
	case OutcomeRecentlyActive:
		return "recently-active"
	case OutcomeAlreadyReminded:
		return "already-reminded"
	}
	return "unknown"
}

// Decision carries the classification outcome along with the episode anchor
// it refers to. Anchor is only meaningful when the learner is opted in.
type Decision struct {
	Outcome Outcome
	Anchor  time.Time
}

// Classify decides whether a learner qualifies for a stalled-learner reminder.
// settings, activity and dedup may be nil when the corresponding record does
// not exist. The function is deterministic and side-effect-free.
func Classify(now time.Time, settings *Settings, activity *Activity, dedup *DedupRecord, threshold time.Duration) Decision {
	if settings == nil || !settings.OptedIn {
		return Decision{Outcome: OutcomeNotOptedIn}
	}

	// the anchor bounds the current inactivity episode: the latest progress
	// timestamp, or the opt-in moment for learners who never progressed
	anchor := settings.LastOptInAt
	if activity != nil {
		anchor = activity.LastProgressAt
	}

	if now.Sub(anchor) < threshold {
		return Decision{Outcome: OutcomeRecentlyActive, Anchor: anchor}
	}
	if dedup != nil && dedup.EpisodeAnchor.Equal(anchor) {
		return Decision{Outcome: OutcomeAlreadyReminded, Anchor: anchor}
	}
	return Decision{Outcome: OutcomeEligible, Anchor: anchor}
}
