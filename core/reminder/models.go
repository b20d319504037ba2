package reminder

import "time"

type (
	// Settings holds a learner's reminder opt-in state. It is written by the
	// settings toggle only; the reminder engine reads it.
	Settings struct {
		UserID      string    `json:"user_id"`
		OptedIn     bool      `json:"opted_in"`
		LastOptInAt time.Time `json:"last_opt_in_at"` // UTC; set on opt-out -> opt-in transitions
		UpdatedAt   time.Time `json:"updated_at"`     // UTC
	}

	// Activity is a learner's most recent learning progress, supplied by the
	// course-progress subsystem. Absence of a record means "never active".
	Activity struct {
		UserID         string
		LastProgressAt time.Time // UTC
	}

	// DedupRecord is the reminder engine's dispatch memory for one learner.
	// At most one reminder is sent per distinct EpisodeAnchor; when the
	// learner resumes and stalls again the anchor moves, permitting exactly
	// one further reminder. Records are upserted, never deleted.
	DedupRecord struct {
		UserID             string
		LastReminderSentAt time.Time // UTC
		EpisodeAnchor      time.Time // UTC; the LastProgressAt the reminder was sent for
	}

	// Profile is the learner's contact identity as known to the account store.
	Profile struct {
		UserID    string
		Email     string
		FirstName string
		CreatedAt time.Time // UTC
	}

	DispatchFailure struct {
		UserID string `json:"user_id"`
		Reason string `json:"reason"`
	}

	// RunSummary reports one complete dispatcher pass. It is returned to the
	// caller and never persisted.
	RunSummary struct {
		RunID          string            `json:"run_id"`
		StartedAt      time.Time         `json:"started_at"`
		UsersEvaluated int               `json:"users_evaluated"`
		UsersReminded  int               `json:"users_reminded"`
		UsersSkipped   int               `json:"users_skipped"`
		Failures       []DispatchFailure `json:"failures"`
	}
)
