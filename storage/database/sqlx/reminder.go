package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/reminder"
)

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// Settings

type settingsRow struct {
	UserID      string    `db:"user_id"`
	OptedIn     bool      `db:"opted_in"`
	LastOptInAt null.Time `db:"last_opt_in_at"`
	UpdatedAt   null.Time `db:"updated_at"`
}

func (r settingsRow) settings() reminder.Settings {
	return reminder.Settings{
		UserID:      r.UserID,
		OptedIn:     r.OptedIn,
		LastOptInAt: r.LastOptInAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
	}
}

type settingsRepository struct {
	db *sqlx.DB
}

var _ reminder.SettingsRepository = (*settingsRepository)(nil) // interface compliance check

func NewSettingsRepository(db *sqlx.DB) *settingsRepository {
	return &settingsRepository{db: db}
}

func (repo settingsRepository) GetOptedInSettings(ctx context.Context) ([]reminder.Settings, error) {
	var rows []settingsRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT user_id, opted_in, last_opt_in_at, updated_at
		FROM learner_reminder_settings
		WHERE opted_in = true`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying opted-in settings")
	}

	settings := make([]reminder.Settings, 0, len(rows))
	for _, r := range rows {
		settings = append(settings, r.settings())
	}
	return settings, nil
}

func (repo settingsRepository) GetSettings(ctx context.Context, userID string) (reminder.Settings, error) {
	var row settingsRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT user_id, opted_in, last_opt_in_at, updated_at
		FROM learner_reminder_settings
		WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return reminder.Settings{}, trapNoRowsErr(err, reminder.ErrSettingsNotFound, "getting settings")
	}
	return row.settings(), nil
}

func (repo settingsRepository) UpsertSettings(ctx context.Context, s reminder.Settings) (reminder.Settings, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO learner_reminder_settings (user_id, opted_in, last_opt_in_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			opted_in = EXCLUDED.opted_in,
			last_opt_in_at = EXCLUDED.last_opt_in_at,
			updated_at = EXCLUDED.updated_at`,
		s.UserID,
		s.OptedIn,
		null.NewTime(s.LastOptInAt.UTC(), !s.LastOptInAt.IsZero()),
		null.NewTime(s.UpdatedAt.UTC(), !s.UpdatedAt.IsZero()),
	)
	if err != nil {
		return reminder.Settings{}, errors.Wrap(err, "upserting settings")
	}
	return s, nil
}

// Activity

type activityRepository struct {
	db *sqlx.DB
}

var _ reminder.ActivityRepository = (*activityRepository)(nil)

func NewActivityRepository(db *sqlx.DB) *activityRepository {
	return &activityRepository{db: db}
}

func (repo activityRepository) GetLastProgress(ctx context.Context, userID string) (reminder.Activity, error) {
	var row struct {
		UserID         string    `db:"user_id"`
		LastProgressAt null.Time `db:"last_progress_at"`
	}
	err := repo.db.GetContext(ctx, &row, `
		SELECT user_id, MAX(completed_at) AS last_progress_at
		FROM topic_completions
		WHERE user_id = $1 AND completed_at IS NOT NULL
		GROUP BY user_id`,
		userID,
	)
	if err != nil {
		return reminder.Activity{}, trapNoRowsErr(err, reminder.ErrActivityNotFound, "getting last progress")
	}
	return reminder.Activity{UserID: row.UserID, LastProgressAt: row.LastProgressAt.Time}, nil
}

// Dedup

type dedupRow struct {
	UserID             string    `db:"user_id"`
	LastReminderSentAt null.Time `db:"last_reminder_sent_at"`
	EpisodeAnchor      null.Time `db:"episode_anchor"`
}

func (r dedupRow) record() reminder.DedupRecord {
	return reminder.DedupRecord{
		UserID:             r.UserID,
		LastReminderSentAt: r.LastReminderSentAt.Time,
		EpisodeAnchor:      r.EpisodeAnchor.Time,
	}
}

type dedupRepository struct {
	db *sqlx.DB
}

var _ reminder.DedupRepository = (*dedupRepository)(nil)

func NewDedupRepository(db *sqlx.DB) *dedupRepository {
	return &dedupRepository{db: db}
}

func (repo dedupRepository) GetDedup(ctx context.Context, userID string) (reminder.DedupRecord, error) {
	var row dedupRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT user_id, last_reminder_sent_at, episode_anchor
		FROM learner_reminder_dedup
		WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return reminder.DedupRecord{}, trapNoRowsErr(err, reminder.ErrDedupNotFound, "getting dedup record")
	}
	return row.record(), nil
}

// UpsertDedup is a keyed last-write-wins upsert; concurrent writes for the
// same user cannot corrupt the ledger.
func (repo dedupRepository) UpsertDedup(ctx context.Context, rec reminder.DedupRecord) error {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO learner_reminder_dedup (user_id, last_reminder_sent_at, episode_anchor)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			last_reminder_sent_at = EXCLUDED.last_reminder_sent_at,
			episode_anchor = EXCLUDED.episode_anchor`,
		rec.UserID,
		null.NewTime(rec.LastReminderSentAt.UTC(), !rec.LastReminderSentAt.IsZero()),
		null.NewTime(rec.EpisodeAnchor.UTC(), !rec.EpisodeAnchor.IsZero()),
	)
	return errors.Wrap(err, "upserting dedup record")
}

// Profile

type profileRepository struct {
	db *sqlx.DB
}

var _ reminder.ProfileRepository = (*profileRepository)(nil)

func NewProfileRepository(db *sqlx.DB) *profileRepository {
	return &profileRepository{db: db}
}

func (repo profileRepository) GetProfile(ctx context.Context, userID string) (reminder.Profile, error) {
	var row struct {
		ID        string      `db:"id"`
		Email     null.String `db:"email"`
		FirstName null.String `db:"first_name"`
		CreatedAt null.Time   `db:"created_at"`
	}
	err := repo.db.GetContext(ctx, &row, `
		SELECT id, email, first_name, created_at
		FROM user_profiles
		WHERE id = $1`,
		userID,
	)
	if err != nil {
		return reminder.Profile{}, trapNoRowsErr(err, reminder.ErrProfileNotFound, "getting profile")
	}
	return reminder.Profile{
		UserID:    row.ID,
		Email:     row.Email.String,
		FirstName: row.FirstName.String,
		CreatedAt: row.CreatedAt.Time,
	}, nil
}
