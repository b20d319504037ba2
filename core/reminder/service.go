package reminder

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrSettingsNotFound = errors.New("reminder settings not found")
	ErrActivityNotFound = errors.New("no learner activity recorded")
	ErrDedupNotFound    = errors.New("no reminder dispatch recorded")
	ErrProfileNotFound  = errors.New("learner profile not found")

	nowFunc = time.Now // mockable
)

const reminderTemplateName = "stalled-reminder"

type (
	SettingsRepository interface {
		// GetOptedInSettings returns the settings of all learners currently opted in.
		GetOptedInSettings(ctx context.Context) ([]Settings, error)
		GetSettings(ctx context.Context, userID string) (Settings, error)
		UpsertSettings(ctx context.Context, s Settings) (Settings, error)
	}

	ActivityRepository interface {
		// GetLastProgress returns the learner's most recent progress;
		// ErrActivityNotFound when the learner never progressed.
		GetLastProgress(ctx context.Context, userID string) (Activity, error)
	}

	DedupRepository interface {
		GetDedup(ctx context.Context, userID string) (DedupRecord, error)
		// UpsertDedup records a dispatch. It must be idempotent and safe under
		// concurrent writes for the same user: the last write wins.
		UpsertDedup(ctx context.Context, rec DedupRecord) error
	}

	ProfileRepository interface {
		GetProfile(ctx context.Context, userID string) (Profile, error)
	}

	ServiceInterface interface {
		Run(ctx context.Context) (*RunSummary, error)
		GetSettings(ctx context.Context, userID string) (Settings, error)
		SetOptIn(ctx context.Context, userID string, optIn bool) (Settings, error)
	}

	Service struct {
		settingsRepo SettingsRepository
		activityRepo ActivityRepository
		dedupRepo    DedupRepository
		profileRepo  ProfileRepository
		mailSvc      core.EmailService
		logger       core.Logger
		conf         *core.Config
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(
	settingsRepo SettingsRepository,
	activityRepo ActivityRepository,
	dedupRepo DedupRepository,
	profileRepo ProfileRepository,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		settingsRepo: settingsRepo,
		activityRepo: activityRepo,
		dedupRepo:    dedupRepo,
		profileRepo:  profileRepo,
		mailSvc:      mailSvc,
		logger:       logger,
		conf:         conf,
	}
}

// GetSettings returns the learner's reminder settings; learners without a
// settings record default to opted out.
func (svc *Service) GetSettings(ctx context.Context, userID string) (Settings, error) {
	s, err := svc.settingsRepo.GetSettings(ctx, userID)
	if err != nil {
		if err == ErrSettingsNotFound {
			return Settings{UserID: userID}, nil
		}
		return Settings{}, pkgerrors.Wrap(err, "loading reminder settings")
	}
	return s, nil
}

// SetOptIn toggles the learner's reminder opt-in. LastOptInAt is only written
// on an opt-out -> opt-in transition (or when it was never set); UpdatedAt is
// always refreshed.
func (svc *Service) SetOptIn(ctx context.Context, userID string, optIn bool) (Settings, error) {
	if userID = core.CleanString(userID); userID == "" {
		return Settings{}, core.NewValidationError(
			errors.New("invalid user id"),
			core.FieldError{Field: "user_id", Error: "this field is required"},
		)
	}

	now := nowFunc().UTC()

	s, err := svc.settingsRepo.GetSettings(ctx, userID)
	if err != nil && err != ErrSettingsNotFound {
		return Settings{}, pkgerrors.Wrap(err, "loading reminder settings")
	}

	s.UserID = userID
	if optIn && (!s.OptedIn || s.LastOptInAt.IsZero()) {
		s.LastOptInAt = now
	}
	s.OptedIn = optIn
	s.UpdatedAt = now

	s, err = svc.settingsRepo.UpsertSettings(ctx, s)
	return s, pkgerrors.Wrap(err, "saving reminder settings")
}

type candidate struct {
	profile Profile
	anchor  time.Time
}

// Run executes one complete dispatcher pass: classify every opted-in learner,
// send exactly one reminder per qualifying inactivity episode and record it in
// the dedup ledger. A notifier failure for one learner is recorded in the
// summary and never aborts the run; store faults abort the whole run with no
// summary.
func (svc *Service) Run(ctx context.Context) (*RunSummary, error) {
	now := nowFunc().UTC()
	summary := &RunSummary{
		RunID:     uuid.New().String(),
		StartedAt: now,
		Failures:  make([]DispatchFailure, 0),
	}

	allSettings, err := svc.settingsRepo.GetOptedInSettings(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "loading opted-in reminder settings")
	}

	var eligible []candidate
	for i := range allSettings {
		s := allSettings[i]
		summary.UsersEvaluated++

		var activity *Activity
		if act, err := svc.activityRepo.GetLastProgress(ctx, s.UserID); err == nil {
			activity = &act
		} else if err != ErrActivityNotFound {
			return nil, pkgerrors.Wrapf(err, "loading last progress for user %s", s.UserID)
		}

		var dedup *DedupRecord
		if rec, err := svc.dedupRepo.GetDedup(ctx, s.UserID); err == nil {
			dedup = &rec
		} else if err != ErrDedupNotFound {
			return nil, pkgerrors.Wrapf(err, "loading dedup record for user %s", s.UserID)
		}

		decision := Classify(now, &s, activity, dedup, svc.conf.Reminder.InactivityThreshold)
		if decision.Outcome != OutcomeEligible {
			summary.UsersSkipped++
			continue
		}

		profile, err := svc.profileRepo.GetProfile(ctx, s.UserID)
		if err != nil {
			if err == ErrProfileNotFound {
				summary.UsersSkipped++
				continue
			}
			return nil, pkgerrors.Wrapf(err, "loading profile for user %s", s.UserID)
		}
		if profile.Email == "" {
			// nothing to deliver to
			summary.UsersSkipped++
			continue
		}

		eligible = append(eligible, candidate{profile: profile, anchor: decision.Anchor})
	}

	if err := svc.dispatch(ctx, now, eligible, summary); err != nil {
		return nil, err
	}

	svc.logger.Info(fmt.Sprintf(
		"reminder run %s: %d evaluated, %d reminded, %d skipped, %d failed",
		summary.RunID, summary.UsersEvaluated, summary.UsersReminded, summary.UsersSkipped, len(summary.Failures),
	))
	return summary, nil
}

// dispatch notifies eligible learners with bounded concurrency; notifier
// latency dominates a run so sends overlap, bounded by MaxConcurrentSends.
func (svc *Service) dispatch(ctx context.Context, now time.Time, eligible []candidate, summary *RunSummary) error {
	maxSends := svc.conf.Reminder.MaxConcurrentSends
	if maxSends < 1 {
		maxSends = 1
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		sem      = make(chan struct{}, maxSends)
		fatalErr error
	)

	for _, cand := range eligible {
		wg.Add(1)
		sem <- struct{}{}
		go func(cand candidate) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := svc.mailSvc.SendMessage(svc.newReminderMessage(cand, now)); err != nil {
				mu.Lock()
				summary.Failures = append(summary.Failures, DispatchFailure{
					UserID: cand.profile.UserID,
					Reason: err.Error(),
				})
				mu.Unlock()
				return
			}

			rec := DedupRecord{
				UserID:             cand.profile.UserID,
				LastReminderSentAt: now,
				EpisodeAnchor:      cand.anchor,
			}
			if err := svc.dedupRepo.UpsertDedup(ctx, rec); err != nil {
				mu.Lock()
				if fatalErr == nil {
					fatalErr = pkgerrors.Wrapf(err, "recording reminder dispatch for user %s", cand.profile.UserID)
				}
				mu.Unlock()
				return
			}

			mu.Lock()
			summary.UsersReminded++
			mu.Unlock()
		}(cand)
	}
	wg.Wait()

	return fatalErr
}

type reminderTemplateData struct {
	FirstName      string
	HoursStalled   int
	ThresholdHours int
}

func (svc *Service) newReminderMessage(cand candidate, now time.Time) *core.EmailMessage {
	threshold := int(svc.conf.Reminder.InactivityThreshold.Hours())
	stalled := int(now.Sub(cand.anchor).Hours())
	if stalled < threshold {
		stalled = threshold
	}
	return &core.EmailMessage{
		To:           []mail.Address{{Name: cand.profile.FirstName, Address: cand.profile.Email}},
		Subject:      "Quick win reminder: your next topic awaits",
		TemplateName: reminderTemplateName,
		TemplateData: reminderTemplateData{
			FirstName:      cand.profile.FirstName,
			HoursStalled:   stalled,
			ThresholdHours: threshold,
		},
	}
}
