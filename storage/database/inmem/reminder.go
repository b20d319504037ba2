package inmemdb

import (
	"context"

	"github.com/trezcool/darasa/core/reminder"
)

// Settings

type SettingsRepository struct {
	db *settingsTable
}

var _ reminder.SettingsRepository = (*SettingsRepository)(nil)

func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db.settings}
}

func (repo *SettingsRepository) GetOptedInSettings(_ context.Context) ([]reminder.Settings, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	settings := make([]reminder.Settings, 0, len(repo.db.table))
	for _, s := range repo.db.table {
		if s.OptedIn {
			settings = append(settings, *s)
		}
	}
	return settings, nil
}

func (repo *SettingsRepository) GetSettings(_ context.Context, userID string) (reminder.Settings, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.table[userID]; ok {
		return *s, nil
	}
	return reminder.Settings{}, reminder.ErrSettingsNotFound
}

func (repo *SettingsRepository) UpsertSettings(_ context.Context, s reminder.Settings) (reminder.Settings, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.table[s.UserID] = &s
	return s, nil
}

// Activity

type ActivityRepository struct {
	db *completionsTable
}

var _ reminder.ActivityRepository = (*ActivityRepository)(nil)

func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db.completions}
}

func (repo *ActivityRepository) GetLastProgress(_ context.Context, userID string) (reminder.Activity, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if act, ok := repo.db.table[userID]; ok {
		return *act, nil
	}
	return reminder.Activity{}, reminder.ErrActivityNotFound
}

// SetLastProgress records the learner's latest progress timestamp if it is
// newer than the current one.
func (repo *ActivityRepository) SetLastProgress(_ context.Context, act reminder.Activity) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if curr, ok := repo.db.table[act.UserID]; ok && curr.LastProgressAt.After(act.LastProgressAt) {
		return nil
	}
	repo.db.table[act.UserID] = &act
	return nil
}

// Dedup

type DedupRepository struct {
	db *dedupTable
}

var _ reminder.DedupRepository = (*DedupRepository)(nil)

func NewDedupRepository(db *DB) *DedupRepository {
	return &DedupRepository{db: db.dedup}
}

func (repo *DedupRepository) GetDedup(_ context.Context, userID string) (reminder.DedupRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.table[userID]; ok {
		return *rec, nil
	}
	return reminder.DedupRecord{}, reminder.ErrDedupNotFound
}

func (repo *DedupRepository) UpsertDedup(_ context.Context, rec reminder.DedupRecord) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.table[rec.UserID] = &rec
	return nil
}

// Profile

type ProfileRepository struct {
	db *profileTable
}

var _ reminder.ProfileRepository = (*ProfileRepository)(nil)

func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db.profiles}
}

func (repo *ProfileRepository) GetProfile(_ context.Context, userID string) (reminder.Profile, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.table[userID]; ok {
		return *p, nil
	}
	return reminder.Profile{}, reminder.ErrProfileNotFound
}

func (repo *ProfileRepository) CreateProfile(_ context.Context, p reminder.Profile) (reminder.Profile, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.table[p.UserID] = &p
	return p, nil
}
