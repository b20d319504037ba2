package inmemdb

import (
	"sync"

	"github.com/trezcool/darasa/core/reminder"
)

// DB is an in-memory stand-in for the relational store; used in tests and
// local development.
type DB struct {
	settings    *settingsTable
	completions *completionsTable
	dedup       *dedupTable
	profiles    *profileTable
}

type settingsTable struct {
	mutex sync.RWMutex
	table map[string]*reminder.Settings // userID -> settings
}

type completionsTable struct {
	mutex sync.RWMutex
	table map[string]*reminder.Activity // userID -> latest progress
}

type dedupTable struct {
	mutex sync.RWMutex
	table map[string]*reminder.DedupRecord // userID -> dedup record
}

type profileTable struct {
	mutex sync.RWMutex
	table map[string]*reminder.Profile // userID -> profile
}

func Open() (*DB, error) {
	db := &DB{
		settings:    &settingsTable{table: make(map[string]*reminder.Settings)},
		completions: &completionsTable{table: make(map[string]*reminder.Activity)},
		dedup:       &dedupTable{table: make(map[string]*reminder.DedupRecord)},
		profiles:    &profileTable{table: make(map[string]*reminder.Profile)},
	}
	return db, nil
}
