package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/reminder"
)

type fakeReminderService struct {
	runCalls int
	summary  *reminder.RunSummary
	runErr   error
}

var _ reminder.ServiceInterface = (*fakeReminderService)(nil)

func (svc *fakeReminderService) Run(context.Context) (*reminder.RunSummary, error) {
	svc.runCalls++
	return svc.summary, svc.runErr
}

func (svc *fakeReminderService) GetSettings(_ context.Context, userID string) (reminder.Settings, error) {
	return reminder.Settings{UserID: userID}, nil
}

func (svc *fakeReminderService) SetOptIn(_ context.Context, userID string, optIn bool) (reminder.Settings, error) {
	return reminder.Settings{UserID: userID, OptedIn: optIn}, nil
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func Test_commandLine_migrate(t *testing.T) {
	// sql.Open is lazy; no connection is made
	db, err := sql.Open("postgres", "postgres://localhost:5432/darasa_test?sslmode=disable")
	if err != nil {
		t.Fatalf("sql.Open(): %v", err)
	}
	cli := &commandLine{db: db, reminderSvc: &fakeReminderService{}}

	gooseRunFunc = func(command string, gotDB *sql.DB, fsys fs.FS, dir string, args ...string) error {
		if gotDB != db {
			return fmt.Errorf("unexpected database handle")
		}
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "no subcommand defaults to up", args: []string{"migrate"}},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_sendReminders(t *testing.T) {
	t.Run("prints the run summary", func(t *testing.T) {
		svc := &fakeReminderService{
			summary: &reminder.RunSummary{RunID: "run-1", UsersEvaluated: 2, UsersReminded: 1, UsersSkipped: 1},
		}
		cli := &commandLine{reminderSvc: svc}

		if err := cli.run([]string{"admin", "sendreminders"}); err != nil {
			t.Errorf("cli.run() unexpected error = %v", err)
		}
		if svc.runCalls != 1 {
			t.Errorf("Run() called %d times, want 1", svc.runCalls)
		}
	})

	t.Run("propagates run failures", func(t *testing.T) {
		svc := &fakeReminderService{runErr: errors.New("settings store unreachable")}
		cli := &commandLine{reminderSvc: svc}

		if err := cli.run([]string{"admin", "sendreminders"}); err != svc.runErr {
			t.Errorf("cli.run() error = %v, want %v", err, svc.runErr)
		}
	})
}
