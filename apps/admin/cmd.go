package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/trezcool/darasa/core/reminder"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db          *sql.DB
	reminderSvc reminder.ServiceInterface
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate [COMMAND] - run database migrations; COMMAND defaults to \"up\"")
	fmt.Println("  sendreminders - run one stalled-learner reminder pass and print the summary")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		migrateArgs := args[2:]
		if len(migrateArgs) == 0 {
			migrateArgs = []string{"up"}
		}
		return cli.migrate(migrateArgs)
	case "sendreminders":
		return cli.sendReminders()
	default:
		cli.printUsage()
		return errHelp
	}
}
