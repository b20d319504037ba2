package main

import (
	"context"
	"fmt"
)

// sendReminders runs one dispatcher pass; meant for system-cron deployments
// invoking the binary instead of the HTTP trigger.
func (cli *commandLine) sendReminders() error {
	summary, err := cli.reminderSvc.Run(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf(
		"run %s: evaluated=%d reminded=%d skipped=%d failed=%d\n",
		summary.RunID, summary.UsersEvaluated, summary.UsersReminded, summary.UsersSkipped, len(summary.Failures),
	)
	for _, f := range summary.Failures {
		fmt.Printf("  %s: %s\n", f.UserID, f.Reason)
	}
	return nil
}
