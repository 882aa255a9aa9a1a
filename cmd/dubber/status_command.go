package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dubber/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(out, line)
				}
				runningKind := statusWarn
				runningText := "stopped"
				if status.Running {
					runningKind = statusOK
					runningText = "running"
				}
				fmt.Fprintln(out, renderStatusLine("Workers", runningKind, runningText, colorize))
				fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.QueueDBPath, colorize))

				q := status.Queue
				for _, line := range renderSectionHeader("Queue", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintf(out, "%sTotal: %d  Pending: %d  Active: %d  Paused: %d  Failed: %d  Completed: %d\n",
					statusIndent, q.Total, q.Pending, q.Active, q.Paused, q.Failed, q.Completed)

				if len(status.Jobs) == 0 {
					fmt.Fprintln(out, statusIndent+"No jobs in flight")
					return nil
				}
				rows := make([][]string, 0, len(status.Jobs))
				for _, jp := range status.Jobs {
					rows = append(rows, []string{
						fmt.Sprintf("%d", jp.Job.ID),
						truncate(displayTitle(jp.Job), titleDisplayWidth),
						jp.Job.Status,
						progressSummary(jp.Segments),
					})
				}
				table := renderTable(
					[]string{"ID", "Title", "Status", "Tx/Syn/Total"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show queue and database health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				queueHealth, err := client.QueueHealth()
				if err != nil {
					return err
				}
				for _, line := range renderSectionHeader("Queue Health", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintf(out, "%sTotal: %d  Pending: %d  Active: %d  Paused: %d  Failed: %d  Completed: %d\n",
					statusIndent,
					queueHealth.Total,
					queueHealth.Pending,
					queueHealth.Active,
					queueHealth.Paused,
					queueHealth.Failed,
					queueHealth.Completed,
				)

				dbHealth, err := client.DatabaseHealth()
				if err != nil {
					return err
				}
				for _, line := range renderSectionHeader("Database", colorize) {
					fmt.Fprintln(out, line)
				}
				kind := statusOK
				detail := dbHealth.DBPath
				if dbHealth.Error != "" {
					kind = statusError
					detail = dbHealth.Error
				}
				fmt.Fprintln(out, renderStatusLine("Database", kind, detail, colorize))
				fmt.Fprintln(out, renderStatusLine("Schema", statusInfo, dbHealth.SchemaVersion, colorize))
				fmt.Fprintln(out, renderStatusLine("Integrity", boolKind(dbHealth.IntegrityCheck), yesNo(dbHealth.IntegrityCheck), colorize))
				fmt.Fprintf(out, "%sJobs on disk: %d\n", statusIndent, dbHealth.TotalJobs)
				return nil
			})
		},
	}
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusError
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop daemon processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stop()
				if err != nil {
					return err
				}
				if resp.Stopped {
					fmt.Fprintln(cmd.OutOrStdout(), "Daemon processing stopped")
				}
				return nil
			})
		},
	}
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test push notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
}
