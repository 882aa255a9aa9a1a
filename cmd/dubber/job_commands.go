package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dubber/internal/ipc"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dubbing jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobList(listStatuses)
				if err != nil {
					return err
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				rows := make([][]string, 0, len(resp.Jobs))
				for _, job := range resp.Jobs {
					rows = append(rows, []string{
						fmt.Sprintf("%d", job.ID),
						truncate(displayTitle(job), titleDisplayWidth),
						job.Status,
						formatTimestamp(job.CreatedAt),
						job.VideoID,
					})
				}
				table := renderTable(
					[]string{"ID", "Title", "Status", "Created", "Video"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by job status (repeatable)")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <jobID>",
		Short: "Show one job with segment progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobDescribe(id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				job := resp.Job

				fmt.Fprintf(out, "Job %d: %s\n", job.ID, displayTitle(job))
				fmt.Fprintf(out, "  URL:      %s\n", job.URL)
				fmt.Fprintf(out, "  Video:    %s\n", job.VideoID)
				fmt.Fprintf(out, "  Status:   %s\n", job.Status)
				if job.SourceLanguage != "" {
					fmt.Fprintf(out, "  Language: %s\n", job.SourceLanguage)
				}
				if job.OutputDir != "" {
					fmt.Fprintf(out, "  Output:   %s\n", job.OutputDir)
				}
				if job.FinalAudioFile != "" {
					fmt.Fprintf(out, "  Audio:    %s\n", job.FinalAudioFile)
				}
				if job.ErrorMessage != "" {
					fmt.Fprintf(out, "  Error:    %s\n", job.ErrorMessage)
				}
				fmt.Fprintf(out, "  Created:  %s\n", formatTimestamp(job.CreatedAt))
				if job.CompletedAt != "" {
					fmt.Fprintf(out, "  Finished: %s\n", formatTimestamp(job.CompletedAt))
				}

				p := resp.Segments
				if p.Total > 0 {
					fmt.Fprintf(out, "  Segments: %d total, %d translated (%d failed), %d synthesized (%d failed)\n",
						p.Total, p.TranslateDone, p.TranslateFailed, p.SynthesizeDone, p.SynthesizeFailed)
				}
				for _, seg := range resp.FailedSegments {
					text := strings.TrimSpace(seg.SourceText)
					fmt.Fprintf(out, "  Failed segment %d: %s\n", seg.Seq, seg.LastError)
					fmt.Fprintf(out, "    %s\n", truncate(text, 70))
				}
				return nil
			})
		},
	}
}

func newPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <jobID>",
		Short: "Pause a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Pause(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Paused job %d (was %s)\n", resp.Job.ID, resp.Job.PausedFrom)
				return nil
			})
		},
	}
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <jobID>",
		Short: "Resume a paused job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Resume(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Resumed job %d (now %s)\n", resp.Job.ID, resp.Job.Status)
				return nil
			})
		},
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <jobID>",
		Short: "Cancel a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Cancel(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %d\n", resp.Job.ID)
				return nil
			})
		},
	}
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [jobID...]",
		Short: "Retry failed jobs",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseJobID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Retry(ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retried %d failed job(s)\n", resp.Updated)
				return nil
			})
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <jobID>",
		Short: "Delete a job and its segments from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Remove(id)
				if err != nil {
					return err
				}
				if !resp.Removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Job %d not found\n", id)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed job %d\n", id)
				return nil
			})
		},
	}
}

func newClearCompletedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed",
		Short: "Remove completed jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ClearCompleted()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d completed job(s)\n", resp.Removed)
				return nil
			})
		},
	}
}
