package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dubber/internal/ipc"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <url>...",
		Short: "Queue one or more YouTube videos for dubbing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				for _, url := range args {
					resp, err := client.Submit(url)
					if err != nil {
						return fmt.Errorf("submit %s: %w", url, err)
					}
					if resp.Created {
						fmt.Fprintf(out, "Queued job %d (%s)\n", resp.Job.ID, resp.Job.VideoID)
					} else {
						fmt.Fprintf(out, "Job %d already queued for %s (status %s)\n",
							resp.Job.ID, resp.Job.VideoID, resp.Job.Status)
					}
				}
				return nil
			})
		},
	}
}
