package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/phrazzld/mediajobs/internal/api"
	"github.com/phrazzld/mediajobs/internal/domain"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

var errJobFailed = errors.New("job failed")

type options struct {
	server  string
	token   string
	timeout time.Duration
}

func (o *options) client() *client {
	return newClient(o.server, o.token, o.timeout)
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "jobctl",
		Short:         "Submit and poll mediajobs jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	server := os.Getenv("MEDIAJOBS_SERVER")
	if server == "" {
		server = defaultServer
	}
	root.PersistentFlags().StringVar(&opts.server, "server", server, "Base URL of the mediajobs server")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("MEDIAJOBS_TOKEN"), "Bearer token for the API")
	root.PersistentFlags().DurationVar(&opts.timeout, "http-timeout", 30*time.Second, "Timeout of a single HTTP request")

	root.AddCommand(
		newStatusCommand(opts),
		newWaitCommand(opts),
		newBulkCommand(opts),
		newPlaylistCommand(opts),
	)
	return root
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := opts.client().Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStatus(args[0], status))
			return nil
		},
	}
}

func newWaitCommand(opts *options) *cobra.Command {
	var interval, timeout time.Duration

	cmd := &cobra.Command{
		Use:   "wait <job-id>",
		Short: "Poll a job until it succeeds or fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			status, err := waitForJob(ctx, opts.client(), args[0], interval)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStatus(args[0], status))
			if status.Status == string(domain.JobStateFailed) {
				return errJobFailed
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Delay between polls")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Give up after this long (0 waits forever)")
	return cmd
}

func newBulkCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "bulk <url>...",
		Short: "Download several media URLs into one archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := opts.client().SubmitBulk(cmd.Context(), args)
			if err != nil {
				return err
			}
			printSubmitted(cmd, id)
			return nil
		},
	}
}

func newPlaylistCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "playlist <url>",
		Short: "Download every item of a playlist into one archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := opts.client().SubmitPlaylist(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printSubmitted(cmd, id)
			return nil
		},
	}
}

func printSubmitted(cmd *cobra.Command, id string) {
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Job", "Status"},
		[][]string{{id, "submitted"}},
	))
}

// waitForJob polls until the job reaches a terminal state or ctx ends.
func waitForJob(ctx context.Context, c *client, id string, interval time.Duration) (api.StatusResponse, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.Status(ctx, id)
		if err != nil {
			return status, err
		}
		switch status.Status {
		case string(domain.JobStateSucceeded), string(domain.JobStateFailed):
			return status, nil
		}

		select {
		case <-ctx.Done():
			return status, fmt.Errorf("waiting for job %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}
