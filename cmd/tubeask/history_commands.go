package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"tubeask/internal/runs"
	"tubeask/internal/textutil"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded pipeline runs",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryStatusCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))

	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunStore(func(store *runs.Store) error {
				records, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, buildRunViews(records))
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				writeRows(cmd.OutOrStdout(),
					[]string{"ID", "Video", "Title", "Status", "Failure", "Created"},
					buildRunRows(records),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newHistoryStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show run counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunStore(func(store *runs.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if health.Total == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}

				rows := make([][]string, 0, len(stats))
				for _, status := range runs.AllStatuses() {
					if count, ok := stats[status]; ok {
						rows = append(rows, []string{string(status), strconv.Itoa(count)})
					}
				}
				writeRows(out, []string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintf(out, "%d runs: %d completed, %d failed, %d in flight\n",
					health.Total, health.Completed, health.Failed, health.Processing)
				return nil
			})
		},
	}
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunStore(func(store *runs.Store) error {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d recorded runs\n", removed)
				return nil
			})
		},
	}
}

type runView struct {
	ID          int64  `json:"id"`
	RunKey      string `json:"run_key"`
	VideoID     string `json:"video_id,omitempty"`
	VideoURL    string `json:"video_url"`
	Question    string `json:"question,omitempty"`
	Status      string `json:"status"`
	FailureKind string `json:"failure_kind,omitempty"`
	Error       string `json:"error,omitempty"`
	JobID       string `json:"job_id,omitempty"`
	ArtifactURI string `json:"artifact_uri,omitempty"`
	Title       string `json:"title,omitempty"`
	Channel     string `json:"channel,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func buildRunViews(records []*runs.Run) []runView {
	views := make([]runView, 0, len(records))
	for _, run := range records {
		views = append(views, runView{
			ID:          run.ID,
			RunKey:      run.RunKey,
			VideoID:     run.VideoID,
			VideoURL:    run.VideoURL,
			Question:    run.Question,
			Status:      string(run.Status),
			FailureKind: run.FailureKind,
			Error:       run.ErrorMessage,
			JobID:       run.JobID,
			ArtifactURI: run.ArtifactURI,
			Title:       run.Title,
			Channel:     run.Channel,
			CreatedAt:   run.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:   run.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return views
}

func buildRunRows(records []*runs.Run) [][]string {
	rows := make([][]string, 0, len(records))
	for _, run := range records {
		rows = append(rows, []string{
			strconv.FormatInt(run.ID, 10),
			run.VideoID,
			textutil.Truncate(run.Title, 32),
			string(run.Status),
			run.FailureKind,
			formatLocalTime(run.CreatedAt),
		})
	}
	return rows
}

func formatLocalTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}
