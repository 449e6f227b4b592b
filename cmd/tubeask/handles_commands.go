package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tubeask/internal/config"
	"tubeask/internal/handlecache"
	"tubeask/internal/textutil"
	"tubeask/internal/videoref"
)

func newHandlesCommand(ctx *commandContext) *cobra.Command {
	handlesCmd := &cobra.Command{
		Use:   "handles",
		Short: "Manage cached transcript artifact handles",
	}

	handlesCmd.AddCommand(newHandlesListCommand(ctx))
	handlesCmd.AddCommand(newHandlesRemoveCommand(ctx))
	handlesCmd.AddCommand(newHandlesClearCommand(ctx))

	return handlesCmd
}

func newHandlesListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached handles, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHandleCache(func(cache *handlecache.Cache, cfg *config.Config) error {
				entries := cache.List()
				if jsonOut {
					return writeJSON(cmd, buildHandleViews(entries))
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "Handle cache is empty")
					return nil
				}
				writeRows(out,
					[]string{"Video", "Title", "Channel", "Artifact", "Cached"},
					buildHandleRows(entries),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				if !cfg.HandleCache.Enabled {
					fmt.Fprintln(out, "Handle reuse is disabled; enable [handle_cache] in the configuration to answer from these entries.")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newHandlesRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <video>",
		Short: "Remove the cached handle for a video (ID or URL)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHandleCache(func(cache *handlecache.Cache, cfg *config.Config) error {
				videoID := strings.TrimSpace(args[0])
				if ref, err := videoref.Parse(videoID); err == nil {
					videoID = ref.ID
				}
				if err := cache.Remove(videoID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed cached handle for %s\n", videoID)
				return nil
			})
		},
	}
}

func newHandlesClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached handles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHandleCache(func(cache *handlecache.Cache, cfg *config.Config) error {
				removed := cache.Count()
				if err := cache.Clear(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached handles\n", removed)
				return nil
			})
		},
	}
}

type handleView struct {
	VideoID      string `json:"video_id"`
	ArtifactName string `json:"artifact_name,omitempty"`
	ArtifactURI  string `json:"artifact_uri"`
	Title        string `json:"title,omitempty"`
	Channel      string `json:"channel,omitempty"`
	CachedAt     string `json:"cached_at"`
}

func buildHandleViews(entries []handlecache.Entry) []handleView {
	views := make([]handleView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, handleView{
			VideoID:      entry.VideoID,
			ArtifactName: entry.ArtifactName,
			ArtifactURI:  entry.ArtifactURI,
			Title:        entry.Title,
			Channel:      entry.Channel,
			CachedAt:     entry.CachedAt.UTC().Format(time.RFC3339),
		})
	}
	return views
}

func buildHandleRows(entries []handlecache.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			entry.VideoID,
			textutil.Truncate(entry.Title, 32),
			textutil.Truncate(entry.Channel, 24),
			entry.ArtifactName,
			formatLocalTime(entry.CachedAt),
		})
	}
	return rows
}
