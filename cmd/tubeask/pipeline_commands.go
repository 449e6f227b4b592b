package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tubeask/internal/pipeline"
	"tubeask/internal/services/gemini"
)

func newIndexCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "index <url>",
		Short: "Extract a video's transcript and register it with the knowledge store",
		Long: `Index submits the video to the transcript extraction actor, waits for the
captions, and uploads them to the knowledge store. The resulting artifact
handle can answer questions until the backend expires it (about 48 hours).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOrchestrator(func(orch *pipeline.Orchestrator) error {
				res, err := orch.IndexVideo(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, newIndexView(res))
				}
				printIndexResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of formatted text")
	return cmd
}

func newAskCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <url> <question>",
		Short: "Ask a question about a video",
		Long: `Ask runs the whole pipeline for a single question: the transcript is
extracted, registered with the knowledge store, and the question is answered
grounded in it. Each invocation re-indexes the video unless the handle cache
is enabled in the configuration.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOrchestrator(func(orch *pipeline.Orchestrator) error {
				answer, err := orch.AskAboutVideo(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				printAnswer(cmd.OutOrStdout(), answer)
				return nil
			})
		},
	}
	return cmd
}

func newQueryCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "query <url> <question>",
		Short: "Ask a question and show the artifact handle alongside the answer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOrchestrator(func(orch *pipeline.Orchestrator) error {
				res, err := orch.Query(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, newQueryView(res))
				}
				printQueryResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of formatted text")
	return cmd
}

type artifactView struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

type indexView struct {
	RunKey   string       `json:"run_key"`
	VideoID  string       `json:"video_id"`
	Title    string       `json:"title,omitempty"`
	Channel  string       `json:"channel,omitempty"`
	Artifact artifactView `json:"artifact"`
}

func newIndexView(res *pipeline.IndexResult) indexView {
	return indexView{
		RunKey:   res.RunKey,
		VideoID:  res.VideoID,
		Title:    res.Title,
		Channel:  res.Channel,
		Artifact: artifactView{Name: res.Handle.Name, URI: res.Handle.URI},
	}
}

type citationView struct {
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
	URI        string `json:"uri,omitempty"`
	License    string `json:"license,omitempty"`
}

type queryView struct {
	indexView
	ReusedHandle bool           `json:"reused_handle"`
	Answer       string         `json:"answer"`
	Citations    []citationView `json:"citations,omitempty"`
}

func newQueryView(res *pipeline.AskResult) queryView {
	view := queryView{
		indexView:    newIndexView(&res.IndexResult),
		ReusedHandle: res.ReusedHandle,
		Answer:       res.Answer.Text,
	}
	for _, citation := range res.Answer.Citations {
		view.Citations = append(view.Citations, citationView{
			StartIndex: citation.StartIndex,
			EndIndex:   citation.EndIndex,
			URI:        citation.URI,
			License:    citation.License,
		})
	}
	return view
}

func printIndexResult(w io.Writer, res *pipeline.IndexResult) {
	fmt.Fprintf(w, "Indexed video %s\n", res.VideoID)
	printVideoDetails(w, res)
}

func printQueryResult(w io.Writer, res *pipeline.AskResult) {
	fmt.Fprintf(w, "Video %s\n", res.VideoID)
	printVideoDetails(w, &res.IndexResult)
	if res.ReusedHandle {
		fmt.Fprintln(w, "  Reused:   artifact handle from cache")
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Answer:")
	printAnswer(w, &res.Answer)
}

func printVideoDetails(w io.Writer, res *pipeline.IndexResult) {
	if res.Title != "" {
		fmt.Fprintf(w, "  Title:    %s\n", res.Title)
	}
	if res.Channel != "" {
		fmt.Fprintf(w, "  Channel:  %s\n", res.Channel)
	}
	if res.Handle.Name != "" {
		fmt.Fprintf(w, "  Artifact: %s\n", res.Handle.Name)
	}
	fmt.Fprintf(w, "  URI:      %s\n", res.Handle.URI)
}

func printAnswer(w io.Writer, answer *gemini.Answer) {
	fmt.Fprintln(w, strings.TrimSpace(answer.Text))
	if len(answer.Citations) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Citations:")
	for i, citation := range answer.Citations {
		line := fmt.Sprintf("  [%d] characters %d-%d", i+1, citation.StartIndex, citation.EndIndex)
		if citation.URI != "" {
			line += " " + citation.URI
		}
		if citation.License != "" {
			line += " (" + citation.License + ")"
		}
		fmt.Fprintln(w, line)
	}
}
