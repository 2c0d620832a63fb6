package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/mining-enricher/internal/core"
	"github.com/joseph-ayodele/mining-enricher/internal/export"
)

func newAcquireCmd(a *app) *cobra.Command {
	var printText bool
	cmd := &cobra.Command{
		Use:   "acquire [source-ref]",
		Short: "Fetch and decode a document, printing text statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.acquirer().Acquire(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if printText {
				cmd.Println(doc.Text)
				return nil
			}
			pages := "-"
			if doc.PageCount != nil {
				pages = fmt.Sprint(*doc.PageCount)
			}
			cmd.Printf("format=%s chars=%d pages=%s\n", doc.Format, doc.Length(), pages)
			return nil
		},
	}
	cmd.Flags().BoolVar(&printText, "print", false, "print the decoded text instead of statistics")
	return cmd
}

func newSelectCmd(a *app) *cobra.Command {
	var stats bool
	cmd := &cobra.Command{
		Use:   "select [source-ref]",
		Short: "Print the excerpt the section scorer selects from a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := a.scorer()
			if err != nil {
				return err
			}
			doc, err := a.acquirer().Acquire(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			sel := sc.Select(doc.Text)
			if stats {
				cmd.Printf("windows=%d candidates=%d selected=%d chars=%d fallback=%t\n",
					sel.Windows, sel.Candidates, len(sel.Chunks), len([]rune(sel.Text)), sel.Fallback)
				for _, c := range sel.Chunks {
					cmd.Printf("  offset=%d score=%d\n", c.Offset, c.Score)
				}
				return nil
			}
			cmd.Println(sel.Text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&stats, "stats", false, "print window statistics instead of the excerpt")
	return cmd
}

func newExtractCmd(a *app) *cobra.Command {
	var projectName, company string
	cmd := &cobra.Command{
		Use:   "extract [source-ref]",
		Short: "Run acquisition, selection and extraction on one document without storing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proc, _, err := a.processor(cmd.Context(), false)
			if err != nil {
				return err
			}
			rep := proc.Preview(cmd.Context(), args[0], projectName, company)
			if rep.Err != nil {
				a.logger.Warn("extract.failed", "source_ref", args[0], "error", rep.Err)
			}
			return printJSON(cmd, rep)
		},
	}
	cmd.Flags().StringVar(&projectName, "project-name", "", "project name hint for the extraction")
	cmd.Flags().StringVar(&company, "company", "", "company name hint for the extraction")
	return cmd
}

func newRunCmd(a *app) *cobra.Command {
	var projects []string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Enrich the given projects (default: every project with documents)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			proc, r, err := a.processor(cmd.Context(), true)
			if err != nil {
				return err
			}
			ids := projects
			if len(ids) == 0 {
				if ids, err = r.documents.ListProjectIDs(cmd.Context()); err != nil {
					return err
				}
			}
			if len(ids) == 0 {
				cmd.Println("No projects with documents")
				return nil
			}
			p := a.cfg.Pipeline
			reports, runErr := proc.ProcessAll(cmd.Context(), ids, p.ProjectWorkers, p.ProjectTimeout)
			for _, rep := range reports {
				if rep.ProjectID == "" {
					continue
				}
				printReport(cmd, rep)
			}
			return runErr
		},
	}
	cmd.Flags().StringSliceVar(&projects, "project", nil, "project id to process (repeatable)")
	return cmd
}

func printReport(cmd *cobra.Command, rep core.Report) {
	ok, empty, failed := rep.Counts()
	cmd.Printf("%s: documents=%d ok=%d empty=%d failed=%d changed=%t elapsed=%s\n",
		rep.ProjectID, len(rep.Documents), ok, empty, failed, rep.Changed, rep.Elapsed.Round(time.Millisecond))
	cmd.Printf("  %s\n", joinOr(export.FieldSummary(rep.Result), "(no fields)"))
}
