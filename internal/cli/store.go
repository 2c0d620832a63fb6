package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/mining-enricher/internal/entity"
	"github.com/joseph-ayodele/mining-enricher/internal/export"
	"github.com/joseph-ayodele/mining-enricher/internal/ingest"
	"github.com/joseph-ayodele/mining-enricher/internal/utils"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("migrated")
			return nil
		},
	}
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Ping the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			timeout := a.cfg.Database.DialTimeout
			if timeout <= 0 {
				timeout = 3 * time.Second
			}
			if err := db.HealthCheck(cmd.Context(), timeout); err != nil {
				return err
			}
			cmd.Printf("database: OK (%s)\n", db.Dialect())
			return nil
		},
	}
}

func newProjectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage project records",
	}

	var name, company string
	add := &cobra.Command{
		Use:   "add [project-id]",
		Short: "Create a project, or update its name and company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.repos(cmd.Context())
			if err != nil {
				return err
			}
			p, err := r.projects.EnsureProject(cmd.Context(), args[0], name, company)
			if err != nil {
				return fmt.Errorf("failed to add project: %w", err)
			}
			cmd.Printf("project %s (%s)\n", p.ID, p.Name)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name (defaults to the id)")
	add.Flags().StringVar(&company, "company", "", "owning company")

	list := &cobra.Command{
		Use:   "list",
		Short: "List projects and their known fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.repos(cmd.Context())
			if err != nil {
				return err
			}
			ps, err := r.projects.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list projects: %w", err)
			}
			if len(ps) == 0 {
				cmd.Println("No projects found")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCOMPANY\tFIELDS\tUPDATED")
			for _, p := range ps {
				updated := "-"
				if p.UpdatedAt != nil {
					updated = p.UpdatedAt.UTC().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.Name, p.Company, p.Fields().KnownFields(), updated)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			cmd.Printf("\nTotal: %d projects\n", len(ps))
			return nil
		},
	}

	var jobs int
	show := &cobra.Command{
		Use:   "show [project-id]",
		Short: "Print a project record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.repos(cmd.Context())
			if err != nil {
				return err
			}
			p, err := r.projects.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get project: %w", err)
			}
			out := map[string]any{"project": p}
			if jobs > 0 {
				js, err := r.jobs.ListByProject(cmd.Context(), p.ID, jobs)
				if err != nil {
					return fmt.Errorf("failed to list jobs: %w", err)
				}
				out["jobs"] = js
			}
			return printJSON(cmd, out)
		},
	}
	show.Flags().IntVar(&jobs, "jobs", 0, "include the N most recent extraction jobs")

	cmd.AddCommand(add, list, show)
	return cmd
}

func newDocumentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "document",
		Short: "Manage the documents registered for projects",
	}

	var title, docType, filedAt string
	add := &cobra.Command{
		Use:   "add [project-id] [source-ref]",
		Short: "Register a document (path, file://, http(s):// or gs://) for a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc := entity.ProjectDocument{ProjectID: args[0], SourceRef: args[1], Title: title, DocType: docType}
			if filedAt != "" {
				t, err := utils.ParseYMD(filedAt)
				if err != nil {
					return fmt.Errorf("--filed-at must be YYYY-MM-DD: %w", err)
				}
				doc.FiledAt = &t
			}
			r, err := a.repos(cmd.Context())
			if err != nil {
				return err
			}
			doc, err = r.documents.Add(cmd.Context(), doc)
			if err != nil {
				return fmt.Errorf("failed to add document: %w", err)
			}
			cmd.Printf("document %d registered for %s\n", doc.ID, doc.ProjectID)
			return nil
		},
	}
	add.Flags().StringVar(&title, "title", "", "document title")
	add.Flags().StringVar(&docType, "type", "", "document type, e.g. NI 43-101, PEA, annual report")
	add.Flags().StringVar(&filedAt, "filed-at", "", "filing date YYYY-MM-DD; orders documents within a project")

	list := &cobra.Command{
		Use:   "list [project-id]",
		Short: "List a project's documents in processing order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.repos(cmd.Context())
			if err != nil {
				return err
			}
			docs, err := r.documents.ListByProject(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to list documents: %w", err)
			}
			if len(docs) == 0 {
				cmd.Printf("No documents found for project: %s\n", args[0])
				return nil
			}
			cmd.Printf("Documents for project %s:\n\n", args[0])
			for _, d := range docs {
				cmd.Printf("  %d  %s\n", d.ID, d.SourceRef)
				if d.Title != "" {
					cmd.Printf("    Title: %s\n", d.Title)
				}
				if d.DocType != "" {
					cmd.Printf("    Type:  %s\n", d.DocType)
				}
				if d.FiledAt != nil {
					cmd.Printf("    Filed: %s\n", d.FiledAt.Format("2006-01-02"))
				}
			}
			cmd.Printf("\nTotal: %d documents\n", len(docs))
			return nil
		},
	}

	imp := &cobra.Command{
		Use:   "import [root]",
		Short: "Register every document under root/<project-id>/",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.repos(cmd.Context())
			if err != nil {
				return err
			}
			reg, err := ingest.NewRegistrar(args[0], r.projects, r.documents, a.logger)
			if err != nil {
				return err
			}
			results, stats, err := reg.Scan(cmd.Context())
			if err != nil {
				return err
			}
			for _, res := range results {
				if res.Err != "" {
					cmd.Printf("  FAILED %s: %s\n", res.Path, res.Err)
				}
			}
			cmd.Printf("scanned=%d matched=%d registered=%d failed=%d\n", stats.Scanned, stats.Matched, stats.Succeeded, stats.Failed)
			return nil
		},
	}

	cmd.AddCommand(add, list, imp)
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every project record to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.repos(cmd.Context())
			if err != nil {
				return err
			}
			data, err := export.NewService(r.projects, a.logger).ExportProjectsXLSX(cmd.Context())
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			cmd.Printf("wrote %s (%d bytes)\n", out, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "projects.xlsx", "output file")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinOr(parts []string, empty string) string {
	if len(parts) == 0 {
		return empty
	}
	return strings.Join(parts, " ")
}
