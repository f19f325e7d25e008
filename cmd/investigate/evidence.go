package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taljindergill78/FSE570/internal/pipeline"
	"github.com/taljindergill78/FSE570/internal/report"
	"github.com/taljindergill78/FSE570/internal/sources"
)

func newBuildEvidenceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "build-evidence [query]",
		Short: "Write source evidence for an entity to a processed CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := "Tesla"
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				query = args[0]
			}
			svc, _, err := a.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			entity, ok := svc.Registry.ResolveOne(query)
			if !ok {
				return fmt.Errorf("no registered entity matches %q", query)
			}
			evidence, failures := svc.Gateway.EvidenceForEntity(cmd.Context(), entity, svc.Gateway.SourceIDs())
			for _, f := range failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s\n", f.SourceID, f.Error)
			}
			if len(evidence) == 0 {
				return fmt.Errorf("no evidence for %s; pull the raw sources first", entity.ID)
			}

			path := pipeline.EvidencePath(svc.Config.DataRoot, entity.ID)
			if err := sources.WriteEvidenceCSV(path, evidence); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote: %s (%d rows)\n", path, len(evidence))
			return nil
		},
	}
}

func newReportCmd(a *app) *cobra.Command {
	var entityID, format string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a report from processed evidence CSVs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format == formatJSON {
				return fmt.Errorf("report supports text, markdown or html")
			}
			if err := checkFormat(format); err != nil {
				return err
			}
			cfg, _, err := a.load()
			if err != nil {
				return err
			}
			evidence, err := sources.LoadEvidenceForEntity(pipeline.ProcessedDir(cfg.DataRoot), entityID)
			if err != nil {
				return err
			}
			if len(evidence) == 0 {
				return fmt.Errorf("no processed evidence for %s", entityID)
			}

			out := cmd.OutOrStdout()
			opts := report.Options{EntityID: entityID}
			switch format {
			case formatMarkdown:
				fmt.Fprint(out, report.Markdown(evidence, opts))
			case formatHTML:
				html, err := report.HTML(evidence, opts)
				if err != nil {
					return err
				}
				fmt.Fprint(out, html)
			default:
				fmt.Fprintln(out, report.FormatDashboard(report.ComputeRiskScores(evidence)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&entityID, "entity-id", "", "registry entity id")
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, markdown or html")
	_ = cmd.MarkFlagRequired("entity-id")
	return cmd
}
