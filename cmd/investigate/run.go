package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taljindergill78/FSE570/internal/pipeline"
)

const defaultQuery = "Investigate Tesla for money laundering"

const (
	formatText     = "text"
	formatMarkdown = "markdown"
	formatHTML     = "html"
	formatJSON     = "json"
)

func checkFormat(format string) error {
	switch format {
	case formatText, formatMarkdown, formatHTML, formatJSON:
		return nil
	}
	return fmt.Errorf("unknown format %q (want text, markdown, html or json)", format)
}

func newRunCmd(a *app) *cobra.Command {
	var format string
	var parallel bool
	cmd := &cobra.Command{
		Use:   "run [query]",
		Short: "Run a full investigation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			query := defaultQuery
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				query = args[0]
			}

			cfg, logger, err := a.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("parallel") {
				cfg.Dispatch.Parallel = parallel
			}
			svc, err := pipeline.Build(cfg, pipeline.BuildOptions{}, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			res := svc.Runner.Run(cmd.Context(), query)
			if err := writeResult(cmd.OutOrStdout(), res, format); err != nil {
				return err
			}
			if res.Error != "" {
				return fmt.Errorf("investigation failed: %s", res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, markdown, html or json")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "dispatch sub-tasks concurrently")
	return cmd
}

func writeResult(out io.Writer, res *pipeline.Result, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case formatMarkdown:
		_, err := io.WriteString(out, res.ReportMarkdown)
		return err
	case formatHTML:
		_, err := io.WriteString(out, res.ReportHTML)
		return err
	}

	fmt.Fprintf(out, "Query:    %s\n", res.Query)
	if res.Entity == nil {
		fmt.Fprintln(out, "Entity:   (unresolved)")
	} else {
		fmt.Fprintf(out, "Entity:   %s (%s)\n", res.EntityName, res.EntityID)
	}
	fmt.Fprintf(out, "Tasks:    %d\n", len(res.Tasks))
	fmt.Fprintf(out, "Findings: %d\n", res.FindingsCount)
	agents := make([]string, 0, len(res.FindingsByAgent))
	for agent := range res.FindingsByAgent {
		agents = append(agents, agent)
	}
	sort.Strings(agents)
	for _, agent := range agents {
		fmt.Fprintf(out, "  %s: %d\n", agent, res.FindingsByAgent[agent])
	}
	if len(res.SourceFailures) > 0 {
		fmt.Fprintln(out, "Source failures:")
		for _, f := range res.SourceFailures {
			fmt.Fprintf(out, "  %s: %s\n", f.SourceID, f.Error)
		}
	}
	if len(res.Conflicts) > 0 {
		fmt.Fprintf(out, "Conflicts: %d\n", len(res.Conflicts))
	}
	if len(res.Gaps) > 0 {
		fmt.Fprintln(out, "Gaps:")
		for _, g := range res.Gaps {
			fmt.Fprintf(out, "  [%s] %s\n", g.Area, g.Description)
		}
	}
	if res.ConfidenceScores != nil {
		fmt.Fprintf(out, "Confidence: %.2f\n", res.ConfidenceScores.Overall)
	}
	if res.RiskDashboard != "" {
		fmt.Fprintf(out, "\n%s\n", res.RiskDashboard)
	}
	if res.Error != "" {
		fmt.Fprintf(out, "\nError: %s\n", res.Error)
	}
	return nil
}

func newEntitiesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List registered entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := a.load()
			if err != nil {
				return err
			}
			reg, err := pipeline.LoadRegistry(cfg.Registry.File)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range reg.Entities() {
				fmt.Fprintf(out, "%s\t%s\t%s\n", e.ID, e.Name, e.Type)
				if len(e.Aliases) > 0 {
					fmt.Fprintf(out, "\taliases: %s\n", strings.Join(e.Aliases, ", "))
				}
			}
			return nil
		},
	}
}
