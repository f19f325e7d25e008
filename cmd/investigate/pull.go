package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taljindergill78/FSE570/internal/pipeline"
	"github.com/taljindergill78/FSE570/internal/sources"
)

func newPullCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Fetch raw source payloads into the cache",
	}
	cmd.AddCommand(newPullSECCmd(a), newPullNHTSACmd(a))
	return cmd
}

func newPullSECCmd(a *app) *cobra.Command {
	var cik string
	cmd := &cobra.Command{
		Use:   "sec",
		Short: "Cache SEC EDGAR submissions for a CIK",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cik10, err := sources.NormalizeCIK(cik)
			if err != nil {
				return err
			}
			svc, _, err := a.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			sec, err := processor[*sources.SECProcessor](svc, sources.SourceSECEdgar)
			if err != nil {
				return err
			}
			data, err := sec.Submissions(cmd.Context(), cik10)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cached SEC submissions for CIK%s (%d bytes, %s cache)\n", cik10, len(data), svc.Cache.Backend())
			return nil
		},
	}
	cmd.Flags().StringVar(&cik, "cik", "", "company CIK, e.g. 1318605")
	_ = cmd.MarkFlagRequired("cik")
	return cmd
}

func newPullNHTSACmd(a *app) *cobra.Command {
	var vehicleMake string
	cmd := &cobra.Command{
		Use:   "nhtsa",
		Short: "Cache NHTSA recalls for a vehicle make",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, _, err := a.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			nhtsa, err := processor[*sources.NHTSAProcessor](svc, sources.SourceNHTSA)
			if err != nil {
				return err
			}
			data, err := nhtsa.Recalls(cmd.Context(), vehicleMake)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cached NHTSA recalls for %s (%d bytes, %s cache)\n", vehicleMake, len(data), svc.Cache.Backend())
			return nil
		},
	}
	cmd.Flags().StringVar(&vehicleMake, "make", "", "vehicle make, e.g. TESLA")
	_ = cmd.MarkFlagRequired("make")
	return cmd
}

// processor looks up an enabled source and asserts its concrete type.
func processor[T sources.Processor](svc *pipeline.Service, id string) (T, error) {
	var zero T
	p, ok := svc.Gateway.Processor(id)
	if !ok {
		return zero, fmt.Errorf("source %s is not enabled", id)
	}
	typed, ok := p.(T)
	if !ok {
		return zero, fmt.Errorf("source %s has unexpected type %T", id, p)
	}
	return typed, nil
}
