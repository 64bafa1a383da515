package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kdimtricp/brokeshot/internal/analysis"
)

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the analysis service is up and its model is loaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := analysis.NewClient(analysis.Config{
				Endpoint: opts.cfg.Endpoint,
				APIKey:   opts.cfg.APIKey,
				Timeout:  opts.cfg.RequestTimeout,
			}, nil)

			health, err := client.Health(cmd.Context())
			if err != nil {
				if analysis.KindOf(err) == analysis.KindTransport {
					return fmt.Errorf("analysis service unreachable at %s: %w", client.Endpoint(), err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Endpoint: %s\n", client.Endpoint())
			fmt.Fprintf(out, "Status: %s\n", health.Status)
			fmt.Fprintf(out, "Model loaded: %t\n", health.ModelLoaded)
			fmt.Fprintf(out, "Device: %s\n", health.Device)
			if !health.ModelLoaded {
				return fmt.Errorf("analysis model is not loaded")
			}
			return nil
		},
	}
}
