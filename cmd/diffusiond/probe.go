package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"diffusiond/internal/inject"
	"diffusiond/internal/manager"
)

func newProbeCmd(f *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Report the device and model the service would load",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f, osLookup)
			if err != nil {
				return err
			}
			backend, err := inject.BackendFor(cfg, zerolog.Nop())
			if err != nil {
				return err
			}
			r := manager.SanityCheck(cmd.Context(), backend, inject.PipelineOptions(cfg))
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}
			renderReport(cmd, r)
			if r.Error != "" {
				return fmt.Errorf("probe: %s", r.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func renderReport(cmd *cobra.Command, r manager.SanityReport) {
	t := tablewriter.NewWriter(cmd.OutOrStdout())
	t.SetHeader([]string{"Key", "Value"})
	t.SetAutoWrapText(false)
	t.Append([]string{"backend", r.Backend})
	t.Append([]string{"device", r.Device})
	t.Append([]string{"precision", r.Precision})
	t.Append([]string{"hardware_available", strconv.FormatBool(r.HardwareAvailable)})
	t.Append([]string{"variant", r.Variant})
	t.Append([]string{"model", r.Model})
	for i, g := range r.GPUs {
		t.Append([]string{fmt.Sprintf("gpu%d", i), fmt.Sprintf("%s (%d MiB)", g.Name, g.MemoryMB)})
	}
	if r.Error != "" {
		t.Append([]string{"error", r.Error})
	}
	t.Render()
}
