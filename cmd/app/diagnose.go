package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"photogrammetry-studio/internal/config"
	"photogrammetry-studio/internal/diagnostics"
	"photogrammetry-studio/internal/domain"
)

func newDiagnoseCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Check the engine and directories from the settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.NewFileStore(flags.settingsPath).Load()
			if err != nil {
				return err
			}

			report := diagnostics.NewChecker().Run(settings)
			out := cmd.OutOrStdout()
			for _, item := range report.Items {
				fmt.Fprintf(out, "[%s] %s: %s\n", strings.ToUpper(string(item.Status)), item.Name, item.Message)
				if item.Hint != "" && item.Status != domain.DiagnosticStatusPass {
					fmt.Fprintf(out, "       %s\n", item.Hint)
				}
			}
			if report.HasFailures {
				return fmt.Errorf("diagnostics reported failures")
			}
			return nil
		},
	}

	return cmd
}
