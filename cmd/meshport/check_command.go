package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"meshport/internal/api"
	"meshport/internal/deps"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify external dependencies are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			missing := deps.Missing(statuses)

			if ctx.JSONMode() {
				if err := writeJSON(cmd, api.FromDependencies(statuses)); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(statuses))
				for _, status := range statuses {
					rows = append(rows, []string{status.Name, status.Command, yesNo(status.Available), status.Detail})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Dependency", "Command", "Available", "Detail"},
					rows,
					nil,
				))
			}
			if len(missing) > 0 {
				return fmt.Errorf("%d required dependencies missing", len(missing))
			}
			return nil
		},
	}
}
