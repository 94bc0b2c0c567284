package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"meshport/internal/api"
	"meshport/internal/ledger"
	"meshport/internal/pipeline"
)

var statusTitle = cases.Title(language.English)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var limit int
	var assetID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded pipeline runs",
		Long: `List recorded pipeline runs, newest first.

Renders a table on terminals and JSON when stdout is redirected or --json is set.
With --asset, shows only the latest run that resolved to that asset.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFlags)
			if err != nil {
				return err
			}
			if assetID != "" && len(statuses) > 0 {
				return fmt.Errorf("--asset and --status cannot be combined")
			}
			return ctx.withPipeline(cmd, func(p *pipeline.Pipeline) error {
				var resp api.HistoryResponse
				if assetID != "" {
					resp = p.Service.LatestForAsset(cmd.Context(), assetID)
				} else {
					resp = p.Service.History(cmd.Context(), statuses...)
				}
				if limit > 0 && len(resp.Runs) > limit {
					resp.Runs = resp.Runs[:limit]
				}
				if ctx.JSONMode() || !isTerminal(cmd.OutOrStdout()) {
					if err := writeJSON(cmd, resp); err != nil {
						return err
					}
					if resp.Failed() {
						return errReported
					}
					return nil
				}
				if resp.Failed() {
					return fmt.Errorf("%s error: %s", resp.ErrorKind, resp.Error)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderHistory(resp.Runs))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (resolving, fetching, converting, completed, failed)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many runs")
	cmd.Flags().StringVarP(&assetID, "asset", "a", "", "Show the latest run for this asset id")
	cmd.AddCommand(newHistoryClearCommand(ctx))
	return cmd
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(p *pipeline.Pipeline) error {
				resp := p.Service.ClearHistory(cmd.Context(), failedOnly)
				return ctx.emit(cmd, resp.Failure, resp, func() {
					label := "runs"
					if failedOnly {
						label = "failed runs"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %s\n", resp.Removed, label)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Remove only failed runs")
	return cmd
}

func parseStatuses(values []string) ([]ledger.Status, error) {
	var statuses []ledger.Status
	for _, value := range values {
		trimmed := strings.ToLower(strings.TrimSpace(value))
		if trimmed == "" {
			continue
		}
		status, ok := ledger.ParseStatus(trimmed)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func renderHistory(runs []api.Run) string {
	if len(runs) == 0 {
		return "No runs recorded\n"
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		detail := run.MMLURL
		if run.ErrorMessage != "" {
			detail = run.ErrorKind + ": " + run.ErrorMessage
		}
		rows = append(rows, []string{
			strconv.FormatInt(run.ID, 10),
			run.ContractID + "/" + run.TokenID,
			run.AssetID,
			statusTitle.String(run.Status),
			age(run.CreatedAt),
			detail,
		})
	}
	return renderTable(
		[]string{"ID", "Token", "Asset", "Status", "Age", "Result"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func age(timestamp string) string {
	created, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return ""
	}
	return formatDuration(time.Since(created).Truncate(time.Minute))
}
