package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"meshport/internal/pipeline"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <contract> <token>",
		Short: "Resolve a token to its asset id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(p *pipeline.Pipeline) error {
				resp := p.Service.Resolve(cmd.Context(), args[0], args[1])
				return ctx.emit(cmd, resp.Failure, resp, func() {
					fmt.Fprintln(cmd.OutOrStdout(), resp.AssetID)
				})
			})
		},
	}
}

func newFetchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <asset-id>",
		Short: "Republish an asset's glTF scene description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(p *pipeline.Pipeline) error {
				resp := p.Service.FetchDescription(cmd.Context(), args[0])
				return ctx.emit(cmd, resp.Failure, resp, func() {
					fmt.Fprintln(cmd.OutOrStdout(), resp.URL)
				})
			})
		},
	}
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "convert <asset-id> <gltf-url>",
		Short: "Convert a published scene description to GLB and MML",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(p *pipeline.Pipeline) error {
				resp := p.Service.Convert(cmd.Context(), args[0], args[1])
				return ctx.emit(cmd, resp.Failure, resp, func() {
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "GLB: %s\n", resp.GLBURL)
					fmt.Fprintf(out, "MML: %s\n", resp.MMLURL)
				})
			})
		},
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <contract> <token>",
		Short: "Resolve, fetch and convert a token in one pass",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(p *pipeline.Pipeline) error {
				resp := p.Service.Run(cmd.Context(), args[0], args[1])
				return ctx.emit(cmd, resp.Failure, resp, func() {
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "Run:   %d\n", resp.RunID)
					fmt.Fprintf(out, "Asset: %s\n", resp.AssetID)
					fmt.Fprintf(out, "glTF:  %s\n", resp.GLTFURL)
					fmt.Fprintf(out, "GLB:   %s\n", resp.GLBURL)
					fmt.Fprintf(out, "MML:   %s\n", resp.MMLURL)
				})
			})
		},
	}
}

func newRandomCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "random",
		Short: "Pick a random token from the asset catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd, func(p *pipeline.Pipeline) error {
				resp := p.Service.Random(cmd.Context())
				return ctx.emit(cmd, resp.Failure, resp, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", resp.ContractID, resp.TokenID)
				})
			})
		},
	}
}
