package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dev-five-git/vespera/internal/config"
	"github.com/dev-five-git/vespera/internal/generator"
	"github.com/dev-five-git/vespera/internal/watch"
)

// These variables are set at build time through ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	var (
		outputPath string
		validate   bool
		watchMode  bool
	)

	rootCmd := &cobra.Command{
		Use:   "vespera",
		Short: "vespera generates OpenAPI documents and ORM bridge code from source annotations.",
		Long: `vespera scans a Go project for directive comments on handler functions and
type declarations, writes bridge files binding ORM models to API schema
structs, and assembles an OpenAPI 3.1 document. Behavior is configured
through an optional .vespera.yaml in the project root.`,
	}

	generateCmd := &cobra.Command{
		Use:   "generate [path]",
		Short: "Scan a project and write its bridge files and OpenAPI document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}
			opts := generator.Options{Output: outputPath, Validate: validate}

			if err := generator.Run(dir, cfg, opts); err != nil {
				return err
			}
			if !watchMode {
				return nil
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			slog.Info("watching for changes", "path", dir)
			err = watch.Run(ctx, dir, cfg.Exclude, 300*time.Millisecond, func() {
				if err := generator.Run(dir, cfg, opts); err != nil {
					slog.Error("regeneration failed", "err", err)
				}
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	generateCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file for the OpenAPI document (default from config)")
	generateCmd.Flags().BoolVar(&validate, "validate", false, "Validate the assembled document before writing")
	generateCmd.Flags().BoolVar(&watchMode, "watch", false, "Keep running and regenerate when source files change")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of vespera",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vespera version %s\n", version)
			fmt.Printf("commit: %s\n", commit)
			fmt.Printf("built at: %s\n", date)
		},
	}

	rootCmd.AddCommand(generateCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
