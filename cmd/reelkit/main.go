package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kalambet/reelkit/internal/dispatch"
	"github.com/kalambet/reelkit/internal/store"
)

var version = "dev"

// errNoResult marks a run that completed without any usable output, such
// as a decompose where every index failed. Diagnostics are already printed.
var errNoResult = errors.New("no usable result")

var rootCmd = &cobra.Command{
	Use:           "reelkit",
	Short:         "Decompose trending short videos and write scripts from them",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("no-color"); v {
			noColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("no-color", false, "disable coloured output")

	rootCmd.AddCommand(runCmd, decomposeCmd, imitateCmd, originateCmd, analyzeCmd)
	rootCmd.AddCommand(queueCmd, kbCmd, historyCmd, productCmd, configCmd)
	rootCmd.AddCommand(serveCmd, statusCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errNoResult) {
			printError("%v", err)
			if hint := errorHint(err); hint != "" {
				printStatus("Hint", "%s", hint)
			}
		}
		os.Exit(1)
	}
}

func errorHint(err error) string {
	switch {
	case errors.Is(err, store.ErrNoQueue):
		return "no queue snapshot yet; import one with `reelkit queue import <file>`"
	case dispatch.Classify(err) == dispatch.ClassParse:
		return "try `拆解 1,3`, `仿写 2` or `原创 <主题>`"
	case dispatch.Classify(err) == dispatch.ClassCollaborator:
		return "an upstream service failed; check API keys and base URLs with `reelkit config show`"
	}
	return ""
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}
