// Package main implements the kinship CLI: ask questions about a family
// tree, add facts to it, and serve it over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cognicore/kinship/internal/logging"
	"github.com/cognicore/kinship/pkg/kinship/config"
	"github.com/cognicore/kinship/pkg/kinship/internalerr"
)

var (
	// Global flags
	verbose    bool
	configPath string
	envFiles   []string

	// Set by the root PersistentPreRunE
	logger *zap.Logger
	cfg    config.Config
)

var rootCmd = &cobra.Command{
	Use:   "kinship",
	Short: "Ask questions about a family tree in plain language",
	Long: `kinship turns a question like "Who are the cousins of Chernet?" into a
call against the family-tree rules, runs it over the facts in
family-tree.metta, and phrases the result with a language model.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zapcore.WarnLevel
		if cmd.Name() == serveCmd.Name() {
			level = zapcore.InfoLevel
		}
		var err error
		logger, err = logging.New(verbose, level)
		if err != nil {
			return err
		}

		if err := config.LoadEnv(envFiles...); err != nil {
			return err
		}
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Dotenv files to load (default .env)")

	askCmd.Flags().BoolVar(&debugTrace, "debug", false, "Print the query and raw results")
	chatCmd.Flags().BoolVar(&debugTrace, "debug", false, "Print the query and raw results")

	addParentCmd.Flags().StringVar(&addParent, "parent", "", "Parent name (required)")
	addParentCmd.Flags().StringVar(&addChild, "child", "", "Child name (required)")
	addParentCmd.Flags().StringVar(&addGender, "gender", "", "Parent gender: Male or Female (required)")
	_ = addParentCmd.MarkFlagRequired("parent")
	_ = addParentCmd.MarkFlagRequired("child")
	_ = addParentCmd.MarkFlagRequired("gender")

	addEthnicityCmd.Flags().StringVar(&addName, "name", "", "Person name (required)")
	addEthnicityCmd.Flags().StringVar(&addGroup, "group", "", "Ethnic group (required)")
	addEthnicityCmd.Flags().Float64Var(&addFraction, "fraction", 0, "Fraction between 0.0 and 1.0 (required)")
	_ = addEthnicityCmd.MarkFlagRequired("name")
	_ = addEthnicityCmd.MarkFlagRequired("group")
	_ = addEthnicityCmd.MarkFlagRequired("fraction")

	addCmd.AddCommand(addParentCmd, addEthnicityCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of entries to show")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write to a file instead of stdout")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Reload the fact file when it changes on disk")

	rootCmd.AddCommand(askCmd, chatCmd, addCmd, functionsCmd, historyCmd, exportCmd, serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if hint := internalerr.Hints(err); hint != "" {
			fmt.Fprintln(os.Stderr, "hint:", hint)
		}
		os.Exit(1)
	}
}
