package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/joseph-ayodele/records-pipeline/internal/common"
	"github.com/joseph-ayodele/records-pipeline/internal/nebuia"
	"github.com/joseph-ayodele/records-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/records-pipeline/internal/repository"
)

var rootCmd = &cobra.Command{
	Use:   "recordflow",
	Short: "Upload, verify and process document records against the extraction service",
	Long: `recordflow drives a record through the extraction service:
create the record, upload PDFs, wait for embedding, verify each document's type,
launch the processing job and optionally wait for it to finish.

Credentials come from NEBUIA_CLIENT_ID, NEBUIA_API_KEY and NEBUIA_API_SECRET,
optionally loaded from a .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile := viper.GetString("env-file")
		if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		setupLogger(viper.GetString("log-level"), viper.GetString("log-format"))
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	rootCmd.AddCommand(runCmd(), batchCmd(), watchCmd(), historyCmd(), entitiesCmd(), exportCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(exitCode(err))
	}
}

func initConfig() {
	viper.SetEnvPrefix("RECORDFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file with credentials")
	rootCmd.PersistentFlags().String("log-level", "info", "debug|info|warn|error")
	rootCmd.PersistentFlags().String("log-format", "text", "text|json")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	for _, name := range []string{"env-file", "log-level", "log-format", "json"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

// bindFlags binds the running command's flags to viper keys. Binding at run
// time keeps commands that share a flag name from shadowing each other.
func bindFlags(cmd *cobra.Command, _ []string) error {
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if e := viper.BindPFlag(f.Name, f); e != nil && err == nil {
			err = e
		}
	})
	return err
}

func setupLogger(level, format string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

// exitCode maps error kinds to distinct process exit codes.
func exitCode(err error) int {
	switch common.KindOf(err) {
	case common.KindValidation:
		return 2
	case common.KindRemoteRejected:
		return 3
	case common.KindRemoteUnavailable:
		return 4
	case common.KindCancelled:
		return 130
	}
	return 1
}

// loadConfig reads env config and validates it.
func loadConfig() (*common.Config, error) {
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newClient(cfg *common.Config) *nebuia.Client {
	return nebuia.NewClient(nebuia.Config{
		BaseURL:       cfg.Remote.BaseURL,
		EmbeddingsURL: cfg.Remote.EmbeddingsURL,
		ClientID:      cfg.Remote.ClientID,
		APIKey:        cfg.Remote.APIKey,
		APISecret:     cfg.Remote.APISecret,
		Timeout:       cfg.Remote.Timeout,
		UploadTimeout: cfg.Remote.UploadTimeout,
		VerifyTimeout: cfg.Remote.VerifyTimeout,
		StrictPDF:     cfg.Remote.StrictPDF,
	}, slog.Default())
}

func newOrchestrator(cfg *common.Config, gw pipeline.Gateway) *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(gw,
		pipeline.WithConfig(cfg.Pipeline),
		pipeline.WithStrictPDF(cfg.Remote.StrictPDF),
		pipeline.WithLogger(slog.Default()),
	)
}

// openStore returns nil when history is disabled.
func openStore(ctx context.Context, cfg *common.Config) (repository.RunStore, error) {
	return repository.Open(ctx, cfg.Store, slog.Default())
}

var _ pipeline.Gateway = (*nebuia.Client)(nil)
