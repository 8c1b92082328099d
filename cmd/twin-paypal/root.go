package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wondertwin-ai/twin-paypal/internal/api"
	"github.com/wondertwin-ai/twin-paypal/internal/config"
	"github.com/wondertwin-ai/twin-paypal/pkg/twincore"
)

// serveFlags mirrors the config fields that can be overridden on the command line.
type serveFlags struct {
	envFile       string
	port          int
	latency       time.Duration
	failRate      float64
	webhookURL    string
	seedFile      string
	verbose       bool
	hostname      string
	sequentialIDs bool
}

func newRootCmd() *cobra.Command {
	var f serveFlags

	root := &cobra.Command{
		Use:           "twin-paypal",
		Short:         "Stateful PayPal API twin",
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, &f)
		},
	}

	addServeFlags(root, &f)
	root.AddCommand(newAdminCmd(), newScenarioCmd())
	return root
}

func addServeFlags(cmd *cobra.Command, f *serveFlags) {
	fs := cmd.Flags()
	fs.StringVar(&f.envFile, "env-file", config.DefaultEnvFile, "dotenv file to load before reading the environment")
	fs.IntVar(&f.port, "port", config.DefaultPort, "HTTP listen port")
	fs.DurationVar(&f.latency, "latency", 0, "latency added to every request")
	fs.Float64Var(&f.failRate, "fail-rate", 0, "fraction of requests answered with a 500 (0.0-1.0)")
	fs.StringVar(&f.webhookURL, "webhook-url", "", "URL webhook events are delivered to")
	fs.StringVar(&f.seedFile, "seed", "", "JSON or YAML state file loaded at startup")
	fs.BoolVar(&f.verbose, "verbose", false, "log every request")
	fs.StringVar(&f.hostname, "hostname", "", "only answer requests for this host (empty accepts any)")
	fs.BoolVar(&f.sequentialIDs, "sequential-ids", false, "issue PROD-000001 style IDs instead of random ones")
}

// loadConfig reads the environment and applies any flags the user set.
func loadConfig(cmd *cobra.Command, f *serveFlags) (*config.Config, error) {
	cfg, err := config.Load(f.envFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = f.port
	}
	if flags.Changed("latency") {
		cfg.Latency = f.latency
	}
	if flags.Changed("fail-rate") {
		cfg.FailRate = f.failRate
	}
	if flags.Changed("webhook-url") {
		cfg.WebhookURL = f.webhookURL
	}
	if flags.Changed("seed") {
		cfg.SeedFile = f.seedFile
	}
	if flags.Changed("verbose") {
		cfg.Verbose = f.verbose
	}
	if flags.Changed("hostname") {
		cfg.APIHostname = f.hostname
	}
	if flags.Changed("sequential-ids") && f.sequentialIDs {
		cfg.IDMode = "sequential"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serve(cmd *cobra.Command, f *serveFlags) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	logger := twincore.NewLogger(cfg.Verbose)
	srv, err := api.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("build twin: %w", err)
	}

	logger.Info("twin-paypal ready",
		"port", cfg.Port,
		"hostname", cfg.APIHostname,
		"webhook_url", cfg.WebhookURL,
		"webhook_id", cfg.WebhookID,
		"id_mode", cfg.IDMode,
	)

	err = srv.Twin.Serve(cmd.Context())
	srv.Dispatcher.Wait()
	return err
}
