// Package main is the CLI entry point for exposure-sync.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/exposure-sync/exposure-sync/internal/config"
	"github.com/exposure-sync/exposure-sync/internal/exposure"
	"github.com/exposure-sync/exposure-sync/internal/session"
)

// Build-time variables set via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	app := &cli.Command{
		Name:    "exposure-sync",
		Usage:   "Keeps a local view of exposure notifications in sync with the detection subsystem",
		Version: version,
		Commands: []*cli.Command{
			runCommand(),
			checkCommand(),
			versionCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to YAML configuration file",
			Sources: cli.EnvVars("EXS_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (trace, debug, info, warn, error, fatal, panic)",
			Sources: cli.EnvVars("EXS_LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for the revision-token store",
			Sources: cli.EnvVars("EXS_REDIS_URL"),
		},
		&cli.StringFlag{
			Name:    "nats-url",
			Usage:   "NATS Streaming URL carrying background detection results",
			Sources: cli.EnvVars("EXS_NATS_URL"),
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Start the sync session",
		Flags: append(commonFlags(),
			&cli.StringFlag{
				Name:    "server-listen-address",
				Usage:   "HTTP listen address (e.g. :8080)",
				Sources: cli.EnvVars("EXS_LISTEN_ADDRESS"),
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if v := cmd.String("server-listen-address"); v != "" {
				cfg.Server.ListenAddress = v
			}

			log := newLogger(cfg)
			log.WithFields(logrus.Fields{
				"version": version,
				"commit":  commit,
			}).Info("starting exposure-sync")

			// --- OS signal handling for graceful shutdown ---
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := session.New(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("initializing session: %w", err)
			}

			return s.Run(ctx)
		},
	}
}

// checkCommand is a smoke test of the configured stack. The session it
// builds has a fresh in-process bridge with no detector, so the snapshot is
// empty unless detection is wired in; what it proves is that config loads,
// the revision-token store answers, and the detection quota admits a pass.
func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Smoke-test the configured stack: read the revision token, run one detection pass, print the result",
		Flags: commonFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			res, err := runCheck(ctx, cfg, newLogger(cfg), os.Stdout)
			if err != nil {
				return err
			}
			if !res.OK() {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

type checkReport struct {
	Store         string            `json:"store"`
	RevisionToken string            `json:"revision_token"`
	Result        exposure.Result   `json:"result"`
	Snapshot      exposure.Snapshot `json:"snapshot"`
}

// runCheck builds a session without server or relay, reads the revision
// token from the configured store, runs one check and writes a report to w.
func runCheck(ctx context.Context, cfg *config.Config, log *logrus.Entry, w io.Writer) (exposure.Result, error) {
	cfg.Server.Enabled = false
	cfg.NATS.URL = ""

	s, err := session.New(ctx, cfg, log)
	if err != nil {
		return exposure.Result{}, fmt.Errorf("initializing session: %w", err)
	}
	defer s.Close()

	token, err := s.Syncer().GetRevisionToken(ctx)
	if err != nil {
		return exposure.Result{}, fmt.Errorf("reading revision token: %w", err)
	}

	res := s.Syncer().CheckForNewExposures(ctx)
	report := checkReport{
		Store:         storeBackend(cfg),
		RevisionToken: token,
		Result:        res,
		Snapshot:      s.Syncer().Snapshot(),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return res, fmt.Errorf("encoding result: %w", err)
	}
	return res, nil
}

func storeBackend(cfg *config.Config) string {
	switch {
	case cfg.Redis.URL != "":
		return "redis"
	case cfg.Postgres.DSN != "":
		return "postgres"
	default:
		return "memory"
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(_ context.Context, _ *cli.Command) error {
			fmt.Printf("exposure-sync %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}

// loadConfig reads the config file (or environment only) and applies CLI
// overrides on top.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := cmd.String("config"); path != "" {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	} else {
		cfg, err = config.FromEnv()
		if err != nil {
			return nil, fmt.Errorf("loading config from environment: %w", err)
		}
	}

	if v := cmd.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := cmd.String("redis-url"); v != "" {
		cfg.Redis.URL = v
	}
	if v := cmd.String("nats-url"); v != "" {
		cfg.NATS.URL = v
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logrus.Entry {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return logger.WithField("app", "exposure-sync")
}
