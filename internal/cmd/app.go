// Package cmd provides the CLI commands for docmap.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/fclairamb/docmap/internal/apperrors"
	"github.com/fclairamb/docmap/internal/config"
	"github.com/fclairamb/docmap/internal/freshdesk"
	"github.com/fclairamb/docmap/internal/mapping"
	"github.com/fclairamb/docmap/internal/store"
	"github.com/fclairamb/docmap/internal/sync"
	"github.com/fclairamb/docmap/internal/version"
	"github.com/fclairamb/docmap/internal/watch"
	"github.com/fclairamb/docmap/internal/webhook"
)

const dirPerm = 0o750

type configKey struct{}

// NewApp creates the CLI application.
func NewApp() *cli.Command {
	return &cli.Command{
		Name:    "docmap",
		Usage:   "Keep a category/folder/article markdown tree in sync with a knowledge base",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file, overlaid by DOCMAP_ environment variables",
				Sources: cli.EnvVars("DOCMAP_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "repo",
				Aliases: []string{"r"},
				Usage:   "Path to the git working copy (DOCMAP_REPO_PATH)",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose logging",
			},
		},
		Commands: []*cli.Command{
			initCommand(),
			scanCommand(),
			syncCommand(),
			statusCommand(),
			serveCommand(),
			watchCommand(),
			checkCommand(),
			remoteCommand(),
		},
	}
}

// prepare loads the configuration and sets up logging. It runs before every leaf command.
func prepare(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := config.Load(config.WithFile(cmd.String("config")))
	if err != nil {
		return ctx, err
	}
	if repo := cmd.String("repo"); repo != "" {
		cfg.Set("repo_path", repo)
	}

	setupLogging(cmd, cfg)

	return context.WithValue(ctx, configKey{}, cfg), nil
}

func configFrom(ctx context.Context) *config.Config {
	cfg, _ := ctx.Value(configKey{}).(*config.Config)
	return cfg
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:   "init",
		Usage:  "Create the content directory and the empty mapping collections",
		Before: prepare,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)

			if err := os.MkdirAll(cfg.ContentPath(), dirPerm); err != nil {
				return fmt.Errorf("create content dir: %w", err)
			}
			if err := mapping.Init(cfg.MappingPath()); err != nil {
				return err
			}

			slog.InfoContext(ctx, "initialized", "content_dir", cfg.ContentPath(), "mapping_dir", cfg.MappingPath())
			displayInit(cmd.Root().Writer, cfg)
			return nil
		},
	}
}

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:   "scan",
		Usage:  "Reconcile the tree with the mapping without contacting the knowledge base",
		Before: prepare,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)

			runner := sync.NewRunner(newEngine(cfg), cfg.MappingPath(), sync.WithRunnerLogger(slog.Default()))
			report, err := runner.Run(ctx)
			if err != nil {
				return err
			}

			displayReport(cmd.Root().Writer, report)
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run a full pass: pull, reconcile, push to the knowledge base, commit",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Log the remote calls instead of making them, and do not commit",
			},
			&cli.StringFlag{
				Name:  "api-url",
				Usage: "Knowledge base URL (DOCMAP_FRESHDESK_API_URL)",
			},
			&cli.StringFlag{
				Name:  "api-key",
				Usage: "Knowledge base API key (DOCMAP_FRESHDESK_API_KEY)",
			},
		},
		Before: prepare,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)
			applyAPIFlags(cmd, cfg)

			runner, err := newRunner(cfg, cmd.Bool("dry-run"))
			if err != nil {
				return err
			}

			report, err := runner.Run(ctx)
			if report != nil {
				displayReport(cmd.Root().Writer, report)
			}
			return err
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show the mapping and working copy state",
		Before: prepare,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)

			st, err := mapping.Load(cfg.MappingPath())
			if err != nil {
				return err
			}

			var repo *store.Repository
			if _, statErr := os.Stat(filepath.Join(cfg.RepoPath(), ".git")); statErr == nil {
				repo, err = store.Open(cfg.RepoPath(), store.WithLogger(slog.Default()))
				if err != nil {
					return err
				}
			}

			return displayStatus(cmd.Root().Writer, st, repo)
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the webhook server; accepted pushes trigger a pass",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "HTTP port to listen on (DOCMAP_WEBHOOK_PORT)",
			},
			&cli.StringFlag{
				Name:  "api-url",
				Usage: "Knowledge base URL (DOCMAP_FRESHDESK_API_URL)",
			},
			&cli.StringFlag{
				Name:  "api-key",
				Usage: "Knowledge base API key (DOCMAP_FRESHDESK_API_KEY)",
			},
		},
		Before: prepare,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)
			applyAPIFlags(cmd, cfg)
			if port := cmd.Int("port"); port > 0 {
				cfg.Set("webhook_port", port)
			}

			remoteConfig := store.LoadRemoteConfig(cfg.Koanf())
			serverConfig := webhook.LoadConfig(cfg.Koanf(), remoteConfig.Branch)
			if !serverConfig.IsValid() {
				return fmt.Errorf("invalid webhook configuration: %+v", *serverConfig)
			}
			if serverConfig.Secret == "" {
				slog.WarnContext(ctx, "webhook secret not configured, signature verification disabled (set DOCMAP_WEBHOOK_SECRET)")
			}

			runner, err := newRunner(cfg, false)
			if err != nil {
				return err
			}

			worker := webhook.NewSyncWorker(runner, slog.Default(), webhook.WithSyncDelay(serverConfig.SyncDelay))
			server := webhook.NewServer(serverConfig, slog.Default(), worker)

			return server.Start(ctx)
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Run a pass whenever the content tree changes on disk",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "offline",
				Usage: "Only reconcile the mapping, never contact the knowledge base",
			},
			&cli.StringFlag{
				Name:  "api-url",
				Usage: "Knowledge base URL (DOCMAP_FRESHDESK_API_URL)",
			},
			&cli.StringFlag{
				Name:  "api-key",
				Usage: "Knowledge base API key (DOCMAP_FRESHDESK_API_KEY)",
			},
		},
		Before: prepare,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)
			applyAPIFlags(cmd, cfg)

			var runner *sync.Runner
			if cmd.Bool("offline") {
				runner = sync.NewRunner(newEngine(cfg), cfg.MappingPath(), sync.WithRunnerLogger(slog.Default()))
			} else {
				var err error
				if runner, err = newRunner(cfg, false); err != nil {
					return err
				}
			}

			worker := webhook.NewSyncWorker(runner, slog.Default())
			watcher, err := watch.New(cfg.ContentPath(), worker,
				watch.WithDebounce(cfg.WatchDebounce()),
				watch.WithLogger(slog.Default()))
			if err != nil {
				return err
			}

			ctx, stop := context.WithCancel(ctx)
			defer stop()

			workerDone := make(chan struct{})
			go func() {
				defer close(workerDone)
				worker.Start(ctx)
			}()
			worker.Notify()

			err = watcher.Run(ctx)
			stop()
			<-workerDone
			return err
		},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Check the knowledge base URL and credentials",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "api-url",
				Usage: "Knowledge base URL (DOCMAP_FRESHDESK_API_URL)",
			},
			&cli.StringFlag{
				Name:  "api-key",
				Usage: "Knowledge base API key (DOCMAP_FRESHDESK_API_KEY)",
			},
		},
		Before: prepare,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)
			applyAPIFlags(cmd, cfg)

			client, err := newClient(cfg)
			if err != nil {
				return err
			}
			return displayKnowledgeBaseCheck(ctx, cmd.Root().Writer, client)
		},
	}
}

func remoteCommand() *cli.Command {
	return &cli.Command{
		Name:  "remote",
		Usage: "Inspect the remote git repository configuration",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the remote configuration",
				Before: prepare,
				Action: func(ctx context.Context, cmd *cli.Command) error {
					displayRemoteConfig(cmd.Root().Writer, store.LoadRemoteConfig(configFrom(ctx).Koanf()))
					return nil
				},
			},
			{
				Name:   "test",
				Usage:  "Test connection to the remote repository",
				Before: prepare,
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := store.LoadRemoteConfig(configFrom(ctx).Koanf())
					if !cfg.IsEnabled() {
						return apperrors.ErrRemoteNotConfiguredSetURL
					}
					return displayConnectionTest(ctx, cmd.Root().Writer, cfg)
				},
			},
		},
	}
}

func applyAPIFlags(cmd *cli.Command, cfg *config.Config) {
	if url := cmd.String("api-url"); url != "" {
		cfg.Set("freshdesk_api_url", url)
	}
	if key := cmd.String("api-key"); key != "" {
		cfg.Set("freshdesk_api_key", key)
	}
}

func newEngine(cfg *config.Config) *sync.Engine {
	return sync.NewEngine(cfg.ContentPath(), sync.WithEngineLogger(slog.Default()))
}

// newRunner wires the full pass: knowledge base adapter and git repository.
func newRunner(cfg *config.Config, dryRun bool) (*sync.Runner, error) {
	adapter, err := newAdapter(cfg)
	if err != nil {
		return nil, err
	}

	remoteConfig := store.LoadRemoteConfig(cfg.Koanf())
	repo, err := store.Open(cfg.RepoPath(), store.WithLogger(slog.Default()), store.WithRemoteConfig(remoteConfig))
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	pusher := sync.NewPusher(adapter, sync.WithPusherLogger(slog.Default()), sync.WithDryRun(dryRun))

	return sync.NewRunner(newEngine(cfg), cfg.MappingPath(),
		sync.WithRunnerLogger(slog.Default()),
		sync.WithPusher(pusher),
		sync.WithRepository(repo, remoteConfig.IsCommitEnabled() && !dryRun, remoteConfig.IsPushEnabled()),
	), nil
}

func newAdapter(cfg *config.Config) (*freshdesk.Adapter, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return freshdesk.NewAdapter(client, slog.Default()), nil
}

func newClient(cfg *config.Config) (*freshdesk.Client, error) {
	url := cfg.String("freshdesk_api_url", "")
	key := cfg.String("freshdesk_api_key", "")
	switch {
	case url == "":
		return nil, apperrors.ErrAPIURLRequired
	case key == "":
		return nil, apperrors.ErrAPIKeyRequired
	}

	return freshdesk.NewClient(url, key,
		freshdesk.WithLogger(slog.Default()),
		freshdesk.WithRateInterval(cfg.Duration("freshdesk_rate_interval", freshdesk.DefaultRateInterval))), nil
}
