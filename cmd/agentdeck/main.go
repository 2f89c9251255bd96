// Command agentdeck is the agent inbox client: it lists paused runs,
// drives the accept/edit/respond/ignore review flow against the
// orchestration backend, and optionally serves the same state over a
// local HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentdeck/agentdeck/pkg/auth"
	"github.com/agentdeck/agentdeck/pkg/config"
	"github.com/agentdeck/agentdeck/pkg/insights"
	"github.com/agentdeck/agentdeck/pkg/logging"
	"github.com/agentdeck/agentdeck/pkg/notify"
	"github.com/agentdeck/agentdeck/pkg/platform"
	"github.com/agentdeck/agentdeck/pkg/session"
)

// Version information, set via ldflags during build.
var (
	version   = "0.1.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "agentdeck: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: agentdeck [flags] <command>

Commands:
  inbox              List threads waiting for a decision (default)
  review <thread>    Review and answer a paused thread
  resolve <thread>   Mark a thread finished without answering
  serve              Run the local API daemon
  workflows          List workflows and which ones are watched
  insights           List saved insights
  sync               Push local insight edits and refresh the cache
  init               Write an example config file
  version            Print version information

Flags:
  -config <path>     Config file (default ~/.agentdeck/config.yaml)
  -view <status>     Inbox view: interrupted, idle, busy, error
`)
}

func run(args []string) error {
	configPath := config.DefaultPath()
	view := ""

	// Hand-rolled flag scan so flags may precede or follow the command.
	var rest []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-config", "--config":
			if i+1 >= len(args) {
				return fmt.Errorf("-config requires a path")
			}
			i++
			configPath = args[i]
		case "-view", "--view":
			if i+1 >= len(args) {
				return fmt.Errorf("-view requires a status")
			}
			i++
			view = args[i]
		case "-h", "-help", "--help":
			usage()
			return nil
		default:
			rest = append(rest, args[i])
		}
	}

	command := "inbox"
	if len(rest) > 0 {
		command = rest[0]
		rest = rest[1:]
	}

	switch command {
	case "version":
		fmt.Printf("agentdeck %s (%s, built %s)\n", version, commit, buildDate)
		return nil
	case "init":
		return runInit(configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if view != "" {
		cfg.Inbox.DefaultView = view
	}

	app, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch command {
	case "inbox":
		return app.runInbox(ctx)
	case "review":
		if len(rest) != 1 {
			return fmt.Errorf("usage: agentdeck review <thread-id>")
		}
		return app.runReview(ctx, rest[0])
	case "resolve":
		if len(rest) != 1 {
			return fmt.Errorf("usage: agentdeck resolve <thread-id>")
		}
		return app.runResolve(ctx, rest[0])
	case "serve":
		return app.runServe(ctx)
	case "workflows":
		return app.runWorkflows(ctx)
	case "insights":
		return app.runInsights(ctx)
	case "sync":
		return app.runSync(ctx)
	default:
		usage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func runInit(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if dir := dirOf(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, []byte(config.Example()), 0o600); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return ""
}

// app bundles the wired collaborators behind each subcommand.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	audit    *logging.AuditLogger
	tokens   auth.TokenSource
	platform *platform.Client
	notifier notify.Notifier
	insights *insights.Store

	natsSink *notify.NATSNotifier
}

func newApp(cfg *config.Config) (*app, error) {
	logger, err := logging.NewLogger(cfg.Logging.Dir, session.GenerateClientID("cli"))
	if err != nil {
		return nil, err
	}
	logger.SetMinLevel(logging.Level(cfg.Logging.Level))

	tokens := auth.NewSource(cfg.Auth.APIKey, nil)

	client, err := platform.NewClient(platform.Options{
		BaseURL: cfg.Platform.BaseURL,
		Tokens:  tokens,
		Logger:  logger,
	})
	if err != nil {
		logger.Close()
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		tokens:   tokens,
		platform: client,
	}

	audit, err := logging.NewAuditLogger(cfg.Logging.Dir)
	if err != nil {
		logger.Warn(logging.CategoryConfig, "audit_unavailable", err.Error(), nil)
	} else {
		a.audit = audit
	}

	var sinks notify.Multi
	if cfg.Notify.Terminal {
		sinks = append(sinks, notify.NewWriter(os.Stderr))
	}
	if cfg.Notify.NATSURL != "" {
		nats, err := notify.NewNATSNotifier(notify.NATSConfig{
			URL:     cfg.Notify.NATSURL,
			Subject: cfg.Notify.Subject,
		})
		if err != nil {
			// The inbox works without the bus; log and move on.
			logger.Warn(logging.CategoryNotify, "nats_unavailable", err.Error(), nil)
		} else {
			a.natsSink = nats
			sinks = append(sinks, nats)
		}
	}
	if len(sinks) == 0 {
		a.notifier = notify.Nop{}
	} else {
		a.notifier = sinks
	}

	store, err := insights.Open(cfg.Storage.DBPath, logger)
	if err != nil {
		logger.Warn(logging.CategoryInsight, "cache_unavailable", err.Error(), nil)
	} else {
		a.insights = store
	}

	return a, nil
}

func (a *app) Close() {
	if a.insights != nil {
		a.insights.Close()
	}
	if a.audit != nil {
		a.audit.Close()
	}
	if a.natsSink != nil {
		a.natsSink.Close()
	}
	a.logger.Close()
}
