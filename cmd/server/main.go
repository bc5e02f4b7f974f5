package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/cli/v2"
	"github.com/volcengine/veadk-go/apps"
	"github.com/volcengine/veadk-go/apps/a2a_app"
	"google.golang.org/adk/agent"

	"github.com/zhengjr9/gemini-relay/internal/a2a"
	"github.com/zhengjr9/gemini-relay/internal/config"
	"github.com/zhengjr9/gemini-relay/internal/gemini"
	"github.com/zhengjr9/gemini-relay/internal/metrics"
	"github.com/zhengjr9/gemini-relay/internal/proxy"
	"github.com/zhengjr9/gemini-relay/internal/relay"
)

func main() {
	app := &cli.App{
		Name:           "gemini-relay",
		Usage:          "Answer questions over HTTP with the Gemini API",
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:            "serve",
				Aliases:         []string{"s"},
				Usage:           "Serve POST /ask (flags: see serve -h)",
				SkipFlagParsing: true,
				Action:          serve,
			},
			{
				Name:            "ask",
				Aliases:         []string{"a"},
				Usage:           "Ask one question and print the answer",
				ArgsUsage:       "[flags] <question...>",
				SkipFlagParsing: true,
				Action:          ask,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("gemini-relay failed", "error", err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	cfg, err := setup(c.Context, c.Args().Slice())
	if err != nil {
		return err
	}

	slog.Info("starting gemini-relay",
		"listen", cfg.ListenAddr,
		"endpoint", cfg.Endpoint().URL(),
		"transport", cfg.Transport,
		"allowed_origins", cfg.AllowedOrigins,
		"a2a_enabled", cfg.A2AEnabled,
	)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewManager(metrics.WithRuntimeCollectors(true))
	rl, err := newRelay(ctx, cfg, m)
	if err != nil {
		return err
	}

	srv := proxy.New(cfg, rl, m)
	proxyErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			proxyErr <- err
		}
	}()

	// Optionally start the A2A server.
	a2aErr := make(chan error, 1)
	if cfg.A2AEnabled {
		relayAgent, err := a2a.New(a2a.AgentConfig{
			Name:        cfg.AgentName,
			Description: cfg.AgentDesc,
			Relay:       rl,
		})
		if err != nil {
			return fmt.Errorf("create A2A agent: %w", err)
		}

		slog.Info("starting A2A server", "port", cfg.A2APort, "agent_name", cfg.AgentName)

		inner := a2a_app.NewAgentkitA2AServerApp(
			apps.DefaultApiConfig().SetPort(cfg.A2APort),
		)
		wrapped := &loggingApp{BasicApp: inner}

		go func() {
			if err := wrapped.Run(ctx, &apps.RunConfig{
				AgentLoader: agent.NewSingleLoader(relayAgent),
			}); err != nil {
				a2aErr <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			slog.Error("proxy shutdown error", "error", err)
		}
	case err := <-proxyErr:
		return fmt.Errorf("proxy server: %w", err)
	case err := <-a2aErr:
		return fmt.Errorf("A2A server: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func ask(c *cli.Context) error {
	cfg, err := setup(c.Context, c.Args().Slice())
	if err != nil {
		return err
	}
	question := strings.Join(cfg.Args, " ")
	if question == "" {
		return cli.Exit("usage: gemini-relay ask [flags] <question...>", 2)
	}

	rl, err := newRelay(c.Context, cfg, nil)
	if err != nil {
		return err
	}
	answer, err := rl.Ask(c.Context, question)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, answer)
	return err
}

// setup parses configuration, installs the default logger and resolves the
// API key. A missing key is fatal.
func setup(ctx context.Context, args []string) (*config.Config, error) {
	cfg, err := config.Load(args)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	sources, err := cfg.KeySources(ctx)
	if err != nil {
		return nil, err
	}
	if err := cfg.ResolveAPIKey(ctx, sources...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRelay(ctx context.Context, cfg *config.Config, m *metrics.Manager) (*relay.Relay, error) {
	var sender relay.Sender
	switch cfg.Transport {
	case config.TransportSDK:
		sdk, err := gemini.NewSDKClient(ctx, cfg.Endpoint(), cfg.APIKey, cfg.RequestTimeout, cfg.ProxyURL)
		if err != nil {
			return nil, err
		}
		sender = sdk
	default:
		client, err := gemini.NewClient(cfg.Endpoint(), cfg.APIKey, cfg.RequestTimeout, cfg.ProxyURL)
		if err != nil {
			return nil, err
		}
		sender = client
	}

	opts := []relay.Option{relay.WithPartPolicy(cfg.PartPolicy)}
	if m != nil {
		opts = append(opts, relay.WithRecorder(m))
	}
	return relay.New(sender, opts...), nil
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}

// loggingApp wraps a BasicApp and installs request logging on the Gorilla mux
// router the A2A framework serves from.
type loggingApp struct {
	apps.BasicApp
}

// Run passes w to apps.Run so its SetupRouters override is the one invoked.
func (w *loggingApp) Run(ctx context.Context, config *apps.RunConfig) error {
	return apps.Run(ctx, config, w)
}

func (w *loggingApp) SetupRouters(router *mux.Router, config *apps.RunConfig) error {
	if err := w.BasicApp.SetupRouters(router, config); err != nil {
		return err
	}
	router.Use(a2aLoggingMiddleware)
	return nil
}

func a2aLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Info("a2a request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).String(),
		)
	})
}
