package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/callflow/config"
	"github.com/BaSui01/callflow/internal/metrics"
	"github.com/BaSui01/callflow/internal/migration"
)

// 构建时通过 -ldflags "-X main.Version=..." 注入
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// envPrefix 环境变量前缀，例如 CALLFLOW_SERVER_HTTP_PORT
const envPrefix = "CALLFLOW"

// errUsage 参数错误，已向 stderr 打印过说明
var errUsage = errors.New("usage")

type command struct {
	summary string
	run     func(args []string) error
}

var commands = map[string]command{
	"serve":   {"Start the media stream server", runServe},
	"migrate": {"Manage call history schema migrations", runMigrate},
	"health":  {"Probe a running server", runHealthCheck},
	"version": {"Show version information", func([]string) error { printVersion(os.Stdout); return nil }},
}

var commandOrder = []string{"serve", "migrate", "health", "version"}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage(os.Stderr)
		return 2
	}
	switch args[0] {
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return 0
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage(os.Stderr)
		return 2
	}
	if err := cmd.run(args[1:]); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "callflow %s: %v\n", args[0], err)
		}
		return 1
	}
	return 0
}

// loadConfig 默认值 → YAML 文件 → CALLFLOW_ 环境变量，最后整体校验
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader().
		WithEnvPrefix(envPrefix).
		WithValidator(func(c *config.Config) error { return c.Validate() })
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	return loader.Load()
}

func configFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	path := fs.String("config", os.Getenv(envPrefix+"_CONFIG"), "path to YAML config file")
	return fs, path
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// =============================================================================
// 🖥️ serve
// =============================================================================

func runServe(args []string) error {
	fs, configPath := configFlags("serve")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting callflow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.Int("http_port", cfg.Server.HTTPPort),
	)

	ctx, stop := signalContext()
	defer stop()

	srv := NewServer(cfg, metrics.NewCollector("callflow", logger), logger)
	if err := srv.Init(ctx); err != nil {
		logger.Error("failed to initialize server", zap.Error(err))
		return err
	}
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("callflow stopped")
	return nil
}

// =============================================================================
// 🗄️ migrate [up|down|reset|steps N|goto N|force N|version|status]
// =============================================================================

func runMigrate(args []string) error {
	fs, configPath := configFlags("migrate")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	sub, rest := "up", fs.Args()
	if len(rest) > 0 {
		sub, rest = rest[0], rest[1:]
	}

	m, err := migration.Open(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open migrator: %w", err)
	}
	ctx, stop := signalContext()
	defer stop()

	runErr := migration.NewCLI(m, os.Stdout).Run(ctx, sub, rest)
	if err := m.Close(); err != nil {
		logger.Warn("failed to close migrator", zap.Error(err))
	}
	if runErr != nil {
		return fmt.Errorf("%s: %w", sub, runErr)
	}
	return nil
}

// =============================================================================
// 🏥 health
// =============================================================================

func runHealthCheck(args []string) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:5050", "server base URL")
	ready := fs.Bool("ready", false, "probe /readyz instead of /healthz")
	timeout := fs.Duration("timeout", 5*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	probe := checkHealth
	if *ready {
		probe = checkReady
	}
	if err := probe(*addr, *timeout); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

func checkHealth(addr string, timeout time.Duration) error { return probe(addr+"/healthz", timeout) }

func checkReady(addr string, timeout time.Duration) error { return probe(addr+"/readyz", timeout) }

func probe(url string, timeout time.Duration) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d", url, resp.StatusCode)
	}
	return nil
}

// =============================================================================
// 📋 version / help
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "callflow %s (commit %s, built %s)\n", Version, GitCommit, BuildTime)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, "callflow: Twilio media stream voice assistant\n\nUsage:\n  callflow <command> [flags]\n\nCommands:\n")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-9s %s\n", name, commands[name].summary)
	}
	fmt.Fprint(w, `
Flags for serve and migrate:
  --config <path>   YAML config file (default $CALLFLOW_CONFIG)

migrate subcommands (default up):
  up | down | reset | steps <n> | goto <version> | force <version> | version | status

health flags:
  --addr <url>  --ready  --timeout <duration>

Environment variables override the file, e.g.
  CALLFLOW_SERVER_HTTP_PORT=5050
  CALLFLOW_SPEECH_API_KEY=...
  CALLFLOW_LLM_API_KEY=...
`)
}
