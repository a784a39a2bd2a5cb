// Command lspd is the thin daemon entrypoint: it wires together the
// workspace router (C6), LSP registry (C7), LSP pool (C8), request
// dispatcher (C9), and watchdog/process monitor (C10) behind a
// handful of start/stop/status flags. Full CLI UX — project
// configuration, indexing control, search — is out of scope (spec
// §1); this binary only boots and supervises the daemon described by
// spec §2's data-flow diagram.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	lspdconfig "github.com/lspdaemon/lspd/internal/config"
	"github.com/lspdaemon/lspd/internal/debug"
	"github.com/lspdaemon/lspd/internal/dispatcher"
	"github.com/lspdaemon/lspd/internal/lspregistry"
	"github.com/lspdaemon/lspd/internal/lsppool"
	"github.com/lspdaemon/lspd/internal/watchdog"
	"github.com/lspdaemon/lspd/internal/workspace"
)

func main() {
	app := &cli.App{
		Name:  "lspd",
		Usage: "workspace-routed LSP cache mediator daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "socket", Usage: "path to the client wire-protocol socket (default: <user cache dir>/lsp-daemon/daemon.sock)"},
			&cli.StringFlag{Name: "cache-dir", Usage: "base directory for per-workspace caches (default: <user cache dir>/lsp-daemon/workspaces)"},
			&cli.StringFlag{Name: "config", Usage: "path to the user LSP registry override file (default: <user config dir>/lsp-daemon/config.toml)"},
		},
		Commands: []*cli.Command{
			startCommand,
			stopCommand,
			statusCommand,
			pingCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "lspd:", err)
		os.Exit(1)
	}
}

func defaultSocketPath() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "lsp-daemon", "daemon.sock"), nil
}

func defaultCacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "lsp-daemon", "workspaces"), nil
}

func socketPathFrom(c *cli.Context) (string, error) {
	if s := c.String("socket"); s != "" {
		return s, nil
	}
	return defaultSocketPath()
}

func cacheDirFrom(c *cli.Context) (string, error) {
	if d := c.String("cache-dir"); d != "" {
		return d, nil
	}
	return defaultCacheDir()
}

func configPathFrom(c *cli.Context) (string, error) {
	if p := c.String("config"); p != "" {
		return p, nil
	}
	return lspdconfig.Path()
}

var startCommand = &cli.Command{
	Name:  "start",
	Usage: "run the daemon in the foreground until interrupted",
	Action: func(c *cli.Context) error {
		socketPath, err := socketPathFrom(c)
		if err != nil {
			return err
		}
		cacheDir, err := cacheDirFrom(c)
		if err != nil {
			return err
		}
		configPath, err := configPathFrom(c)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
			return fmt.Errorf("create socket directory: %w", err)
		}
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}

		registry, err := lspregistry.New("")
		if err != nil {
			return fmt.Errorf("build lsp registry: %w", err)
		}

		watcher, err := lspdconfig.NewWatcher(configPath, registry, func(err error) {
			if err != nil {
				debug.LogConfig("config load from %s failed: %v", configPath, err)
			}
		})
		if err != nil {
			return fmt.Errorf("build config watcher: %w", err)
		}
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("start config watcher: %w", err)
		}
		defer watcher.Stop()

		workspaces := workspace.New(cacheDir)
		defer workspaces.Close()

		pool := lsppool.New(registry)
		defer pool.ShutdownAll(5 * time.Second)

		d := dispatcher.New(registry, workspaces, pool, socketPath)

		wd := watchdog.New(d, watchdog.DefaultTickInterval, watchdog.DefaultTimeout, func() {
			debug.LogWatchdog("dispatcher heartbeat stale, requesting shutdown")
			_ = d.Close()
		})
		wd.Start()
		defer wd.Stop()

		supervisor := watchdog.NewProcessSupervisor(nil, watchdog.DefaultPolicy(), watchdog.DefaultPollInterval, func(pid int, stats watchdog.Stats) {
			debug.LogWatchdog("child pid %d exceeded resource policy: cpu=%.1f%% mem=%.1fMB", pid, stats.CPUPercent, stats.MemoryMB)
		})
		supervisor.Start()
		defer supervisor.Stop()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			sig := <-sigCh
			fmt.Fprintf(os.Stderr, "lspd: received %v, shutting down\n", sig)
			cancel()
			_ = d.Close()
		}()

		fmt.Printf("lspd listening on %s (cache dir %s)\n", socketPath, cacheDir)
		if err := d.Serve(ctx); err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		fmt.Println("lspd shut down cleanly")
		return nil
	},
}

var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "query the running daemon's status",
	Action: func(c *cli.Context) error {
		env, err := sendRequest(c, dispatcher.TypeStatus, dispatcher.StatusRequest{})
		if err != nil {
			return err
		}
		return printEnvelope(env)
	},
}

var pingCommand = &cli.Command{
	Name:  "ping",
	Usage: "check that the daemon is reachable",
	Action: func(c *cli.Context) error {
		env, err := sendRequest(c, dispatcher.TypePing, dispatcher.PingRequest{})
		if err != nil {
			return err
		}
		return printEnvelope(env)
	},
}

var stopCommand = &cli.Command{
	Name:  "stop",
	Usage: "ask the running daemon to shut down",
	Action: func(c *cli.Context) error {
		env, err := sendRequest(c, dispatcher.TypeShutdown, dispatcher.ShutdownRequest{})
		if err != nil {
			return err
		}
		return printEnvelope(env)
	},
}

func printEnvelope(env dispatcher.Envelope) error {
	if env.Error != "" {
		return fmt.Errorf("%s", env.Error)
	}
	var pretty interface{}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &pretty); err == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Println(string(out))
			return nil
		}
	}
	fmt.Printf("%s: ok\n", env.Type)
	return nil
}
