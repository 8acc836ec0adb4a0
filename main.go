package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nstehr/vimy/vimy-bot/condition"
	"github.com/nstehr/vimy/vimy-bot/config"
	"github.com/nstehr/vimy/vimy-bot/driver"
	"github.com/nstehr/vimy/vimy-bot/ipc"
	"github.com/nstehr/vimy/vimy-bot/roles"
)

const banner = `
██╗   ██╗██╗███╗   ███╗██╗   ██╗
██║   ██║██║████╗ ████║╚██╗ ██╔╝
██║   ██║██║██╔████╔██║ ╚████╔╝
╚██╗ ██╔╝██║██║╚██╔╝██║  ╚██╔╝
 ╚████╔╝ ██║██║ ╚═╝ ██║   ██║
  ╚═══╝  ╚═╝╚═╝     ╚═╝   ╚═╝

Utility-Driven Bot Intelligence`

var (
	configPath string
	watch      bool
)

var rootCmd = &cobra.Command{
	Use:   "vimy-bot",
	Short: "Decision core for game bots",
	Long: `vimy-bot decides what each bot in a match does next.

The game plugin connects over a unix socket, announces its bots and streams
one frame per tick; vimy-bot answers each frame with the bots' intents.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Listen for game connections",
	RunE:  serve,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the config and compile every class's rule sets",
	RunE:  check,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $"+config.EnvConfig+")")
	serveCmd.Flags().BoolVarP(&watch, "watch", "w", false, "reload the config file when it changes")
	rootCmd.AddCommand(serveCmd, checkCmd)
}

// output accepts every level; each match gates it with its own debug
// setting, the process itself logs at info.
var output = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})

func main() {
	slog.SetDefault(slog.New(driver.Leveled(output, slog.LevelInfo)))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadChecked() (*config.Config, error) {
	cfg, err := config.Load(config.Path(configPath))
	if err != nil {
		return nil, err
	}
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	return cfg, nil
}

func check(cmd *cobra.Command, _ []string) error {
	cfg, err := loadChecked()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "config ok: socket %s, %d workers, %d rule sets, classes %v\n",
		cfg.Socket, cfg.Workers, len(cfg.Rules), roles.Classes())
	fmt.Fprintf(cmd.OutOrStdout(), "facts: %s\n", strings.Join(condition.Names(), ", "))
	return nil
}

func serve(cmd *cobra.Command, _ []string) error {
	cfg, err := loadChecked()
	if err != nil {
		return err
	}
	fmt.Println(banner)
	slog.Info("starting vimy-bot", "socket", cfg.Socket, "workers", cfg.Workers)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := driver.NewHub(cfg, slog.New(output))

	if path := config.Path(configPath); watch && path != "" {
		w, err := config.NewWatcher(path, hub.Apply, slog.Default())
		if err != nil {
			return err
		}
		go w.Run(ctx)
		defer func() {
			stop()
			<-w.Done()
		}()
		slog.Info("watching config", "path", path)
	}

	// Unix sockets leave behind a file on unclean shutdown; remove it so we can rebind.
	if err := os.RemoveAll(cfg.Socket); err != nil {
		return fmt.Errorf("clean up socket %s: %w", cfg.Socket, err)
	}
	listener, err := net.Listen("unix", cfg.Socket)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Socket, err)
	}
	defer os.Remove(cfg.Socket)

	slog.Info("listening on domain socket", "path", cfg.Socket)

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			slog.Error("failed to accept connection", "error", err)
			continue
		}
		slog.Info("new connection accepted")
		go handleConn(ctx, hub, conn)
	}

	slog.Info("shutting down", "connections", hub.Len())
	return nil
}

// handleConn serves one game plugin until it says goodbye or the socket
// closes. Held controls are released on goodbye and on shutdown.
func handleConn(ctx context.Context, hub *driver.Hub, conn net.Conn) {
	c := ipc.NewConnection(conn, nil)
	pool := hub.Open(ctx, nil)
	defer hub.Close(pool)
	pool.Register(c)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			if out := pool.Shutdown(); len(out.Batches) > 0 {
				if err := c.Send(ipc.TypeIntents, out); err != nil {
					pool.Log().Warn("failed to send releases", "error", err)
				}
			}
			c.Close()
		case <-done:
		}
	}()
	c.ReadLoop()

	if out := pool.Shutdown(); len(out.Batches) > 0 {
		pool.Log().Warn("connection closed with controls held", "bots", len(out.Batches))
	}
}
