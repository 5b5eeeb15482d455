package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/cardchat/internal/config"
)

type flags struct {
	server     string
	persona    string
	protocol   string
	store      string
	sqlitePath string
	redisAddr  string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "cardchat",
		Short:         "Terminal client for the card recommendation chat",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadClient()
			if err != nil {
				return err
			}
			applyFlags(cmd, f, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, f.persona, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.server, "server", "", "backend base URL (CHAT_SERVER_URL)")
	fl.StringVar(&f.persona, "persona", "", "persona id used when a new session is created")
	fl.StringVar(&f.protocol, "protocol", "", "wire protocol: structured or stream (CHAT_PROTOCOL)")
	fl.StringVar(&f.store, "store", "", "session store: memory, sqlite or redis (CHAT_STORE)")
	fl.StringVar(&f.sqlitePath, "sqlite-path", "", "sqlite file for the session store (CHAT_SQLITE_PATH)")
	fl.StringVar(&f.redisAddr, "redis-addr", "", "redis address for the session store (REDIS_ADDR)")
	fl.StringVar(&f.logLevel, "log-level", "", "log level (CHAT_LOG_LEVEL)")
	return cmd
}

func applyFlags(cmd *cobra.Command, f flags, cfg *config.ClientConfig) {
	changed := cmd.Flags().Changed
	if changed("server") {
		cfg.ServerURL = f.server
	}
	if changed("protocol") {
		cfg.Protocol = f.protocol
	}
	if changed("store") {
		cfg.Store = f.store
	}
	if changed("sqlite-path") {
		cfg.SQLitePath = f.sqlitePath
	}
	if changed("redis-addr") {
		cfg.Redis.Addr = f.redisAddr
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: .env not loaded: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
