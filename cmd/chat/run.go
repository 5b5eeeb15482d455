package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/net/publicsuffix"

	"github.com/zhouzirui/cardchat/internal/api"
	"github.com/zhouzirui/cardchat/internal/client"
	"github.com/zhouzirui/cardchat/internal/config"
	"github.com/zhouzirui/cardchat/internal/identity"
)

func run(ctx context.Context, cfg config.ClientConfig, personaFlag string, in io.Reader, out io.Writer) error {
	logger, err := config.NewLogger(os.Stderr, cfg.LogLevel, true)
	if err != nil {
		return errors.Wrap(err, "log level")
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return errors.Wrap(err, "cookie jar")
	}
	httpClient := &http.Client{Jar: jar, Timeout: cfg.RequestTimeout}
	apiClient := api.NewClient(cfg.ServerURL, cfg.APIPrefix, httpClient, logger)

	kv, closeKV, err := openKV(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeKV()

	base, err := url.Parse(apiClient.BaseURL())
	if err != nil {
		return errors.Wrap(err, "server url")
	}
	store := identity.NewStore(kv, identity.NewJarCookie(jar, base), logger)

	p := newPrinter(out)
	mgr := client.NewManager(client.Options{
		Endpoint:       apiClient.WebsocketURL(),
		Protocol:       client.Protocol(cfg.Protocol),
		Identity:       store,
		Backend:        apiClient,
		Dialer:         client.NewWebsocketDialer(jar, cfg.RequestTimeout),
		Listener:       p,
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
	})

	s := &session{
		mgr:     mgr,
		store:   store,
		api:     apiClient,
		printer: p,
		persona: personaFlag,
	}
	if err := s.ensure(ctx); err != nil {
		return err
	}
	if err := mgr.Connect(ctx); err != nil {
		if errors.Is(err, client.ErrConfiguration) {
			return err
		}
		p.line("연결하지 못했습니다. /reconnect 로 다시 시도하세요.")
	}
	p.help()

	return s.repl(ctx, in)
}

type kvCloser func() error

func openKV(ctx context.Context, cfg config.ClientConfig) (identity.KV, func(), error) {
	switch cfg.Store {
	case config.StoreSQLite:
		kv, err := identity.OpenSQLiteKV(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return kv, closer(kv.Close), nil
	case config.StoreRedis:
		kv, err := identity.NewRedisKV(ctx, identity.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return kv, closer(kv.Close), nil
	default:
		return identity.NewMemoryKV(), func() {}, nil
	}
}

func closer(fn kvCloser) func() {
	return func() {
		if err := fn(); err != nil {
			fmt.Fprintln(os.Stderr, "warning: closing session store:", err)
		}
	}
}
