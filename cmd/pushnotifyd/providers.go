package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/larrykluger/push-notifications-docusign/config"
	"github.com/larrykluger/push-notifications-docusign/internal/accountservice"
	"github.com/larrykluger/push-notifications-docusign/internal/api"
	"github.com/larrykluger/push-notifications-docusign/internal/db"
	"github.com/larrykluger/push-notifications-docusign/internal/directory"
	"github.com/larrykluger/push-notifications-docusign/internal/dispatch"
	"github.com/larrykluger/push-notifications-docusign/internal/identity"
	"github.com/larrykluger/push-notifications-docusign/internal/ops"
	"github.com/larrykluger/push-notifications-docusign/internal/store"
)

func NewConfig(log *zap.Logger) (*config.Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration from %s: %w", configPath, err)
	}
	log.Info("configuration loaded", zap.String("path", configPath), zap.String("driver", cfg.Database.Driver))
	return cfg, nil
}

func NewWebpushOptions(cfg *config.Config, log *zap.Logger) (*webpush.Options, error) {
	opts := &webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}
	if opts.VAPIDPublicKey != "" && opts.VAPIDPrivateKey != "" {
		return opts, nil
	}

	if !cfg.Push.GenerateKeys {
		log.Warn("VAPID keys are not configured; the vapid_key operation will be unavailable")
		return opts, nil
	}

	private, public, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return nil, fmt.Errorf("generate vapid keys: %w", err)
	}
	opts.VAPIDPrivateKey, opts.VAPIDPublicKey = private, public
	log.Warn("using an ephemeral VAPID key pair; channels created with it break on restart",
		zap.String("public_key", public))
	return opts, nil
}

// NewStore opens the configured entity store and wraps it in the read cache.
func NewStore(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	var base store.Store
	switch cfg.Database.Driver {
	case "firestore":
		client, err := firestore.NewClient(context.Background(), cfg.Database.FirestoreProject)
		if err != nil {
			return nil, fmt.Errorf("firestore client: %w", err)
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return client.Close() }})
		base = store.NewFirestoreStore(client, cfg.Database.FirestoreCollection, log)
	default:
		gormDB, err := db.Init(&cfg.Database, log)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error {
			sqlDB, err := gormDB.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}})
		base = store.NewGormStore(gormDB, log)
	}
	log.Info("data store initialized", zap.String("driver", cfg.Database.Driver))

	switch cfg.Cache.Backend {
	case "memory":
		return store.NewCachedStore(base, store.NewMemoryCache(cfg.Cache.TTL(), 2*cfg.Cache.TTL()), cfg.Cache.TTL(), log), nil
	case "redis":
		rc, err := store.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return rc.Close() }})
		return store.NewCachedStore(base, rc, cfg.Cache.TTL(), log), nil
	}
	return base, nil
}

func NewIdentityManager(cfg *config.Config, log *zap.Logger) *identity.Manager {
	if cfg.Identity.Salt == "" {
		log.Warn("identity.salt is not set; device identifiers will be unsalted hashes",
			zap.String("env", "IDENTITY_SALT"))
	}
	return identity.NewManager(identity.Options{
		Salt:       cfg.Identity.Salt,
		IDCookie:   cfg.Identity.IDCookie,
		FlagCookie: cfg.Identity.FlagCookie,
		MaxAge:     cfg.Identity.MaxAge(),
		Domain:     cfg.Identity.Domain,
		Secure:     cfg.Identity.Secure,
	})
}

func NewDirectory(s store.Store, ids *identity.Manager, log *zap.Logger) *directory.Directory {
	return directory.New(s, ids, log)
}

func NewAccountClient(cfg *config.Config, log *zap.Logger) *accountservice.Client {
	as := cfg.AccountService
	return accountservice.NewClient(accountservice.Options{
		IntegratorKey: as.IntegratorKey,
		Version:       as.Version,
		Environment:   as.Environment,
		BaseURL:       as.BaseURL,
		HTTPProxy:     as.HTTPProxy,
		Timeout:       time.Duration(as.TimeoutSeconds) * time.Second,
	}, log)
}

func NewDispatcher(ids *identity.Manager, dir *directory.Directory, accounts *accountservice.Client, push *webpush.Options, log *zap.Logger) (*dispatch.Dispatcher, error) {
	return dispatch.New(log, ops.Handlers(ops.Deps{
		Identities:     ids,
		Directory:      dir,
		Accounts:       accounts,
		VAPIDPublicKey: push.VAPIDPublicKey,
		Log:            log,
	})...)
}

func NewHTTPServer(lc fx.Lifecycle, cfg *config.Config, d *dispatch.Dispatcher, push *webpush.Options, log *zap.Logger) *http.Server {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewHandler(d, push, log)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(cfg, handler, log),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("HTTP server starting", zap.String("addr", srv.Addr), zap.Strings("ops", d.Ops()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("HTTP server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: srv.Shutdown,
	})
	return srv
}
