package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/agentick/dashboard/internal/httpapi/handlers"
	"github.com/agentick/dashboard/internal/httpapi/server"
	"github.com/agentick/dashboard/pkg/cache"
	"github.com/agentick/dashboard/pkg/cache/clientcache"
	"github.com/agentick/dashboard/pkg/cache/inmemory"
	rediscache "github.com/agentick/dashboard/pkg/cache/redis"
	"github.com/agentick/dashboard/pkg/config"
	"github.com/agentick/dashboard/pkg/logger"
	"github.com/agentick/dashboard/pkg/notifier"
	"github.com/agentick/dashboard/pkg/preferences"
	"github.com/agentick/dashboard/pkg/registry"
	"github.com/agentick/dashboard/pkg/repository"
	"github.com/agentick/dashboard/pkg/store"
	ddbstore "github.com/agentick/dashboard/pkg/store/dynamodb"
	"github.com/agentick/dashboard/pkg/store/feed"
	memstore "github.com/agentick/dashboard/pkg/store/memory"
	"github.com/agentick/dashboard/pkg/types"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, using system environment")
	}

	environment := os.Getenv("DASHBOARD_APP_ENVIRONMENT")
	if environment == "" {
		environment = "local"
	}

	cfg, err := config.Load("config", environment)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	logger.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	log := logger.Logger(ctx)

	gateway, backing, err := buildStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to build store backend")
	}

	clientCache := clientcache.New(backing, clientcache.WithTTL(cfg.Cache.TTL))

	repoOpts := []repository.Option{}
	if cfg.Notifier.Enabled && cfg.Notifier.URL != "" {
		repoOpts = append(repoOpts, repository.WithNotifier(notifier.New(cfg.Notifier.URL)))
	}
	repo := repository.New(gateway, clientCache, repoOpts...)

	reg := registry.New(repo)

	syncOpts := []preferences.Option{}
	if cfg.Preferences.CommitPolicy == string(preferences.CommitPessimistic) {
		syncOpts = append(syncOpts, preferences.WithCommitPolicy(preferences.CommitPessimistic))
	}
	sync := preferences.New(reg, syncOpts...)
	defer sync.Close()

	if err := reg.Load(ctx); err != nil {
		log.WithError(err).Warn("initial client load failed, continuing with empty registry")
	}
	if cfg.Seed.File != "" {
		seedClients(ctx, cfg.Seed.File, reg)
	}
	repo.EnsureDefaultClient(ctx)
	if err := reg.Load(ctx); err != nil {
		log.WithError(err).Warn("failed to reload clients after seeding")
	}

	api := server.NewAPIServer(cfg, handlers.NewHandlers(cfg, reg, sync))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Start(ctx)
	})
	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("server exited with error")
	}
}

// buildStore picks the gateway and cache backing from config. The dynamodb
// backend pairs with redis (shared cache + cross-instance change feed); the
// memory backend runs fully in-process for local development.
func buildStore(ctx context.Context, cfg *config.AppConfig) (store.Gateway, cache.Cache, error) {
	switch cfg.Store.Backend {
	case "dynamodb":
		redisCli := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisCli.Ping(ctx).Err(); err != nil {
			return nil, nil, err
		}

		ddbCli, err := ddbstore.NewClient(ctx, ddbstore.ClientConfig{
			Region:   cfg.Store.Region,
			Endpoint: cfg.Store.Endpoint,
		})
		if err != nil {
			return nil, nil, err
		}

		gw, err := ddbstore.NewGateway(ctx, cfg.Store.Table, ddbCli, feed.NewRedisFeed(redisCli))
		if err != nil {
			return nil, nil, err
		}
		return gw, rediscache.NewCacheWithClient(redisCli), nil

	default:
		backing, err := inmemory.NewCache(&inmemory.Config{})
		if err != nil {
			return nil, nil, err
		}
		return memstore.New(feed.NewLocalFeed()), backing, nil
	}
}

type seedEntry struct {
	Name        string               `yaml:"name"`
	Preferences *types.UIPreferences `yaml:"preferences"`
}

// seedClients creates clients listed in the YAML seed file. Names already
// present are skipped case-insensitively, so reruns are idempotent. Failures
// are logged and skipped, never fatal.
func seedClients(ctx context.Context, file string, reg *registry.ClientRegistry) {
	log := logger.Logger(ctx).WithField("file", file)

	data, err := os.ReadFile(file)
	if err != nil {
		log.WithError(err).Warn("failed to read seed file")
		return
	}

	var entries []seedEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		log.WithError(err).Warn("failed to parse seed file")
		return
	}

	existing := make(map[string]bool)
	for _, c := range reg.State().Clients {
		existing[strings.ToLower(c.Name)] = true
	}

	for _, entry := range entries {
		name := strings.TrimSpace(entry.Name)
		if name == "" || existing[strings.ToLower(name)] {
			continue
		}
		client, err := reg.AddClient(ctx, name)
		if err != nil {
			log.WithError(err).WithField("name", name).Warn("failed to seed client")
			continue
		}
		existing[strings.ToLower(name)] = true
		if entry.Preferences != nil {
			if err := reg.UpdateClientPreferences(ctx, client.ID, *entry.Preferences); err != nil {
				log.WithError(err).WithField("name", name).Warn("failed to apply seeded preferences")
			}
		}
	}
	log.WithField("count", len(entries)).Info("seed file processed")
}
