package main

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dataprofileservice/config"
	"dataprofileservice/controllers"
	"dataprofileservice/pkg/logger"
	"dataprofileservice/repository"
	"dataprofileservice/services"
	"dataprofileservice/services/cache"
	"dataprofileservice/services/clients"
	"dataprofileservice/services/messaging"
	"dataprofileservice/utils"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the event consumers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the data profile tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := bootstrap(cmd.Context()); err != nil {
			return err
		}
		defer config.CloseDB()
		if err := config.Migrate(config.DB); err != nil {
			return err
		}
		logger.Infof("Migration complete")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), Version)
	},
}

// bootstrap loads config, initializes the logger and connects the database.
func bootstrap(ctx context.Context) error {
	if err := config.LoadConfig(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	utils.InitLoggerWithConfig(
		config.Cfg.LogFile,
		config.Cfg.LogLevel,
		config.Cfg.LogMaxSize,
		config.Cfg.LogMaxBackups,
		config.Cfg.LogMaxAge,
		config.Cfg.LogCompress,
	)
	if err := config.ConnectDB(ctx); err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	return nil
}

func serve(ctx context.Context) error {
	if err := bootstrap(ctx); err != nil {
		return err
	}
	defer logger.Sync()
	defer config.CloseDB()

	cfg := config.Cfg
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.DBDriver == config.DriverMemory {
		if err := config.Migrate(config.DB); err != nil {
			return err
		}
	}

	events, err := logger.NewFileEventLogger(cfg.EventLogFile, logger.RotationConfig{
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
		Compress:   cfg.LogCompress,
	})
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer events.Close()

	realmKey, err := loadRealmKey(ctx, cfg)
	if err != nil {
		return err
	}

	tokens := clients.NewServiceAccountTokenSource(ctx, clients.ServiceAccountConfig{
		ServerURL:    cfg.KeycloakServerURL,
		Realm:        cfg.KeycloakRealm,
		ClientID:     cfg.KeycloakClientID,
		ClientSecret: cfg.KeycloakClientSecret,
		Username:     cfg.KeycloakServiceUsername,
		Password:     cfg.KeycloakServicePassword,
	})
	connections := clients.NewConnectionClient(cfg.ConnectionServiceURL, cfg.UpstreamTimeout, tokens)
	pipelines := clients.NewPipelineClient(cfg.PipelineServiceURL, cfg.UpstreamTimeout, tokens)

	resultCache := cache.NewResultCache(cfg.CacheMaxSize, cfg.CacheTTL)

	broker := messaging.NewBroker(messaging.Config{
		URL:            cfg.RabbitMQURL,
		Prefetch:       cfg.RabbitMQPrefetch,
		ReconnectDelay: cfg.RabbitMQReconnectDelay,
	})
	defer broker.Close()
	publisher := messaging.NewCatalogEventPublisher(broker, cfg.CatalogEventsExchange, cfg.CatalogUpdateRouteKey)

	db := config.DB
	txCfg := repository.TxConfig{Serializable: cfg.SupportsSerializable(), AcquireTimeout: cfg.DBAcquireTimeout}
	controllers.SetDataProfileService(services.NewDataProfileService(db, txCfg, connections, pipelines, publisher, resultCache))

	handlers := services.NewEventHandlerService(db, txCfg, resultCache, events, cfg.CatalogUpdateQueue, cfg.ProfileUpdateQueue)
	broker.Consume(cfg.CatalogUpdateQueue, handlers.HandleCatalogUpdate)
	broker.Consume(cfg.ProfileUpdateQueue, handlers.HandleProfileUpdate)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           newRouter(realmKey),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Starting server at port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return broker.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Infof("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("Service stopped with error: %v", err)
		return err
	}
	logger.Infof("Application shutdown complete")
	return nil
}

// loadRealmKey parses KEYCLOAK_REALM_PUBLIC_KEY, or fetches the key from the realm when unset.
func loadRealmKey(ctx context.Context, cfg config.AppConfig) (*rsa.PublicKey, error) {
	raw := cfg.KeycloakRealmPublicKey
	if raw == "" {
		fetched, err := clients.FetchRealmPublicKey(ctx, cfg.KeycloakServerURL, cfg.KeycloakRealm, cfg.UpstreamTimeout)
		if err != nil {
			return nil, fmt.Errorf("fetch realm public key: %w", err)
		}
		logger.Infof("Loaded public key of realm %s from %s", cfg.KeycloakRealm, cfg.KeycloakServerURL)
		raw = fetched
	}
	return utils.ParseRealmPublicKey(raw)
}
