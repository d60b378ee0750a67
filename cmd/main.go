package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
	_ "time/tzdata"

	_ "radiator_control/docs"
	"radiator_control/internal/config"
	"radiator_control/internal/handlers"
	"radiator_control/internal/logger"
	"radiator_control/internal/metrics"
	"radiator_control/internal/mqtt"
	"radiator_control/internal/repository"
	"radiator_control/internal/repository/db"
	"radiator_control/internal/server"
	"radiator_control/internal/service"
	"radiator_control/internal/state"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:generate swag init -g main.go -d ./,../internal/handlers,../internal/service,../internal/models -o ../docs

const shutdownTimeout = 10 * time.Second

// @title                       Radiator control API
// @version                     1.0
// @description                 Drives fil-pilote radiators over MQTT: states, modes, weekly planning and history.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	cfg, err := config.Load("configs", ".")
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Init(cfg.Log.Level, cfg.Log.File)

	conn, err := openDB(cfg, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	broker, err := startBroker(cfg, log)
	if err != nil {
		log.Fatalw("failed to start embedded broker", "err", err)
	}
	if broker != nil {
		defer func() { _ = broker.Close() }()
	}

	client, err := connectMQTT(cfg, log)
	if err != nil {
		// paho keeps retrying; the API serves cached states meanwhile.
		log.Warnw("mqtt_unavailable_at_startup", "err", err)
	}
	defer client.Close()

	reg := metrics.NewRegistry()
	m := metrics.NewMetrics(reg)
	metrics.WatchConnection(reg, client.IsConnected)

	repos := repository.NewRepository(conn)
	services, err := service.NewService(service.Deps{
		Repos:     repos,
		Transport: client,
		Store:     state.NewStore(),
		Metrics:   m,
		Log:       log,
		Config:    cfg,
	})
	if err != nil {
		log.Fatalw("failed to wire services", "err", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := services.Sync(ctx, cfg.Devices); err != nil {
		log.Fatalw("failed to load devices", "err", err)
	}

	go services.Scheduler.Run(ctx)
	go services.Poll(ctx, cfg.Protocol.PollEvery)

	apiHandler := handlers.NewHandler(services, log,
		handlers.WithMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	srv := server.New(cfg.HTTP)
	runHTTPServer(srv, cfg.Port, apiHandler, log)
	log.Infow("server_started", "port", cfg.Port, "topic", cfg.MQTT.Topic,
		"max_request", cfg.Protocol.MaxRequestDuration())

	waitForShutdown(cancel, srv, log)
}

// openDB initializes the SQLite database using configuration.
func openDB(cfg *config.Config, log *logger.Logger) (*sql.DB, error) {
	path := cfg.DB.Path
	if path == "" {
		log.Infow("db.path not set in config; using default file", "default", "radiators.db")
		path = "radiators.db"
	}
	return db.InitDB(path)
}

// startBroker runs the in-process broker when mqtt.embedded_broker is set.
func startBroker(cfg *config.Config, log *logger.Logger) (*mqtt.Broker, error) {
	if !cfg.MQTT.EmbeddedBroker {
		return nil, nil
	}
	addr := ":" + strconv.Itoa(cfg.MQTT.Port)
	var opts []mqtt.BrokerOption
	if cfg.MQTT.Username != "" {
		opts = append(opts, mqtt.WithCredentials(cfg.MQTT.Username, cfg.MQTT.Password))
	}
	b := mqtt.NewBroker(addr, log, opts...)
	if err := b.Start(); err != nil {
		return nil, fmt.Errorf("broker on %s: %w", addr, err)
	}
	return b, nil
}

// connectMQTT returns a client subscribed to the shared topic. The client is
// usable even when the first connect fails.
func connectMQTT(cfg *config.Config, log *logger.Logger) (*mqtt.Client, error) {
	client := mqtt.New(cfg.MQTT, mqtt.NewInbox(cfg.MQTT.Retention), log)
	connectErr := client.Connect()
	if err := client.Subscribe(cfg.MQTT.Topic); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
		return client, err
	}
	return client, connectErr
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop scheduler and poller
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
