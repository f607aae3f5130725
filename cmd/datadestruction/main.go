package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/connect-dcc/datadestruction/pkg/bq"
	"github.com/connect-dcc/datadestruction/pkg/config"
	"github.com/connect-dcc/datadestruction/pkg/requestlogger"
	"github.com/connect-dcc/datadestruction/pkg/service/core"
	"github.com/connect-dcc/datadestruction/pkg/service/core/api/gcp"
	"github.com/connect-dcc/datadestruction/pkg/service/core/api/static"
	"github.com/connect-dcc/datadestruction/pkg/service/core/handlers"
	"github.com/connect-dcc/datadestruction/pkg/service/core/routes"
	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
)

var configFilePath = flag.String("config", "config.yaml", "path to config file")

var promRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "datadestruction",
	Name:      "requests",
}, []string{"protocol", "outcome"})

const shutdownTimeout = 5 * time.Second

func main() {
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	fileParts, err := config.ProcessConfigPath(*configFilePath)
	if err != nil {
		log.Fatal().Err(err).Msg("processing config path")
	}

	cfg, err := config.NewFileSystemLoader().Load(fileParts.FileName, fileParts.Path, "DESTRUCT", config.NewDefaultEnvBinder())
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}

	if len(cfg.Protocols) == 0 {
		cfg.Protocols = static.DefaultProtocols()
	}

	err = cfg.Validate()
	if err != nil {
		log.Fatal().Err(err).Msg("validating config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("parsing log level")
	}
	log = log.Level(level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	registry, err := static.NewTargetRegistry(cfg.Protocols)
	if err != nil {
		log.Fatal().Err(err).Msg("building target registry")
	}

	bqClient := bq.NewClient(
		cfg.BigQuery.Endpoint,
		cfg.BigQuery.EnableAuth,
		cfg.BigQuery.GCPProject,
		log.With().Str("subsystem", "bq").Logger(),
	)

	services := core.NewServices(
		registry,
		gcp.NewDestructionAPI(bqClient),
		promRequests,
		log,
	)

	h := handlers.NewHandlers(services)

	router := chi.NewRouter()
	router.Use(requestlogger.Middleware(log, "/internal/metrics"))

	routes.Add(router,
		routes.NewDestructionRoutes(routes.NewDestructionEndpoints(log, h.DestructionHandler)),
		routes.NewMetricsRoutes(routes.NewMetricsEndpoints(prom())),
	)

	server := http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Address, cfg.Server.Port),
		Handler: router,
	}

	log.Info().
		Str("address", cfg.Server.Address).
		Str("port", cfg.Server.Port).
		Strs("protocols", registry.Protocols()).
		Msg("listening")

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("serving")
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown error")
	}
}

func prom(cols ...prometheus.Collector) *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(promRequests)
	r.MustRegister(prometheus.NewGoCollector())
	r.MustRegister(cols...)

	return r
}
