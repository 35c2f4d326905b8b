package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/raywall/dados-api/pkg/cache"
	"github.com/raywall/dados-api/pkg/config"
	"github.com/raywall/dados-api/pkg/dados"
	"github.com/raywall/dados-api/pkg/graphql"
	"github.com/raywall/dados-api/pkg/health"
	"github.com/raywall/dados-api/pkg/logger"
	"github.com/raywall/dados-api/pkg/metrics"
	"github.com/raywall/dados-api/pkg/secrets"
	"github.com/raywall/dados-api/pkg/storage"
	"github.com/raywall/dados-api/pkg/transport"
	"github.com/rs/zerolog/log"
)

const version = "2.0.0"

// Variáveis injetáveis para mocking
var (
	serverStarter = func(srv *transport.Server) error { return srv.Start() }
	lambdaStarter = lambda.Start
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE_PATH"))
	if err != nil {
		stdlog.Fatalf("FATAL: configuração inválida: %v", err)
	}

	logger.Configure(cfg)

	if err := run(context.Background(), cfg); err != nil {
		// Crash-and-restart: erro inesperado derruba o processo e o
		// orquestrador sobe outro
		log.Fatal().Err(err).Msg("Falha fatal no serviço")
	}
}

// run contém a lógica principal testável: inicializa as dependências na
// ordem segredos → banco → cache e seleciona a estratégia de runtime.
func run(ctx context.Context, cfg *config.Config) error {
	log.Info().
		Str("environment", cfg.Env).
		Int("port", cfg.Port).
		Str("runtime", cfg.Runtime).
		Msg("Iniciando dados-api...")

	provider, err := metrics.Setup(cfg.Datadog)
	if err != nil {
		return err
	}

	secretsProvider, err := secrets.NewProvider(ctx, cfg)
	if err != nil {
		return err
	}

	bundle, err := secretsProvider.Get(ctx)
	if err != nil {
		return err
	}

	store := storage.New(storage.Config{
		Host:     bundle.Database.Host,
		Port:     bundle.Database.Port,
		Database: bundle.Database.Database,
		User:     bundle.Database.Username,
		Password: bundle.Database.Password,
		SSL:      cfg.Database.SSL,
		PoolMin:  cfg.Database.PoolMin,
		PoolMax:  cfg.Database.PoolMax,
	})
	if err := store.Connect(ctx); err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	cacheClient := cache.New(cfg.Redis, bundle.Redis, cfg.Features.Cache)
	cacheClient.Connect(ctx)
	defer cacheClient.Close()

	hostname, _ := os.Hostname()

	repo := dados.NewPostgresRepository(store)
	svc := dados.NewService(repo, cacheClient, provider, hostname)
	dadosHandler := dados.NewHandler(svc, cfg.IsDevelopment())
	healthHandler := health.NewHandler(store, cacheClient, version, cfg.Env)

	var gqlHandler http.Handler
	if cfg.Features.GraphQL {
		gql, err := graphql.NewHandler(svc)
		if err != nil {
			return err
		}
		gqlHandler = gql
		log.Info().Msg("Registrando GraphQL em /api/v1/graphql")
	}

	router := transport.NewRouter(transport.RouterDeps{
		Dados:        dadosHandler,
		Health:       healthHandler,
		GraphQL:      gqlHandler,
		Metrics:      provider,
		IsProduction: cfg.IsProduction(),
	})

	listenerCtx, stopListener := context.WithCancel(ctx)
	defer stopListener()

	if cfg.AWS.RotationQueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(listenerCtx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return err
		}
		listener := transport.NewRotationListener(
			sqs.NewFromConfig(awsCfg), cfg.AWS.RotationQueueURL, secretsProvider)
		go listener.Start(listenerCtx)
	}

	if cfg.Runtime == "lambda" {
		lambdaStarter(transport.NewLambdaHandler(router).Handle)
		return nil
	}

	return serveHTTP(cfg.Port, router)
}

// serveHTTP sobe o servidor e trata SIGTERM/SIGINT com shutdown gracioso.
func serveHTTP(port int, handler http.Handler) error {
	srv := transport.NewServer(port, handler)

	errCh := make(chan error, 1)
	go func() {
		errCh <- serverStarter(srv)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-errCh:
		return err

	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Encerramento gracioso iniciado")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}

		log.Info().Msg("Encerramento gracioso completo")
		return <-errCh
	}
}
