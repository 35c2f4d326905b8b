package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/raywall/dados-api/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Configure inicializa o logger global baseando-se na configuração.
// JSON para produção, Console "bonito" para desenvolvimento local.
func Configure(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if cfg.IsDevelopment() {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(output).
		With().
		Timestamp().
		Str("service", "dados-api").
		Str("env", cfg.Env).
		Logger()

	log.Logger = logger

	return logger
}
