package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configura o logger global. Em development o log sai colorido no
// console; nos demais ambientes sai em JSON.
func Setup(level, env string) zerolog.Logger {
	return setup(os.Stdout, level, env)
}

func setup(out io.Writer, level, env string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	w := out
	if env == "" || env == "development" {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	log.Logger = zerolog.New(w).With().
		Timestamp().
		Str("service", "eva-followup").
		Logger()
	return log.Logger
}
