package main

import (
	"flag"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/xavierca1/eva-followup/internal/infra/database"
	"github.com/xavierca1/eva-followup/internal/infra/logger"
)

func main() {
	godotenv.Load()
	logger.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("APP_ENV"))

	flag.Parse()
	direction := flag.Arg(0)
	if direction == "" {
		direction = "up"
	}

	if err := database.RunMigrations(os.Getenv("DATABASE_URL"), direction); err != nil {
		log.Fatal().Err(err).Str("direction", direction).Msg("❌ migration falhou")
	}
	log.Info().Str("direction", direction).Msg("✅ migrations aplicadas")
}
