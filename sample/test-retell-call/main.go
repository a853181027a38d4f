package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/xavierca1/eva-followup/internal/infra/integration/retell"
	"github.com/xavierca1/eva-followup/internal/infra/logger"
	"github.com/xavierca1/eva-followup/internal/usecase"
)

func main() {
	phone := flag.String("phone", "", "número do lead (ex: 11988887777)")
	name := flag.String("name", "Lead Teste", "nome do lead")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("⚠️  arquivo .env não encontrado, usando variáveis de ambiente do sistema")
	}
	logger.Setup("debug", "development")

	to, err := usecase.NormalizePhone(*phone, os.Getenv("FALLBACK_PHONE_NUMBER"))
	if err != nil {
		log.Fatal().Err(err).Msg("❌ informe -phone ou FALLBACK_PHONE_NUMBER")
	}

	client := retell.NewClient(
		os.Getenv("RETELL_API_KEY"),
		os.Getenv("RETELL_AGENT_ID"),
		os.Getenv("RETELL_FROM_NUMBER"),
		os.Getenv("RETELL_BASE_URL"),
		15*time.Second,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	callID, err := client.InitiateCall(ctx, usecase.CallRequest{
		ToNumber: to,
		Variables: map[string]string{
			"lead_name":     *name,
			"lead_interest": usecase.DefaultInterest,
			"lead_source":   "sample",
		},
		Metadata: map[string]string{
			"source":    "sample",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("❌ falha ao criar ligação")
	}

	log.Info().Str("call_id", callID).Str("to", to).Msg("✅ ligação criada")
}
