package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xavierca1/eva-followup/internal/infra/http/middleware"
	"github.com/xavierca1/eva-followup/internal/usecase"
)

const (
	DefaultBaseURL = "https://graph.facebook.com/v18.0"
	providerName   = "whatsapp"
)

type Client struct {
	accessToken string
	phoneID     string
	baseURL     string
	httpClient  *http.Client
}

func NewClient(accessToken, phoneID, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		accessToken: accessToken,
		phoneID:     phoneID,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

// SendMessage manda uma mensagem de texto livre e devolve o id da mensagem.
func (c *Client) SendMessage(ctx context.Context, to, text string) (string, error) {
	if c.accessToken == "" {
		return "", &usecase.ConfigurationError{Key: "WHATSAPP_ACCESS_TOKEN", Message: "whatsapp não configurado"}
	}
	if c.phoneID == "" {
		return "", &usecase.ConfigurationError{Key: "WHATSAPP_PHONE_ID", Message: "whatsapp não configurado"}
	}

	recipient := strings.TrimPrefix(to, "+")
	payload := textMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               recipient,
		Type:             "text",
		Text:             textBody{Body: text},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("whatsapp: erro ao serializar payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("whatsapp: erro ao criar requisição: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.accessToken))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		middleware.RecordIntegrationError(providerName)
		return "", &usecase.ProviderError{Provider: providerName, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	var result SendMessageResponse
	parseErr := json.Unmarshal(respBody, &result)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		middleware.RecordIntegrationError(providerName)
		msg := strings.TrimSpace(string(respBody))
		if parseErr == nil && result.Error != nil {
			msg = result.Error.Message
		}
		return "", &usecase.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Message: msg}
	}

	if parseErr != nil {
		middleware.RecordIntegrationError(providerName)
		return "", &usecase.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Message: "invalid response", Err: parseErr}
	}
	if result.Error != nil {
		middleware.RecordIntegrationError(providerName)
		return "", &usecase.ProviderError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s (code %d)", result.Error.Message, result.Error.Code),
		}
	}
	if len(result.Messages) == 0 || result.Messages[0].ID == "" {
		middleware.RecordIntegrationError(providerName)
		return "", &usecase.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Message: "response without message id"}
	}

	log.Info().Str("to", recipient).Str("message_id", result.Messages[0].ID).Msg("✅ WhatsApp: mensagem enviada")
	return result.Messages[0].ID, nil
}
