package retell

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
	DefaultBaseURL = "https://api.retellai.com"
	providerName   = "retell"
)

type Client struct {
	apiKey     string
	agentID    string
	fromNumber string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey, agentID, fromNumber, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		apiKey:     apiKey,
		agentID:    agentID,
		fromNumber: fromNumber,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// InitiateCall pede à Retell que a Eva ligue para o lead e devolve o call_id.
func (c *Client) InitiateCall(ctx context.Context, input usecase.CallRequest) (string, error) {
	if err := c.checkConfig(); err != nil {
		return "", err
	}

	payload := createCallRequest{
		FromNumber:       c.fromNumber,
		ToNumber:         input.ToNumber,
		OverrideAgentID:  c.agentID,
		DynamicVariables: input.Variables,
		Metadata:         input.Metadata,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("retell: erro ao serializar payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/create-phone-call", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("retell: erro ao criar requisição: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		middleware.RecordIntegrationError(providerName)
		return "", &usecase.ProviderError{Provider: providerName, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		middleware.RecordIntegrationError(providerName)
		return "", &usecase.ProviderError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
		}
	}

	var result createCallResponse
	if err := json.Unmarshal(respBody, &result); err != nil || result.CallID == "" {
		middleware.RecordIntegrationError(providerName)
		return "", &usecase.ProviderError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    "response without call_id",
			Err:        err,
		}
	}

	log.Info().Str("call_id", result.CallID).Str("to", input.ToNumber).Msg("✅ Retell: ligação criada")
	return result.CallID, nil
}

func (c *Client) checkConfig() error {
	switch {
	case c.apiKey == "":
		return &usecase.ConfigurationError{Key: "RETELL_API_KEY", Message: "retell api key not set"}
	case c.agentID == "":
		return &usecase.ConfigurationError{Key: "RETELL_AGENT_ID", Message: "retell agent id not set"}
	case c.fromNumber == "":
		return &usecase.ConfigurationError{Key: "RETELL_FROM_NUMBER", Message: "retell caller number not set"}
	}
	return nil
}

func errorMessage(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
