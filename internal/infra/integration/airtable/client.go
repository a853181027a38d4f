package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xavierca1/eva-followup/internal/entity"
	"github.com/xavierca1/eva-followup/internal/infra/http/middleware"
	"github.com/xavierca1/eva-followup/internal/usecase"
)

const (
	DefaultBaseURL = "https://api.airtable.com/v0"
	DefaultTable   = "Leads"
	providerName   = "airtable"
)

// Client usa a tabela de Leads do Airtable como CRM.
type Client struct {
	apiKey     string
	baseID     string
	table      string
	baseURL    string
	httpClient *http.Client
	location   *time.Location
}

func NewClient(apiKey, baseID, table, baseURL string) *Client {
	if table == "" {
		table = DefaultTable
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.UTC
	}
	return &Client{
		apiKey:     apiKey,
		baseID:     baseID,
		table:      table,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		location:   loc,
	}
}

func (c *Client) Save(ctx context.Context, lead *entity.Lead) (string, error) {
	fields := map[string]interface{}{
		fieldLeadID:    lead.InternalID,
		fieldName:      lead.Name,
		fieldEmail:     lead.Email,
		fieldPhone:     lead.Phone,
		fieldSource:    lead.Source,
		fieldInterest:  lead.Interest,
		fieldStatus:    string(lead.Status),
		fieldEvaCalled: false,
		fieldWhatsApp:  false,
		fieldNotes:     fmt.Sprintf("Lead criado via API em %s", c.stamp(lead.ReceivedAt)),
	}
	if lead.UTMSource != "" {
		fields[fieldUTMSource] = lead.UTMSource
	}
	if lead.UTMCampaign != "" {
		fields[fieldUTMCampaign] = lead.UTMCampaign
	}

	var created record
	if err := c.do(ctx, http.MethodPost, c.tableURL(), recordRequest{Fields: fields}, &created); err != nil {
		return "", err
	}

	log.Info().Str("lead_id", lead.InternalID).Str("record_id", created.ID).Msg("✅ Airtable: lead criado")
	return created.ID, nil
}

// UpdateStatus localiza o registro (Lead ID primeiro, depois email) e
// atualiza os campos de automação, anexando uma nota com horário.
func (c *Client) UpdateStatus(ctx context.Context, email string, status entity.FollowUpStatus, details entity.StatusDetails) error {
	rec, err := c.findRecord(ctx, details.LeadID, email)
	if err != nil {
		return err
	}

	fields := map[string]interface{}{
		fieldStatus: string(status),
	}
	switch status {
	case entity.StatusCallInitiated:
		fields[fieldEvaCalled] = true
		fields[fieldCallID] = details.CallID
	case entity.StatusMessageSent:
		fields[fieldWhatsApp] = true
		fields[fieldMessageID] = details.MessageID
	}

	at := details.At
	if at.IsZero() {
		at = time.Now()
	}
	note := fmt.Sprintf("[%s] %s", c.stamp(at), statusNote(status, details))
	if rec.Fields.Notes != "" {
		note = rec.Fields.Notes + "\n\n" + note
	}
	fields[fieldNotes] = note

	endpoint := c.tableURL() + "/" + url.PathEscape(rec.ID)
	if err := c.do(ctx, http.MethodPatch, endpoint, recordRequest{Fields: fields}, nil); err != nil {
		return err
	}

	log.Info().Str("record_id", rec.ID).Str("status", string(status)).Msg("🔄 Airtable: status atualizado")
	return nil
}

func (c *Client) FindByInternalID(ctx context.Context, id string) (*entity.Lead, error) {
	rec, err := c.findRecord(ctx, id, "")
	if err != nil {
		return nil, err
	}
	return rec.toLead(), nil
}

// List traz os registros da tabela, opcionalmente filtrados por Status.
func (c *Client) List(ctx context.Context, filter entity.LeadFilter) ([]*entity.Lead, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("filterByFormula", fmt.Sprintf("{%s}='%s'", fieldStatus, escapeFormula(string(filter.Status))))
	}
	if filter.Limit > 0 {
		q.Set("maxRecords", strconv.Itoa(filter.Limit))
	}

	endpoint := c.tableURL()
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var list listResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &list); err != nil {
		return nil, err
	}

	leads := make([]*entity.Lead, 0, len(list.Records))
	for i := range list.Records {
		leads = append(leads, list.Records[i].toLead())
	}
	return leads, nil
}

func (c *Client) findRecord(ctx context.Context, leadID, email string) (*record, error) {
	var formula string
	switch {
	case leadID != "":
		formula = fmt.Sprintf("{%s}='%s'", fieldLeadID, escapeFormula(leadID))
	case email != "":
		formula = fmt.Sprintf("{%s}='%s'", fieldEmail, escapeFormula(email))
	default:
		return nil, entity.ErrLeadNotFound
	}

	q := url.Values{}
	q.Set("filterByFormula", formula)

	var list listResponse
	if err := c.do(ctx, http.MethodGet, c.tableURL()+"?"+q.Encode(), nil, &list); err != nil {
		return nil, err
	}
	if len(list.Records) == 0 {
		key := leadID
		if key == "" {
			key = email
		}
		return nil, fmt.Errorf("airtable %s: %w", key, entity.ErrLeadNotFound)
	}

	// o mesmo email pode ter vários envios; vale o mais recente
	latest := &list.Records[0]
	for i := range list.Records[1:] {
		if list.Records[i+1].CreatedTime.After(latest.CreatedTime) {
			latest = &list.Records[i+1]
		}
	}
	return latest, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload interface{}, out interface{}) error {
	if c.apiKey == "" || c.baseID == "" {
		return &usecase.ConfigurationError{Key: "AIRTABLE_API_KEY", Message: "airtable não configurado"}
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("airtable: erro ao serializar payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("airtable: erro ao criar requisição: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		middleware.RecordIntegrationError(providerName)
		return &usecase.ProviderError{Provider: providerName, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		middleware.RecordIntegrationError(providerName)
		msg := strings.TrimSpace(string(respBody))
		var e errorResponse
		if json.Unmarshal(respBody, &e) == nil && e.Error.Message != "" {
			msg = e.Error.Message
		}
		return &usecase.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &usecase.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Message: "invalid response", Err: err}
	}
	return nil
}

func (c *Client) tableURL() string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(c.baseID), url.PathEscape(c.table))
}

func (c *Client) stamp(t time.Time) string {
	return t.In(c.location).Format("02/01/2006 15:04:05")
}

func statusNote(status entity.FollowUpStatus, d entity.StatusDetails) string {
	switch status {
	case entity.StatusCallInitiated:
		return fmt.Sprintf("Eva iniciou ligação (call_id %s)", d.CallID)
	case entity.StatusCallFailed:
		return fmt.Sprintf("Falha ao iniciar ligação da Eva: %s", d.ErrorMessage)
	case entity.StatusMessageSent:
		return fmt.Sprintf("WhatsApp de backup enviado (message_id %s)", d.MessageID)
	case entity.StatusMessageFailed:
		return fmt.Sprintf("Falha no WhatsApp de backup: %s", d.ErrorMessage)
	case entity.StatusMessageSkipped:
		return "WhatsApp de backup dispensado: ligação já iniciada"
	}
	return fmt.Sprintf("Status alterado para %s", status)
}

func escapeFormula(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
