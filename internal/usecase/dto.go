package usecase

import (
	"time"

	"github.com/xavierca1/eva-followup/internal/entity"
)

type CaptureLeadInput struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Source      string `json:"source"`
	Interest    string `json:"interest"`
	UTMSource   string `json:"utm_source"`
	UTMCampaign string `json:"utm_campaign"`

	// Nomes usados pelo formulário antigo do CRM.
	Nome      string `json:"nome,omitempty"`
	Telefone  string `json:"telefone,omitempty"`
	Interesse string `json:"interesse,omitempty"`
	Fonte     string `json:"fonte,omitempty"`
}

func (in CaptureLeadInput) withAliases() CaptureLeadInput {
	if in.Name == "" {
		in.Name = in.Nome
	}
	if in.Phone == "" {
		in.Phone = in.Telefone
	}
	if in.Interest == "" {
		in.Interest = in.Interesse
	}
	if in.Source == "" {
		in.Source = in.Fonte
	}
	return in
}

type CaptureLeadOutput struct {
	Status          string                `json:"status"`
	Message         string                `json:"message"`
	LeadID          string                `json:"lead_id"`
	LeadEmail       string                `json:"lead_email"`
	CallID          string                `json:"retell_call_id,omitempty"`
	CallStatus      entity.FollowUpStatus `json:"retell_initiation_status,omitempty"`
	ErrorDetails    string                `json:"error_details,omitempty"`
	BackupScheduled bool                  `json:"whatsapp_backup_scheduled"`
	Duplicate       bool                  `json:"duplicate"`
	NextActions     []string              `json:"next_actions,omitempty"`
	Timestamp       time.Time             `json:"timestamp"`
}

// CallRequest carrega o que varia por lead. Agente e número de origem ficam
// na configuração do provedor.
type CallRequest struct {
	ToNumber  string
	Variables map[string]string
	Metadata  map[string]string
}
