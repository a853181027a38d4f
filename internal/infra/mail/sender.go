package mail

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/xavierca1/eva-followup/internal/entity"
)

var newLeadTemplate = template.Must(template.New("new_lead").Parse(`Novo lead capturado pela Eva

Nome: {{.Name}}
Email: {{.Email}}
Telefone: {{if .Phone}}{{.Phone}}{{else}}(não informado){{end}}
Fonte: {{.Source}}
Interesse: {{.Interest}}
{{- if .UTMSource}}
UTM Source: {{.UTMSource}}{{end}}
{{- if .UTMCampaign}}
UTM Campaign: {{.UTMCampaign}}{{end}}

Lead ID: {{.LeadID}}
Recebido em: {{.ReceivedAt}}
`))

func NewEmailSender(host string, port int, user, password, from, to string) *EmailSender {
	return &EmailSender{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
		To:       to,
		dialer:   gomail.NewDialer(host, port, user, password),
	}
}

// NotifyNewLead avisa o time comercial que um lead entrou no funil.
func (s *EmailSender) NotifyNewLead(lead *entity.Lead) error {
	m, err := s.newLeadMessage(lead)
	if err != nil {
		return err
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("erro ao enviar email SMTP: %w", err)
	}
	return nil
}

func (s *EmailSender) newLeadMessage(lead *entity.Lead) (*gomail.Message, error) {
	data := NewLeadEmailData{
		Name:        lead.Name,
		Email:       lead.Email,
		Phone:       lead.Phone,
		Source:      lead.Source,
		Interest:    lead.Interest,
		UTMSource:   lead.UTMSource,
		UTMCampaign: lead.UTMCampaign,
		LeadID:      lead.InternalID,
		ReceivedAt:  lead.ReceivedAt.UTC().Format(time.RFC3339),
	}

	var body bytes.Buffer
	if err := newLeadTemplate.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("erro ao processar template: %w", err)
	}

	from := s.From
	if from == "" {
		from = "nao-responda@fluxomatika.com"
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", s.To)
	m.SetHeader("Reply-To", lead.Email)
	m.SetHeader("Subject", fmt.Sprintf("🎯 Novo lead: %s (%s)", lead.Name, lead.Source))
	m.SetBody("text/plain", body.String())
	return m, nil
}
