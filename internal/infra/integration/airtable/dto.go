package airtable

import (
	"time"

	"github.com/xavierca1/eva-followup/internal/entity"
)

// Nomes das colunas da tabela Leads no Airtable.
const (
	fieldLeadID      = "Lead ID"
	fieldName        = "Nome"
	fieldEmail       = "Email"
	fieldPhone       = "Telefone"
	fieldSource      = "Fonte"
	fieldInterest    = "Interesse"
	fieldStatus      = "Status"
	fieldUTMSource   = "UTM Source"
	fieldUTMCampaign = "UTM Campaign"
	fieldEvaCalled   = "Eva Ligou"
	fieldWhatsApp    = "WhatsApp Enviado"
	fieldCallID      = "Retell Call ID"
	fieldMessageID   = "WhatsApp Message ID"
	fieldNotes       = "Notas"
)

type recordRequest struct {
	Fields map[string]interface{} `json:"fields"`
}

type record struct {
	ID          string       `json:"id"`
	CreatedTime time.Time    `json:"createdTime"`
	Fields      recordFields `json:"fields"`
}

type recordFields struct {
	LeadID      string `json:"Lead ID"`
	Name        string `json:"Nome"`
	Email       string `json:"Email"`
	Phone       string `json:"Telefone"`
	Source      string `json:"Fonte"`
	Interest    string `json:"Interesse"`
	Status      string `json:"Status"`
	UTMSource   string `json:"UTM Source"`
	UTMCampaign string `json:"UTM Campaign"`
	EvaCalled   bool   `json:"Eva Ligou"`
	WhatsApp    bool   `json:"WhatsApp Enviado"`
	CallID      string `json:"Retell Call ID"`
	MessageID   string `json:"WhatsApp Message ID"`
	Notes       string `json:"Notas"`
}

func (r *record) toLead() *entity.Lead {
	f := r.Fields
	return &entity.Lead{
		InternalID:  f.LeadID,
		Name:        f.Name,
		Email:       f.Email,
		Phone:       f.Phone,
		Source:      f.Source,
		Interest:    f.Interest,
		UTMSource:   f.UTMSource,
		UTMCampaign: f.UTMCampaign,
		Status:      entity.FollowUpStatus(f.Status),
		CallID:      f.CallID,
		MessageID:   f.MessageID,
		ReceivedAt:  r.CreatedTime,
	}
}

type listResponse struct {
	Records []record `json:"records"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
