package entity

import (
	"context"
	"errors"
	"time"
)

// FollowUpStatus guarda o resultado mais recente do contato com o lead.
type FollowUpStatus string

const (
	StatusNew            FollowUpStatus = "new"
	StatusCallInitiated  FollowUpStatus = "call_initiated"
	StatusCallFailed     FollowUpStatus = "call_failed"
	StatusMessageSent    FollowUpStatus = "message_sent"
	StatusMessageFailed  FollowUpStatus = "message_failed"
	StatusMessageSkipped FollowUpStatus = "message_skipped"
)

func (s FollowUpStatus) Valid() bool {
	switch s {
	case StatusNew, StatusCallInitiated, StatusCallFailed,
		StatusMessageSent, StatusMessageFailed, StatusMessageSkipped:
		return true
	}
	return false
}

var ErrLeadNotFound = errors.New("lead not found")

type Lead struct {
	InternalID  string         `json:"internal_id"`
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	Phone       string         `json:"phone,omitempty"`
	Source      string         `json:"source"`
	Interest    string         `json:"interest"`
	UTMSource   string         `json:"utm_source,omitempty"`
	UTMCampaign string         `json:"utm_campaign,omitempty"`
	Status      FollowUpStatus `json:"status"`
	CallID      string         `json:"call_id,omitempty"`
	MessageID   string         `json:"message_id,omitempty"`
	LastError   string         `json:"last_error,omitempty"`
	ReceivedAt  time.Time      `json:"received_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// StatusDetails acompanha uma atualização de status. LeadID, quando presente,
// tem prioridade sobre o email para localizar o registro.
type StatusDetails struct {
	LeadID       string    `json:"lead_id,omitempty"`
	CallID       string    `json:"call_id,omitempty"`
	MessageID    string    `json:"message_id,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	At           time.Time `json:"at"`
}

type LeadRepositoryInterface interface {
	Save(ctx context.Context, lead *Lead) (string, error)
	UpdateStatus(ctx context.Context, email string, status FollowUpStatus, details StatusDetails) error
}

// LeadFilter restringe a listagem; Status vazio traz todos.
type LeadFilter struct {
	Status FollowUpStatus
	Limit  int
}

type LeadFinder interface {
	FindByInternalID(ctx context.Context, id string) (*Lead, error)
	List(ctx context.Context, filter LeadFilter) ([]*Lead, error)
}
