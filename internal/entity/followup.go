package entity

import "time"

// FollowUpJob é o backup de WhatsApp agendado para um lead. É o que cada
// backend de agendamento persiste (fila, tabela ou timer em memória).
type FollowUpJob struct {
	ID         string         `json:"id"`
	LeadID     string         `json:"lead_id"`
	Name       string         `json:"name"`
	Email      string         `json:"email"`
	Phone      string         `json:"phone,omitempty"`
	Interest   string         `json:"interest"`
	Source     string         `json:"source"`
	CallStatus FollowUpStatus `json:"call_status"`
	ReceivedAt time.Time      `json:"received_at"`
	DueAt      time.Time      `json:"due_at"`
}

func NewFollowUpJob(id string, lead *Lead, callStatus FollowUpStatus, delay time.Duration) FollowUpJob {
	return FollowUpJob{
		ID:         id,
		LeadID:     lead.InternalID,
		Name:       lead.Name,
		Email:      lead.Email,
		Phone:      lead.Phone,
		Interest:   lead.Interest,
		Source:     lead.Source,
		CallStatus: callStatus,
		ReceivedAt: lead.ReceivedAt,
		DueAt:      lead.ReceivedAt.Add(delay),
	}
}
