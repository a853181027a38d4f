package mail

import "gopkg.in/gomail.v2"

type NewLeadEmailData struct {
	Name        string
	Email       string
	Phone       string
	Source      string
	Interest    string
	UTMSource   string
	UTMCampaign string
	LeadID      string
	ReceivedAt  string
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       string

	dialer dialer
}
