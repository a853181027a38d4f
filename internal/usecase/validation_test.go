package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/eva-followup/internal/entity"
)

func TestValidateLeadNormalizesFields(t *testing.T) {
	lead, err := ValidateLead(CaptureLeadInput{
		Name:        "  Ana Souza ",
		Email:       " Ana@Example.COM ",
		Phone:       " (11) 98888-7777 ",
		UTMSource:   "google",
		UTMCampaign: "black-friday",
	}, fixedNow, func() string { return "lead-1" })

	require.NoError(t, err)
	assert.Equal(t, "lead-1", lead.InternalID)
	assert.Equal(t, "Ana Souza", lead.Name)
	assert.Equal(t, "ana@example.com", lead.Email)
	assert.Equal(t, "(11) 98888-7777", lead.Phone)
	assert.Equal(t, DefaultSource, lead.Source)
	assert.Equal(t, DefaultInterest, lead.Interest)
	assert.Equal(t, "google", lead.UTMSource)
	assert.Equal(t, "black-friday", lead.UTMCampaign)
	assert.Equal(t, entity.StatusNew, lead.Status)
	assert.Equal(t, fixedNow, lead.ReceivedAt)
}

func TestValidateLeadAcceptsLegacyFieldNames(t *testing.T) {
	lead, err := ValidateLead(CaptureLeadInput{
		Nome:      "Carlos",
		Email:     "carlos@x.com",
		Telefone:  "64999999999",
		Interesse: "Automação",
		Fonte:     "whatsapp",
	}, fixedNow, func() string { return "lead-2" })

	require.NoError(t, err)
	assert.Equal(t, "Carlos", lead.Name)
	assert.Equal(t, "64999999999", lead.Phone)
	assert.Equal(t, "Automação", lead.Interest)
	assert.Equal(t, "whatsapp", lead.Source)
}

func TestValidateLeadMissingRequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		input  CaptureLeadInput
		fields []string
	}{
		{"missing email", CaptureLeadInput{Name: "Bob"}, []string{"email"}},
		{"missing name", CaptureLeadInput{Email: "bob@x.com"}, []string{"name"}},
		{"blank name", CaptureLeadInput{Name: "   ", Email: "bob@x.com"}, []string{"name"}},
		{"both missing", CaptureLeadInput{}, []string{"name", "email"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lead, err := ValidateLead(tt.input, fixedNow, func() string { return "x" })
			assert.Nil(t, lead)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			verr := err.(*ValidationError)
			var got []string
			for _, f := range verr.Fields {
				got = append(got, f.Field)
				assert.Equal(t, "is required", f.Message)
			}
			assert.ElementsMatch(t, tt.fields, got)
		})
	}
}

func TestValidateLeadRejectsMalformedEmail(t *testing.T) {
	for _, email := range []string{"ana", "ana@", "ana@x", "@x.com", "ana souza@x.com", "ana@x .com", "ana@@x.com"} {
		t.Run(email, func(t *testing.T) {
			_, err := ValidateLead(CaptureLeadInput{Name: "Ana", Email: email}, fixedNow, func() string { return "x" })
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Contains(t, err.Error(), "email (is invalid)")
		})
	}
}

func TestLeadEmailTagIsRegistered(t *testing.T) {
	v := newValidator()
	require.NotPanics(t, func() { _ = v.Var("ana@x.com", "leademail") })

	assert.NoError(t, v.Var("ana@x.com", "leademail"))
	assert.Error(t, v.Var("ana @x.com", "leademail"))
	assert.Error(t, v.Var("ana@x", "leademail"))
}
