package usecase

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xavierca1/eva-followup/internal/entity"
)

const (
	DefaultSource   = "website"
	DefaultInterest = "unspecified"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var validate = newValidator()

type leadFields struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,leademail"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	// Mesmo padrão do formulário: sem espaços, um @ e um ponto no domínio.
	if err := v.RegisterValidation("leademail", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("usecase: register leademail validation: %v", err))
	}
	return v
}

// ValidateLead normaliza a entrada e devolve o Lead pronto para o follow-up.
func ValidateLead(input CaptureLeadInput, now time.Time, newID func() string) (*entity.Lead, error) {
	input = input.withAliases()

	fields := leadFields{
		Name:  strings.TrimSpace(input.Name),
		Email: strings.ToLower(strings.TrimSpace(input.Email)),
	}

	if err := validate.Struct(fields); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, &InternalError{Op: "validate lead", Err: err}
		}
		out := &ValidationError{}
		for _, fe := range verrs {
			msg := "is invalid"
			if fe.Tag() == "required" {
				msg = "is required"
			}
			out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Message: msg})
		}
		return nil, out
	}

	return &entity.Lead{
		InternalID:  newID(),
		Name:        fields.Name,
		Email:       fields.Email,
		Phone:       strings.TrimSpace(input.Phone),
		Source:      defaultString(input.Source, DefaultSource),
		Interest:    defaultString(input.Interest, DefaultInterest),
		UTMSource:   strings.TrimSpace(input.UTMSource),
		UTMCampaign: strings.TrimSpace(input.UTMCampaign),
		Status:      entity.StatusNew,
		ReceivedAt:  now,
		UpdatedAt:   now,
	}, nil
}

func defaultString(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}
