package usecase

import (
	"regexp"
	"strings"
)

var nonDigit = regexp.MustCompile(`\D`)

// NormalizePhone converte o telefone para E.164 brasileiro. É heurística:
// entradas ambíguas recebem "+55" em vez de serem rejeitadas.
func NormalizePhone(raw, fallback string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if nonDigit.ReplaceAllString(candidate, "") == "" {
		candidate = strings.TrimSpace(fallback)
	}

	digits := nonDigit.ReplaceAllString(candidate, "")
	if digits == "" {
		return "", &ConfigurationError{
			Key:     "FALLBACK_PHONE_NUMBER",
			Message: "lead has no phone and no fallback number is configured",
		}
	}

	switch {
	case strings.HasPrefix(candidate, "+"):
		return "+" + digits, nil
	case (len(digits) == 12 || len(digits) == 13) && strings.HasPrefix(digits, "55"):
		return "+" + digits, nil
	default:
		return "+55" + digits, nil
	}
}
