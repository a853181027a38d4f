package usecase

import (
	"errors"
	"fmt"
	"strings"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError rejeita o lead antes de qualquer efeito colateral.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" ("+f.Message+")")
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// ConfigurationError indica credencial ou identificador ausente no servidor.
// Na etapa de ligação vira call_failed, nunca um erro HTTP.
type ConfigurationError struct {
	Key     string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error (%s): %s", e.Key, e.Message)
}

func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := e.Provider + " error"
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func IsProviderError(err error) bool {
	var target *ProviderError
	return errors.As(err, &target)
}

// InternalError só chega ao cliente como mensagem genérica; o detalhe fica no log.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *InternalError) Unwrap() error {
	return e.Err
}
