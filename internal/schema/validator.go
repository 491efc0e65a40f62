// Package schema validates outbound event payloads before publication.
package schema

import (
	"errors"

	"ai-speech-diarization-service/internal/models"
)

var (
	ErrMissingEventCode  = errors.New("event code is required")
	ErrMissingCustomerID = errors.New("customer id is required")
)

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate checks the structural requirements of a keyword event.
// TODO: plug the shared JSON Schema registry here once the event contract is
// versioned downstream.
func (v *Validator) Validate(ev models.KeywordEvent) error {
	if ev.EventCode == "" {
		return ErrMissingEventCode
	}
	if ev.CustomerID == "" {
		return ErrMissingCustomerID
	}
	return nil
}
