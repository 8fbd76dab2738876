package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "prelaunch/pkg/domain-errors"
)

// Draft is the form content as typed by the visitor. It is rebuilt on every
// field update and only becomes a Registration once Validate passes.
type Draft struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Phone                string `json:"phone"`
	WantsNotifications   bool   `json:"wants_notifications"`
	AcceptsPrivacyPolicy bool   `json:"accepts_privacy_policy"`
}

// Normalize trims the text fields.
func (d *Draft) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.TrimSpace(d.Email)
	d.Phone = strings.TrimSpace(d.Phone)
}

// Registration is a validated pre-launch signup.
//
// Invariants:
//   - every field of the originating Draft passed Validate
//   - AcceptsPrivacyPolicy is always true
//   - Email is unique across the store (enforced by the store, not here)
type Registration struct {
	ID                   uuid.UUID `json:"id"`
	Name                 string    `json:"name"`
	Email                string    `json:"email"`
	Phone                string    `json:"phone"`
	WantsNotifications   bool      `json:"wants_notifications"`
	AcceptsPrivacyPolicy bool      `json:"accepts_privacy_policy"`
	CreatedAt            time.Time `json:"created_at"`
}

// NewRegistration validates the draft and builds the record to persist.
// The email is stored lowercased.
// Validation failures come back as CodeValidation wrapping FieldErrors.
func NewRegistration(id uuid.UUID, draft Draft, now time.Time) (*Registration, error) {
	draft.Normalize()
	if errs := Validate(draft); errs != nil {
		return nil, dErrors.Wrap(errs, dErrors.CodeValidation, "invalid registration")
	}
	return &Registration{
		ID:                   id,
		Name:                 draft.Name,
		Email:                strings.ToLower(draft.Email),
		Phone:                draft.Phone,
		WantsNotifications:   draft.WantsNotifications,
		AcceptsPrivacyPolicy: true,
		CreatedAt:            now,
	}, nil
}

// ListOptions pages through stored registrations, newest first.
type ListOptions struct {
	Limit  int
	Offset int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Normalize clamps the paging window.
func (o *ListOptions) Normalize() {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}
