package models

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "prelaunch/pkg/domain-errors"
)

func validDraft() Draft {
	return Draft{
		Name:                 "Kelly Quebradas",
		Email:                "kelly@example.com.br",
		Phone:                "(11) 98765-4321",
		AcceptsPrivacyPolicy: true,
	}
}

func TestValidateAcceptsValidDraft(t *testing.T) {
	assert.Nil(t, Validate(validDraft()))

	landline := validDraft()
	landline.Phone = "(21) 3333-4444"
	assert.Nil(t, Validate(landline))
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"accented", "João da Silva Araújo", ""},
		{"two letters", "Jo", ""},
		{"trimmed before length", "  J  ", MsgNameTooShort},
		{"empty", "", MsgNameTooShort},
		{"exactly 100", strings.Repeat("a", 100), ""},
		{"101 letters", strings.Repeat("a", 101), MsgNameTooLong},
		{"100 accented runes", strings.Repeat("é", 100), ""},
		{"digit", "Ana 2", MsgNameLetters},
		{"symbol", "Ana-Maria", MsgNameLetters},
		{"apostrophe", "D'Ávila", MsgNameLetters},
		{"markup", "<b>Ana</b>", MsgNameLetters},
		{"outside latin-1", "Łukasz", MsgNameLetters},
		{"no-break space", "Ana\u00a0Souza", ""},
		{"em space", "Ana\u2003Souza", ""},
		{"narrow no-break space", "Ana\u202fSouza", ""},
		{"tab", "Ana\tSouza", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateName(tt.in))
		})
	}
}

func TestValidateNameRejectsEveryDigitAndSymbol(t *testing.T) {
	for _, r := range "0123456789!@#$%&*()_+=[]{};:,.<>/?|~`^\"" {
		assert.Equal(t, MsgNameLetters, ValidateName("Ana"+string(r)+"Lu"), "rune %q", r)
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "ana@example.com", ""},
		{"plus tag", "ana+promo@example.com.br", ""},
		{"trimmed", "  ana@example.com ", ""},
		{"missing at", "ana.example.com", MsgEmailInvalid},
		{"missing tld", "ana@example", MsgEmailInvalid},
		{"short tld", "ana@example.c", MsgEmailInvalid},
		{"leading dot", ".ana@example.com", MsgEmailInvalid},
		{"double dot", "ana..lu@example.com", MsgEmailInvalid},
		{"space inside", "ana lu@example.com", MsgEmailInvalid},
		{"display name", "Ana <ana@example.com>", MsgEmailInvalid},
		{"empty", "", MsgEmailInvalid},
		{"too long", strings.Repeat("a", 250) + "@example.com", MsgEmailTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateEmail(tt.in))
		})
	}
}

func TestValidatePhone(t *testing.T) {
	for _, ok := range []string{"(11) 98765-4321", "(11) 9876-5432", " (11) 98765-4321 "} {
		assert.Empty(t, ValidatePhone(ok), ok)
	}
	for _, bad := range []string{"11987654321", "(11)98765-4321", "(1) 98765-4321", "(11) 987-4321", "(11) 987654-321", ""} {
		assert.Equal(t, MsgPhoneFormat, ValidatePhone(bad), bad)
	}
}

func TestValidateReportsAllFieldsTogether(t *testing.T) {
	got := Validate(Draft{Name: "A", Email: "nope", Phone: "123"})

	want := FieldErrors{
		FieldName:    MsgNameTooShort,
		FieldEmail:   MsgEmailInvalid,
		FieldPhone:   MsgPhoneFormat,
		FieldPrivacy: MsgPrivacyRequire,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("field errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidatePrivacyGateOnly(t *testing.T) {
	d := validDraft()
	d.AcceptsPrivacyPolicy = false

	got := Validate(d)
	if diff := cmp.Diff(FieldErrors{FieldPrivacy: MsgPrivacyRequire}, got); diff != "" {
		t.Fatalf("field errors mismatch (-want +got):\n%s", diff)
	}
}

func TestNewRegistration(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	id := uuid.New()

	t.Run("trims and builds", func(t *testing.T) {
		d := validDraft()
		d.Name = "  Kelly Quebradas "
		d.Email = " Kelly@Example.com.BR "
		d.WantsNotifications = true

		reg, err := NewRegistration(id, d, now)
		require.NoError(t, err)
		assert.Equal(t, id, reg.ID)
		assert.Equal(t, "Kelly Quebradas", reg.Name)
		assert.Equal(t, "kelly@example.com.br", reg.Email)
		assert.True(t, reg.WantsNotifications)
		assert.True(t, reg.AcceptsPrivacyPolicy)
		assert.Equal(t, now, reg.CreatedAt)
	})

	t.Run("invalid draft carries field errors", func(t *testing.T) {
		d := validDraft()
		d.Email = "broken"

		reg, err := NewRegistration(id, d, now)
		require.Error(t, err)
		assert.Nil(t, reg)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		var fe FieldErrors
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, MsgEmailInvalid, fe[FieldEmail])
	})
}

func TestFieldErrorsMessageIsStable(t *testing.T) {
	errs := FieldErrors{FieldPhone: "p", FieldEmail: "e"}
	assert.Equal(t, "invalid fields: email: e; phone: p", errs.Error())
}
