package models

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Field names used as FieldErrors keys. They match the JSON and form names.
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldPhone   = "phone"
	FieldPrivacy = "accepts_privacy_policy"
)

const (
	nameMinLen  = 2
	nameMaxLen  = 100
	emailMaxLen = 255
)

// User-facing messages. The landing page is in Brazilian Portuguese.
const (
	MsgNameTooShort   = "Nome deve ter pelo menos 2 caracteres"
	MsgNameTooLong    = "Nome muito longo"
	MsgNameLetters    = "Nome deve conter apenas letras"
	MsgEmailInvalid   = "E-mail inválido"
	MsgEmailTooLong   = "E-mail muito longo"
	MsgPhoneFormat    = "Formato: (11) 98765-4321"
	MsgPrivacyRequire = "Você precisa aceitar os termos de privacidade"
)

var (
	// ASCII letters, Latin-1 U+00C0..U+00FF and whitespace, including the
	// Unicode spaces browsers paste in (no-break space and friends).
	nameRe = regexp.MustCompile(`^[a-zA-Z\x{00C0}-\x{00FF}\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}]+$`)
	// Local part may not end in '.' or '\''; labels start alphanumeric; TLD is 2+ letters.
	emailRe = regexp.MustCompile(`^[A-Za-z0-9_'+\-.]*[A-Za-z0-9_+\-]@([A-Za-z0-9][A-Za-z0-9\-]*\.)+[A-Za-z]{2,}$`)
	// Mobile (DD) DDDDD-DDDD or landline (DD) DDDD-DDDD.
	phoneRe = regexp.MustCompile(`^\(\d{2}\)\s\d{4,5}-\d{4}$`)
)

// FieldErrors maps a field name to the message shown next to it.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "invalid fields: " + strings.Join(parts, "; ")
}

// FieldMessages exposes the map to the JSON error writer.
func (e FieldErrors) FieldMessages() map[string]string {
	return e
}

// Validate checks every field of the draft independently and returns all
// failures together, or nil when the draft is acceptable. Each field reports
// its first failing rule.
func Validate(d Draft) FieldErrors {
	errs := FieldErrors{}
	if msg := ValidateName(d.Name); msg != "" {
		errs[FieldName] = msg
	}
	if msg := ValidateEmail(d.Email); msg != "" {
		errs[FieldEmail] = msg
	}
	if msg := ValidatePhone(d.Phone); msg != "" {
		errs[FieldPhone] = msg
	}
	if !d.AcceptsPrivacyPolicy {
		errs[FieldPrivacy] = MsgPrivacyRequire
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ValidateName returns the error message for name, or "".
func ValidateName(name string) string {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	switch {
	case n < nameMinLen:
		return MsgNameTooShort
	case n > nameMaxLen:
		return MsgNameTooLong
	case !nameRe.MatchString(name):
		return MsgNameLetters
	}
	return ""
}

// ValidateEmail returns the error message for email, or "".
func ValidateEmail(email string) string {
	email = strings.TrimSpace(email)
	switch {
	case !isEmail(email):
		return MsgEmailInvalid
	case utf8.RuneCountInString(email) > emailMaxLen:
		return MsgEmailTooLong
	}
	return ""
}

// ValidatePhone returns the error message for phone, or "".
func ValidatePhone(phone string) string {
	if !phoneRe.MatchString(strings.TrimSpace(phone)) {
		return MsgPhoneFormat
	}
	return ""
}

func isEmail(s string) bool {
	if strings.HasPrefix(s, ".") || strings.Contains(s, "..") {
		return false
	}
	return emailRe.MatchString(s)
}
