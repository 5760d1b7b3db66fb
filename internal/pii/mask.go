// Package pii masks customer details before they reach the logs.
package pii

import (
	"strings"

	"github.com/sirupsen/logrus"

	"supplier-engine-service/internal/models"
)

// MaskEmail keeps the first character and the domain
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if len(email) < 5 || at < 1 {
		return "***"
	}
	return firstRune(email) + "***" + email[at:]
}

// MaskPhone keeps the last four digits
func MaskPhone(phone string) string {
	r := []rune(strings.TrimSpace(phone))
	if len(r) < 4 {
		return "***"
	}
	return "***" + string(r[len(r)-4:])
}

// MaskName keeps the initial
func MaskName(name string) string {
	name = strings.TrimSpace(name)
	if len([]rune(name)) < 2 {
		return "*"
	}
	return firstRune(name) + "***"
}

// CustomerFields returns loggable fields for a customer. The street
// address is never included.
func CustomerFields(c models.Customer) logrus.Fields {
	fields := logrus.Fields{
		"customer": MaskName(c.Name),
		"city":     c.City,
	}
	if c.Email != "" {
		fields["email"] = MaskEmail(c.Email)
	}
	if c.Phone != "" {
		fields["phone"] = MaskPhone(c.Phone)
	}
	return fields
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}
