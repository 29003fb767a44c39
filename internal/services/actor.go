package services

import (
	"strings"

	"github.com/google/uuid"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/apierr"
)

// Actor identifies who is joining or proposing a group: an authenticated
// user (UserID set) or a guest identified by name + phone. Guests are
// deduplicated per group by normalized phone number.
type Actor struct {
	UserID *uuid.UUID `json:"user_id,omitempty"`
	Name   string     `json:"name,omitempty"`
	Phone  string     `json:"phone,omitempty"`
	Email  string     `json:"email,omitempty"`
}

func (a Actor) IsGuest() bool {
	return a.UserID == nil || *a.UserID == uuid.Nil
}

// NormalizedPhone strips separators so "77 123-45-67" and "771234567" are
// the same guest.
func (a Actor) NormalizedPhone() string {
	var b strings.Builder
	for _, r := range a.Phone {
		if r >= '0' && r <= '9' || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (a Actor) validate() error {
	if !a.IsGuest() {
		return nil
	}
	if strings.TrimSpace(a.Name) == "" {
		return apierr.Validationf("guest name required")
	}
	if len(a.NormalizedPhone()) < 6 {
		return apierr.Validationf("valid guest phone required")
	}
	return nil
}
