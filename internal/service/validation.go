package service

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/spec-kit/bug-tracker/internal/domain"
	apperrors "github.com/spec-kit/bug-tracker/pkg/util/errorutil"
)

const minPasswordLength = 6

// fieldErrors collects validation messages in field order.
type fieldErrors []string

func (f *fieldErrors) add(format string, args ...any) {
	*f = append(*f, fmt.Sprintf(format, args...))
}

func (f fieldErrors) err() error {
	return apperrors.NewFieldErrors(f)
}

// text trims value and checks it is non-empty and within max runes.
func (f *fieldErrors) text(field, value string, max int) string {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		f.add("%s is required", field)
	case utf8.RuneCountInString(value) > max:
		f.add("%s must be at most %d characters", field, max)
	}
	return value
}

func (f *fieldErrors) email(value string) string {
	value = domain.NormalizeEmail(value)
	if value == "" {
		f.add("email is required")
		return value
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		f.add("email must be a valid address")
	}
	return value
}

func (f *fieldErrors) password(value string) {
	if utf8.RuneCountInString(value) < minPasswordLength {
		f.add("password must be at least %d characters", minPasswordLength)
	}
}

func (f *fieldErrors) role(value string) domain.Role {
	role, ok := domain.ParseRole(value)
	if !ok {
		f.add("role must be one of Admin, Tester, Developer")
	}
	return role
}

func (f *fieldErrors) status(value string) domain.BugStatus {
	status := domain.BugStatus(strings.TrimSpace(value))
	if !status.Valid() {
		f.add("status must be one of Open, In Progress, Closed")
	}
	return status
}

func (f *fieldErrors) priority(value string) domain.BugPriority {
	priority := domain.BugPriority(strings.TrimSpace(value))
	if !priority.Valid() {
		f.add("priority must be one of Low, Medium, High")
	}
	return priority
}
