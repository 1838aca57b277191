// Package domain contains the story entities and their validation, no transport or lifecycle logic
package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxIdentityLen    = 36
	MaxDisplayNameLen = 36
)

var (
	ErrDisplayNameTooLong = Validation("display_name_too_long")
	ErrDisplayNameEmpty   = Validation("display_name_empty")
)

// Identity is the stable client token a browser presents on every connection.
// Reconnects are matched on it.
type Identity string

func NewIdentity() Identity { return Identity(uuid.NewString()) }

type User struct {
	Identity    Identity `json:"identity"`
	DisplayName string   `json:"display_name"`
}

func (u *User) SetDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrDisplayNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		return ErrDisplayNameTooLong
	}
	u.DisplayName = name
	return nil
}
