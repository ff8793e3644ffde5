// Package validation holds format checks for identifiers that arrive from
// operators and players.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	snowflakeRegex = regexp.MustCompile(`^[0-9]{17,20}$`)
	usernameRegex  = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)
)

// ErrInvalidUsername is returned for names Roblox would never accept.
var ErrInvalidUsername = errors.New("invalid roblox username")

// ValidateSnowflake checks that id looks like a Discord snowflake. kind names
// the field in the error message.
func ValidateSnowflake(kind, id string) error {
	if !snowflakeRegex.MatchString(id) {
		return fmt.Errorf("%s must be a 17-20 digit Discord id", kind)
	}
	return nil
}

// ValidateUsername applies Roblox's username rules: 3-20 letters, digits or
// underscores, with at most one underscore and none at either end.
func ValidateUsername(name string) error {
	if !usernameRegex.MatchString(name) {
		return ErrInvalidUsername
	}
	if strings.HasPrefix(name, "_") || strings.HasSuffix(name, "_") {
		return ErrInvalidUsername
	}
	if strings.Count(name, "_") > 1 {
		return ErrInvalidUsername
	}
	return nil
}
