package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSnowflake(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"123456789012345678", false},
		{"12345678901234567", false},
		{"12345678901234567890", false},
		{"1234567890123456", true},
		{"123456789012345678901", true},
		{"12345678901234567a", true},
		{"", true},
		{" 123456789012345678", true},
	}

	for _, tt := range tests {
		err := ValidateSnowflake("channelId", tt.id)
		if tt.wantErr {
			assert.Error(t, err, tt.id)
			assert.Contains(t, err.Error(), "channelId")
		} else {
			assert.NoError(t, err, tt.id)
		}
	}
}

func TestValidateUsername(t *testing.T) {
	valid := []string{"abc", "Builder_Man", "player123", "ABCDEFGHIJKLMNOPQRST"}
	for _, name := range valid {
		assert.NoError(t, ValidateUsername(name), name)
	}

	invalid := []string{"ab", "_lead", "trail_", "two_under_scores", "has space", "dash-name", "ABCDEFGHIJKLMNOPQRSTU", ""}
	for _, name := range invalid {
		assert.ErrorIs(t, ValidateUsername(name), ErrInvalidUsername, name)
	}
}
