package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		attrs    []string
		wantErr  string
	}{
		{"ok", "Str0ngPass", nil, ""},
		{"short", "a1b2", nil, "too short"},
		{"numeric", "1234567890", nil, "entirely numeric"},
		{"no digit", "onlyletters", nil, "at least one digit"},
		{"similar to email", "johnsmith2024", []string{"johnsmith@example.com"}, "too similar"},
		{"short attr ignored", "bob12345x", []string{"bob@example.com"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password, tt.attrs...)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
