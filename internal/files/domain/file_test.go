package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain", "report.pdf", false},
		{"unicode", "보고서.txt", false},
		{"spaces", "my file.txt", false},
		{"empty", "", true},
		{"slash", "a/b.txt", true},
		{"backslash", `a\b.txt`, true},
		{"nul", "a\x00b", true},
		{"traversal", "..", true},
		{"embedded traversal", "a..b", true},
		{"hidden", ".env", true},
		{"attrs sidecar", "a.txt.attrs", true},
		{"too long", strings.Repeat("a", MaxFileNameLength+1), true},
		{"max length", strings.Repeat("a", MaxFileNameLength), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFileName)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestArtifactNames(t *testing.T) {
	assert.Equal(t, "a.txt.encrypted", EncryptedName("a.txt"))
	assert.Equal(t, "a.txt.dek", DEKName("a.txt"))

	assert.Equal(t, "a.txt", RestoredName("a.txt.encrypted"))
	assert.Equal(t, "a.bin.restored", RestoredName("a.bin"))
	assert.Equal(t, ".encrypted.restored", RestoredName(".encrypted"))
}
