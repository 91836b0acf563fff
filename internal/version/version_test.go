package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidUpgrade(t *testing.T) {
	tests := []struct {
		name      string
		current   string
		candidate string
		want      bool
	}{
		{"minor upgrade", "1.2.3", "1.3.0", true},
		{"patch downgrade", "1.3.0", "1.2.9", false},
		{"same version", "1.2.3", "1.2.3", false},
		{"major upgrade", "1.9.9", "2.0.0", true},
		{"unparseable current", "not-a-version", "1.0.0", false},
		{"unparseable candidate", "1.0.0", "definitely-not", false},
		{"missing patch component", "1.2", "1.3.0", false},
		{"prerelease below release", "1.0.0", "1.0.1-rc.1", true},
		{"release above own prerelease", "1.0.0-rc.1", "1.0.0", true},
		{"prerelease ordering", "1.0.0-alpha", "1.0.0-beta", true},
		{"build metadata ignored", "1.0.0+build1", "1.0.0+build2", false},
		{"empty strings", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidUpgrade(tt.current, tt.candidate))
		})
	}
}
