package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRendererResolution(t *testing.T) {
	tests := []struct {
		name     string
		dpi      int
		scale    float64
		expected int
	}{
		{"plain dpi", 220, 0, 220},
		{"unit scale", 220, 1.0, 220},
		{"upscaled", 150, 2.0, 300},
		{"fractional rounds", 100, 1.255, 126},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr := NewPageRenderer(t.TempDir(), tt.dpi, tt.scale, "jpeg", 85)
			assert.Equal(t, tt.expected, pr.resolution())
		})
	}
}
