package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SantiagoCTB/whatsapp-ia/internal/entity"
)

func TestMeasurementHandlerArea(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "integers", input: "3 x 4", want: "Resultado: 12"},
		{name: "asterisk separator", input: "3*4", want: "Resultado: 12"},
		{name: "decimal comma", input: "2,5 x 2", want: "Resultado: 5"},
		{name: "words rejected", input: "tres por cuatro", wantErr: ErrInvalidMeasure},
		{name: "single number rejected", input: "12", wantErr: ErrInvalidMeasure},
		{name: "empty rejected", input: "", wantErr: ErrInvalidMeasure},
	}

	handler := &measurementHandler{}
	rule := &entity.Rule{Id: 1, Compute: "area", Response: "Resultado: {resultado}"}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := handler.Compute(tt.input, rule)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMeasurementHandlerLinearRate(t *testing.T) {
	handler := &measurementHandler{}

	rule := &entity.Rule{Id: 2, Compute: "linear:2.5", Response: "Total {resultado}"}
	got, err := handler.Compute("4", rule)
	require.NoError(t, err)
	assert.Equal(t, "Total 10", got)

	plain := &entity.Rule{Id: 3, Compute: "linear", Response: "Metros:"}
	got, err = handler.Compute("7", plain)
	require.NoError(t, err)
	assert.Equal(t, "Metros: 7", got)
}

func TestRegistryRejectsUnknownHandler(t *testing.T) {
	registry := NewHandlerRegistry()

	err := registry.EnsureKnown([]*entity.Rule{
		{Id: 1, Handler: ""},
		{Id: 2, Handler: "medicion"},
	})
	require.NoError(t, err)

	err = registry.EnsureKnown([]*entity.Rule{
		{Id: 3, Handler: "inexistente"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inexistente")
}
