package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/models"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		docType string
		number  string
		want    string
		wantErr bool
	}{
		{"formatted CPF", models.DocumentCPF, "529.982.247-25", "52998224725", false},
		{"bare CPF", models.DocumentCPF, "52998224725", "52998224725", false},
		{"wrong CPF check digit", models.DocumentCPF, "529.982.247-24", "", true},
		{"short CPF", models.DocumentCPF, "1234567890", "", true},
		{"repeated CPF", models.DocumentCPF, "111.111.111-11", "", true},
		{"formatted CNPJ", models.DocumentCNPJ, "11.222.333/0001-81", "11222333000181", false},
		{"wrong CNPJ check digit", models.DocumentCNPJ, "11.222.333/0001-80", "", true},
		{"CPF sent as CNPJ", models.DocumentCNPJ, "529.982.247-25", "", true},
		{"unknown type", "RG", "123456789", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.docType, tt.number)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperr.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
