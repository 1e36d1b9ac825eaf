package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hashRequest struct {
	HashSHA256 string `binding:"required,sha256hex" validate:"required,sha256hex"`
	NomeAtivo  string `validate:"max=5"`
}

func newValidate() *validator.Validate {
	v := validator.New()
	Register(v)
	return v
}

func TestSHA256HexTag(t *testing.T) {
	v := newValidate()
	tests := []struct {
		name string
		hash string
		ok   bool
	}{
		{"lowercase", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", true},
		{"uppercase", "E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855", true},
		{"too short", "e3b0c442", false},
		{"not hex", strings.Repeat("z", 64), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(hashRequest{HashSHA256: tt.hash})
			assert.Equal(t, tt.ok, err == nil, "err: %v", err)
		})
	}
}

func TestErrorMessage(t *testing.T) {
	v := newValidate()

	err := v.Struct(hashRequest{HashSHA256: "abc", NomeAtivo: "too long"})
	require.Error(t, err)

	msg := ErrorMessage(err)
	assert.Contains(t, msg, "hash_sha256 must be a 64-character hexadecimal SHA-256 hash")
	assert.Contains(t, msg, "nome_ativo must be at most 5 characters")
}

func TestErrorMessage_NonValidationError(t *testing.T) {
	assert.Equal(t, "invalid request body", ErrorMessage(errors.New("unexpected EOF")))
}
