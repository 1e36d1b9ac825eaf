// Package validator registers the custom binding tags used by request models
// and turns validation failures into client-facing messages.
package validator

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"webmarcas-backend/internal/fingerprint"
)

var once sync.Once

// Init registers the custom tags on gin's validator engine. It is safe to
// call more than once.
func Init() {
	once.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			Register(v)
		}
	})
}

// Register adds the custom tags to v.
func Register(v *validator.Validate) {
	_ = v.RegisterValidation("sha256hex", func(fl validator.FieldLevel) bool {
		return fingerprint.IsValidSHA256(fl.Field().String())
	})
}

// ErrorMessage translates binding errors into a single readable message.
func ErrorMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "invalid request body"
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		field := jsonName(e.Field())
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, e.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, e.Param()))
		case "uuid":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid UUID", field))
		case "url":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid URL", field))
		case "sha256hex":
			msgs = append(msgs, fmt.Sprintf("%s must be a 64-character hexadecimal SHA-256 hash", field))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed validation (%s)", field, e.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// jsonName converts a Go field name such as HashSHA256 or NomeAtivo into the
// snake_case name clients send.
func jsonName(field string) string {
	switch field {
	case "HashSHA256":
		return "hash_sha256"
	case "TxHash":
		return "tx_hash"
	case "UserID":
		return "user_id"
	case "ProjectID":
		return "project_id"
	case "ProofURL":
		return "proof_url"
	case "ReferenceID":
		return "reference_id"
	}
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
