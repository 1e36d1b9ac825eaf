// Package document validates Brazilian taxpayer numbers: CPF for people and
// CNPJ for companies.
package document

import (
	"strings"

	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/models"
)

// Digits strips everything but ASCII digits.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize validates number for docType and returns its bare digits.
func Normalize(docType, number string) (string, error) {
	digits := Digits(number)
	switch docType {
	case models.DocumentCPF:
		if len(digits) != 11 {
			return "", apperr.Validation("CPF must have 11 digits")
		}
		if !validCPF(digits) {
			return "", apperr.Validation("invalid CPF")
		}
	case models.DocumentCNPJ:
		if len(digits) != 14 {
			return "", apperr.Validation("CNPJ must have 14 digits")
		}
		if !validCNPJ(digits) {
			return "", apperr.Validation("invalid CNPJ")
		}
	default:
		return "", apperr.Validation("document_type must be CPF or CNPJ")
	}
	return digits, nil
}

func allSame(digits string) bool {
	return strings.Count(digits, digits[:1]) == len(digits)
}

func validCPF(d string) bool {
	if allSame(d) {
		return false
	}
	for n := 9; n <= 10; n++ {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(d[i]-'0') * (n + 1 - i)
		}
		check := sum * 10 % 11
		if check == 10 {
			check = 0
		}
		if check != int(d[n]-'0') {
			return false
		}
	}
	return true
}

var cnpjWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}

func validCNPJ(d string) bool {
	if allSame(d) {
		return false
	}
	for n := 12; n <= 13; n++ {
		weights := cnpjWeights[13-n:]
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(d[i]-'0') * weights[i]
		}
		check := 0
		if r := sum % 11; r >= 2 {
			check = 11 - r
		}
		if check != int(d[n]-'0') {
			return false
		}
	}
	return true
}
