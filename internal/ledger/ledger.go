// Package ledger implements the sign convention and balance arithmetic of the
// append-only credit ledger.
//
// ADD and REFUND credit the user, CONSUME and EXPIRE debit, ADJUST carries its
// own sign. A balance never goes below zero through a ledger write.
package ledger

import (
	"fmt"

	"webmarcas-backend/internal/apperr"
	"webmarcas-backend/internal/models"
)

// ValidOperation reports whether op is a known ledger operation.
func ValidOperation(op models.LedgerOperation) bool {
	switch op {
	case models.OperationAdd, models.OperationConsume, models.OperationRefund,
		models.OperationAdjust, models.OperationExpire:
		return true
	}
	return false
}

// SignedAmount converts the magnitude supplied by a caller into the signed
// amount stored on the entry.
func SignedAmount(op models.LedgerOperation, amount int) (int, error) {
	switch op {
	case models.OperationAdd, models.OperationRefund:
		if amount <= 0 {
			return 0, apperr.Validation("%s amount must be positive", op)
		}
		return amount, nil
	case models.OperationConsume, models.OperationExpire:
		if amount <= 0 {
			return 0, apperr.Validation("%s amount must be positive", op)
		}
		return -amount, nil
	case models.OperationAdjust:
		if amount == 0 {
			return 0, apperr.Validation("ADJUST amount must be non-zero")
		}
		return amount, nil
	default:
		return 0, apperr.Validation("unknown ledger operation %q", op)
	}
}

// Apply computes the entry amount and resulting balance for op against the
// previous balance. EXPIRE is capped at the available balance; every other
// debit that would go negative is rejected with InsufficientCredits.
func Apply(previous int, op models.LedgerOperation, amount int) (signed, balanceAfter int, err error) {
	if op == models.OperationExpire && amount > previous {
		amount = previous
		if amount <= 0 {
			return 0, previous, apperr.Validation("no credits to expire")
		}
	}

	signed, err = SignedAmount(op, amount)
	if err != nil {
		return 0, previous, err
	}

	balanceAfter = previous + signed
	if balanceAfter < 0 {
		return 0, previous, apperr.InsufficientCredits(
			"insufficient credits: available %d, required %d", previous, -signed)
	}
	return signed, balanceAfter, nil
}

// Sum returns the sum of entry amounts.
func Sum(entries []models.CreditLedgerEntry) int {
	total := 0
	for _, e := range entries {
		total += e.Amount
	}
	return total
}

// VerifyChain checks that entries, in creation order, form a consistent
// running balance starting from zero.
func VerifyChain(entries []models.CreditLedgerEntry) error {
	running := 0
	for i, e := range entries {
		running += e.Amount
		if e.BalanceAfter != running {
			return fmt.Errorf("entry %d (%s): balance_after %d, expected %d", i, e.ID, e.BalanceAfter, running)
		}
	}
	return nil
}
