// Package schedule builds rounding-correct installment schedules.
package schedule

import (
	"errors"
	"fmt"

	"github.com/Dan9191/strata-service/internal/apperr"
	"github.com/Dan9191/strata-service/internal/models"
	"github.com/Dan9191/strata-service/internal/money"
)

// ErrSumMismatch means a generated schedule does not add up to its total.
// It indicates a defect, never bad input.
var ErrSumMismatch = errors.New("installment amounts do not sum to the scheduled total")

// DueDate returns the due date of the k-th installment (k from 0).
func DueDate(start models.Date, freq models.Frequency, k int) models.Date {
	switch freq {
	case models.Weekly:
		return start.AddDays(7 * k)
	case models.Fortnightly:
		return start.AddDays(14 * k)
	default:
		return start.AddMonths(k)
	}
}

// Build produces n installments numbered 1..n whose amounts sum exactly to
// totalOwed + interestOwed. Installments 1..n-1 get the floor share and the
// last one absorbs the remainder.
func Build(totalOwed, interestOwed money.Amount, n int, freq models.Frequency, start models.Date) ([]models.Installment, error) {
	var fields []apperr.FieldError
	if totalOwed <= 0 {
		fields = append(fields, apperr.FieldError{Field: "total_owed", Error: "must be greater than zero"})
	}
	if interestOwed < 0 {
		fields = append(fields, apperr.FieldError{Field: "interest_owed", Error: "must not be negative"})
	}
	if n <= 0 {
		fields = append(fields, apperr.FieldError{Field: "number_of_installments", Error: "must be at least 1"})
	}
	if !freq.Valid() {
		fields = append(fields, apperr.FieldError{Field: "installment_frequency", Error: fmt.Sprintf("unknown frequency %q", freq)})
	}
	if start.IsZero() {
		fields = append(fields, apperr.FieldError{Field: "start_date", Error: "is required"})
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid schedule", fields...)
	}

	total := totalOwed + interestOwed
	if int64(total) < int64(n) {
		return nil, apperr.Field("number_of_installments", "exceeds the total owed in minor units")
	}
	return split(total, n, 1, freq, start)
}

// Rebuild spreads remaining over every due date from start up to and including
// end, numbering from firstNumber. At least one installment is produced.
func Rebuild(remaining money.Amount, start, end models.Date, freq models.Frequency, firstNumber int) ([]models.Installment, error) {
	if remaining <= 0 {
		return nil, apperr.Field("remaining", "must be greater than zero")
	}
	if !freq.Valid() {
		return nil, apperr.Field("installment_frequency", fmt.Sprintf("unknown frequency %q", freq))
	}
	if end.Before(start) {
		return nil, apperr.Field("requested_end_date", "must not be before the next due date")
	}
	if firstNumber < 1 {
		firstNumber = 1
	}

	n := 1
	for !DueDate(start, freq, n).After(end) {
		n++
	}
	if int64(n) > int64(remaining) {
		n = int(remaining)
	}
	return split(remaining, n, firstNumber, freq, start)
}

func split(total money.Amount, n, firstNumber int, freq models.Frequency, start models.Date) ([]models.Installment, error) {
	base := total / money.Amount(n)
	items := make([]models.Installment, 0, n)
	for k := 0; k < n; k++ {
		amount := base
		if k == n-1 {
			amount = total - base*money.Amount(n-1)
		}
		items = append(items, models.Installment{
			InstallmentNumber: firstNumber + k,
			DueDate:           DueDate(start, freq, k),
			Amount:            amount,
			Status:            models.InstallmentPending,
		})
	}
	if err := Verify(items, total); err != nil {
		return nil, err
	}
	return items, nil
}

// Verify checks the exact sum invariant over a set of installments.
func Verify(items []models.Installment, want money.Amount) error {
	var got money.Amount
	for _, it := range items {
		got += it.Amount
	}
	if got != want {
		return fmt.Errorf("%w: got %s, want %s", ErrSumMismatch, got, want)
	}
	return nil
}

// EndDate is the due date of the last installment.
func EndDate(items []models.Installment) models.Date {
	if len(items) == 0 {
		return models.Date{}
	}
	return items[len(items)-1].DueDate
}
