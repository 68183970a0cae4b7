package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Dan9191/strata-service/internal/integrations/bankstatement"
	"github.com/Dan9191/strata-service/internal/models"
)

type ImportStatus string

const (
	ImportApplied   ImportStatus = "applied"
	ImportDuplicate ImportStatus = "duplicate"
	ImportSkipped   ImportStatus = "skipped"
	ImportFailed    ImportStatus = "failed"
)

// ImportLine is the outcome for one statement entry.
type ImportLine struct {
	Reference  string            `json:"reference"`
	TargetType models.TargetType `json:"target_type,omitempty"`
	TargetID   string            `json:"target_id,omitempty"`
	Status     ImportStatus      `json:"status"`
	Error      string            `json:"error,omitempty"`
}

// ImportReport summarizes a statement import.
type ImportReport struct {
	StatementID string       `json:"statement_id"`
	Applied     int          `json:"applied"`
	Duplicates  int          `json:"duplicates"`
	Skipped     int          `json:"skipped"`
	Failed      int          `json:"failed"`
	Lines       []ImportLine `json:"lines"`
}

// ImportStatement applies the credit entries of a bank statement. The bank
// reference becomes the payment reference, so importing a statement twice
// applies nothing the second time. A failing entry does not stop the import.
// Entries in a currency other than the configured one are reported as failed.
func (s *Service) ImportStatement(ctx context.Context, stmt *bankstatement.Statement) (*ImportReport, error) {
	report := &ImportReport{StatementID: stmt.ID, Lines: make([]ImportLine, 0, len(stmt.Entries))}
	for _, entry := range stmt.Entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		line := ImportLine{Reference: entry.Reference}
		targetType, targetID, ok := entry.Target()
		if !entry.Credit || !ok {
			line.Status = ImportSkipped
			report.Skipped++
			report.Lines = append(report.Lines, line)
			continue
		}
		line.TargetType, line.TargetID = targetType, targetID
		if entry.Currency != "" && s.config.Currency != "" && !strings.EqualFold(entry.Currency, s.config.Currency) {
			line.Status = ImportFailed
			line.Error = fmt.Sprintf("currency %s does not match account currency %s", entry.Currency, s.config.Currency)
			report.Failed++
			report.Lines = append(report.Lines, line)
			s.log.WithFields(logrus.Fields{
				"statement_id": stmt.ID,
				"reference":    entry.Reference,
				"currency":     entry.Currency,
			}).Warn("Statement entry in a foreign currency not applied")
			continue
		}

		result, err := s.ApplyPayment(ctx, models.IncomingPayment{
			TargetType: targetType,
			TargetID:   targetID,
			Amount:     entry.Amount,
			Reference:  entry.Reference,
			PaidDate:   entry.BookingDate,
		})
		switch {
		case err != nil:
			line.Status = ImportFailed
			line.Error = err.Error()
			report.Failed++
			s.log.WithFields(logrus.Fields{
				"statement_id": stmt.ID,
				"reference":    entry.Reference,
				"target_id":    targetID,
			}).Warnf("Statement entry not applied: %v", err)
		case result.Duplicate:
			line.Status = ImportDuplicate
			report.Duplicates++
		default:
			line.Status = ImportApplied
			report.Applied++
		}
		report.Lines = append(report.Lines, line)
	}

	s.log.WithFields(logrus.Fields{
		"statement_id": stmt.ID,
		"applied":      report.Applied,
		"duplicates":   report.Duplicates,
		"skipped":      report.Skipped,
		"failed":       report.Failed,
	}).Info("Bank statement imported")
	return report, nil
}
