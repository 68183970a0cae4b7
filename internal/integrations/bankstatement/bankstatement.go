// Package bankstatement reads ISO 20022 camt.053 bank-to-customer statements.
package bankstatement

import (
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"

	"github.com/Dan9191/strata-service/internal/models"
	"github.com/Dan9191/strata-service/internal/money"
)

// Entry is one booked statement line.
type Entry struct {
	Reference   string
	Amount      money.Amount
	Currency    string
	Credit      bool
	BookingDate models.Date
	Remittance  string
}

// Statement is a parsed account statement.
type Statement struct {
	ID      string
	Account string
	Entries []Entry
}

// Parse reads a camt.053 document.
func Parse(r io.Reader) (*Statement, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	stmtEl := doc.FindElement("//BkToCstmrStmt/Stmt")
	if stmtEl == nil {
		return nil, fmt.Errorf("no statement found in XML")
	}
	stmt := &Statement{
		ID:      text(stmtEl, "./Id"),
		Account: text(stmtEl, "./Acct/Id/IBAN"),
	}
	if stmt.Account == "" {
		stmt.Account = text(stmtEl, "./Acct/Id/Othr/Id")
	}

	for i, ntry := range stmtEl.FindElements("./Ntry") {
		entry, err := parseEntry(ntry)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		stmt.Entries = append(stmt.Entries, entry)
	}
	return stmt, nil
}

func parseEntry(ntry *etree.Element) (Entry, error) {
	amtEl := ntry.FindElement("./Amt")
	if amtEl == nil {
		return Entry{}, fmt.Errorf("amount element not found")
	}
	amount, err := money.Parse(strings.TrimSpace(amtEl.Text()))
	if err != nil {
		return Entry{}, err
	}

	dateText := text(ntry, "./BookgDt/Dt")
	if dateText == "" {
		dateText = text(ntry, "./BookgDt/DtTm")
	}
	booked, err := models.ParseDate(dateText)
	if err != nil {
		return Entry{}, fmt.Errorf("booking date: %w", err)
	}

	ref := text(ntry, "./AcctSvcrRef")
	if ref == "" {
		ref = text(ntry, "./NtryDtls/TxDtls/Refs/AcctSvcrRef")
	}
	if ref == "" {
		ref = text(ntry, "./NtryDtls/TxDtls/Refs/EndToEndId")
	}
	if ref == "" {
		return Entry{}, fmt.Errorf("entry has no reference")
	}

	var remittance []string
	for _, el := range ntry.FindElements("./NtryDtls/TxDtls/RmtInf/Ustrd") {
		if t := strings.TrimSpace(el.Text()); t != "" {
			remittance = append(remittance, t)
		}
	}

	return Entry{
		Reference:   ref,
		Amount:      amount,
		Currency:    amtEl.SelectAttrValue("Ccy", ""),
		Credit:      text(ntry, "./CdtDbtInd") == "CRDT",
		BookingDate: booked,
		Remittance:  strings.Join(remittance, " "),
	}, nil
}

func text(el *etree.Element, path string) string {
	found := el.FindElement(path)
	if found == nil {
		return ""
	}
	return strings.TrimSpace(found.Text())
}

// Target reads the payment target from the remittance text. Residents quote
// "PLAN-<id>" or "LEVY-<id>".
func (e Entry) Target() (models.TargetType, string, bool) {
	for _, token := range strings.Fields(e.Remittance) {
		token = strings.Trim(token, ".,;:")
		upper := strings.ToUpper(token)
		switch {
		case strings.HasPrefix(upper, "PLAN-") && len(token) > len("PLAN-"):
			return models.TargetPlan, token[len("PLAN-"):], true
		case strings.HasPrefix(upper, "LEVY-") && len(token) > len("LEVY-"):
			return models.TargetLevy, token[len("LEVY-"):], true
		}
	}
	return "", "", false
}
