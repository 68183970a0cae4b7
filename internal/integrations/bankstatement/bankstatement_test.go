package bankstatement

import (
	"strings"
	"testing"

	"github.com/Dan9191/strata-service/internal/models"
)

const sampleStatement = `<?xml version="1.0" encoding="UTF-8"?>
<Document xmlns="urn:iso:std:iso:20022:tech:xsd:camt.053.001.02">
  <BkToCstmrStmt>
    <GrpHdr><MsgId>MSG-1</MsgId></GrpHdr>
    <Stmt>
      <Id>STMT-2026-05</Id>
      <Acct><Id><IBAN>AU00TRUST0001</IBAN></Id></Acct>
      <Ntry>
        <Amt Ccy="AUD">333.33</Amt>
        <CdtDbtInd>CRDT</CdtDbtInd>
        <BookgDt><Dt>2026-05-02</Dt></BookgDt>
        <AcctSvcrRef>BANK-REF-1</AcctSvcrRef>
        <NtryDtls><TxDtls><RmtInf><Ustrd>Lot 4A PLAN-abc123</Ustrd></RmtInf></TxDtls></NtryDtls>
      </Ntry>
      <Ntry>
        <Amt Ccy="AUD">50.00</Amt>
        <CdtDbtInd>DBIT</CdtDbtInd>
        <BookgDt><DtTm>2026-05-03T10:00:00</DtTm></BookgDt>
        <NtryDtls><TxDtls><Refs><EndToEndId>E2E-9</EndToEndId></Refs></TxDtls></NtryDtls>
      </Ntry>
    </Stmt>
  </BkToCstmrStmt>
</Document>`

func TestParse(t *testing.T) {
	stmt, err := Parse(strings.NewReader(sampleStatement))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if stmt.ID != "STMT-2026-05" || stmt.Account != "AU00TRUST0001" {
		t.Fatalf("Unexpected statement header %+v", stmt)
	}
	if len(stmt.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(stmt.Entries))
	}

	first := stmt.Entries[0]
	if first.Amount != 33333 || first.Currency != "AUD" || !first.Credit {
		t.Fatalf("Unexpected first entry %+v", first)
	}
	if first.Reference != "BANK-REF-1" || first.BookingDate.String() != "2026-05-02" {
		t.Fatalf("Unexpected first entry %+v", first)
	}

	second := stmt.Entries[1]
	if second.Credit || second.Reference != "E2E-9" || second.BookingDate.String() != "2026-05-03" {
		t.Fatalf("Unexpected second entry %+v", second)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{name: "not xml", xml: "hello"},
		{name: "no statement", xml: `<Document><BkToCstmrStmt/></Document>`},
		{name: "bad amount", xml: `<Document><BkToCstmrStmt><Stmt><Ntry><Amt>1.234</Amt>
			<BookgDt><Dt>2026-05-02</Dt></BookgDt><AcctSvcrRef>R</AcctSvcrRef></Ntry></Stmt></BkToCstmrStmt></Document>`},
		{name: "missing reference", xml: `<Document><BkToCstmrStmt><Stmt><Ntry><Amt>1.00</Amt>
			<BookgDt><Dt>2026-05-02</Dt></BookgDt></Ntry></Stmt></BkToCstmrStmt></Document>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.xml)); err == nil {
				t.Fatalf("Expected error")
			}
		})
	}
}

func TestEntryTarget(t *testing.T) {
	tests := []struct {
		remittance string
		wantType   models.TargetType
		wantID     string
		ok         bool
	}{
		{remittance: "Lot 4A PLAN-abc123", wantType: models.TargetPlan, wantID: "abc123", ok: true},
		{remittance: "levy-77, thanks", wantType: models.TargetLevy, wantID: "77", ok: true},
		{remittance: "PLAN-", ok: false},
		{remittance: "rent for May", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.remittance, func(t *testing.T) {
			gotType, gotID, ok := Entry{Remittance: tt.remittance}.Target()
			if ok != tt.ok || gotType != tt.wantType || gotID != tt.wantID {
				t.Fatalf("Target() = %q, %q, %v", gotType, gotID, ok)
			}
		})
	}
}
