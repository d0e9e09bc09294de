package store

import (
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
)

// A freshly asked question holds NULL answer and fact_value until the
// user responds. The row scans go through pgtype.Text, which accepts the
// NULL and reads back as an empty string; a plain string destination
// would fail the scan and break every read after the first ask.
func TestOpenQuestionColumnsScanAsEmpty(t *testing.T) {
	m := pgtype.NewMap()

	var col pgtype.Text
	if err := m.Scan(pgtype.TextOID, pgtype.TextFormatCode, nil, &col); err != nil {
		t.Fatalf("scanning NULL text: %v", err)
	}
	if col.Valid {
		t.Error("NULL scanned as a valid value")
	}
	if col.String != "" {
		t.Errorf("NULL read back as %q, want empty string", col.String)
	}

	var s string
	if err := m.Scan(pgtype.TextOID, pgtype.TextFormatCode, nil, &s); err == nil {
		t.Error("plain string destination accepted a NULL scan")
	}
}
