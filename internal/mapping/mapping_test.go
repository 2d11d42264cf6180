package mapping

import (
	"testing"
)

func testHeaders() []string {
	return []string{"Date", "Narrative", "Amount", "Debit", "Credit"}
}

func TestValidateSingleMode(t *testing.T) {
	cm := &ColumnMapping{
		TransactionDateColumn: "Date",
		DescriptionColumn:     "Narrative",
		AmountType:            AmountTypeSingle,
		AmountColumn:          "Amount",
	}

	if result := cm.Validate(testHeaders()); !result.Valid() {
		t.Errorf("expected valid mapping, got: %s", result)
	}
}

func TestValidateSeparateMode(t *testing.T) {
	cm := &ColumnMapping{
		TransactionDateColumn: "Date",
		AmountType:            AmountTypeSeparate,
		DebitAmountColumn:     "Debit",
		CreditAmountColumn:    "Credit",
	}

	if result := cm.Validate(testHeaders()); !result.Valid() {
		t.Errorf("expected valid mapping, got: %s", result)
	}
}

func TestValidateMissingDateColumn(t *testing.T) {
	cm := &ColumnMapping{
		AmountType:   AmountTypeSingle,
		AmountColumn: "Amount",
	}

	result := cm.Validate(testHeaders())
	if result.Valid() {
		t.Fatal("expected validation errors")
	}
	if msgs := result.FieldErrors()[FieldTransactionDateColumn]; len(msgs) == 0 {
		t.Error("expected an error on transaction_date_column")
	}
}

func TestValidateUnknownColumns(t *testing.T) {
	cm := &ColumnMapping{
		TransactionDateColumn: "Datum",
		DescriptionColumn:     "Memo",
		AmountType:            AmountTypeSingle,
		AmountColumn:          "Betrag",
	}

	result := cm.Validate(testHeaders())
	if result.Valid() {
		t.Fatal("expected validation errors")
	}

	fieldErrors := result.FieldErrors()
	for _, field := range []string{FieldTransactionDateColumn, FieldDescriptionColumn, FieldAmountColumn} {
		if len(fieldErrors[field]) == 0 {
			t.Errorf("expected an error on %s", field)
		}
	}
}

func TestValidateCrossModeFields(t *testing.T) {
	cm := &ColumnMapping{
		TransactionDateColumn: "Date",
		AmountType:            AmountTypeSingle,
		AmountColumn:          "Amount",
		DebitAmountColumn:     "Debit",
	}

	result := cm.Validate(testHeaders())
	if result.Valid() {
		t.Fatal("expected validation errors")
	}
	if msgs := result.FieldErrors()[FieldDebitAmountColumn]; len(msgs) == 0 {
		t.Error("expected an error on debit_amount_column in single mode")
	}
}

func TestValidateSeparateModeRequiresBothColumns(t *testing.T) {
	cm := &ColumnMapping{
		TransactionDateColumn: "Date",
		AmountType:            AmountTypeSeparate,
		DebitAmountColumn:     "Debit",
	}

	result := cm.Validate(testHeaders())
	if result.Valid() {
		t.Fatal("expected validation errors")
	}
	if msgs := result.FieldErrors()[FieldCreditAmountColumn]; len(msgs) == 0 {
		t.Error("expected an error on credit_amount_column")
	}
}

func TestValidateSameDebitCreditColumn(t *testing.T) {
	cm := &ColumnMapping{
		TransactionDateColumn: "Date",
		AmountType:            AmountTypeSeparate,
		DebitAmountColumn:     "Debit",
		CreditAmountColumn:    "Debit",
	}

	result := cm.Validate(testHeaders())
	if result.Valid() {
		t.Fatal("expected validation errors for identical debit/credit columns")
	}
}

func TestValidateInvalidAmountType(t *testing.T) {
	cm := &ColumnMapping{
		TransactionDateColumn: "Date",
		AmountType:            "both",
	}

	result := cm.Validate(testHeaders())
	if result.Valid() {
		t.Fatal("expected validation errors")
	}
	if msgs := result.FieldErrors()[FieldAmountType]; len(msgs) == 0 {
		t.Error("expected an error on amount_type")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cm := &ColumnMapping{AmountType: "wrong"}

	result := cm.Validate(testHeaders())
	if len(result.Errors) < 2 {
		t.Errorf("expected at least 2 errors collected in one pass, got %d: %s",
			len(result.Errors), result)
	}
}

func TestResolveIndexes(t *testing.T) {
	cm := &ColumnMapping{
		TransactionDateColumn: "Date",
		DescriptionColumn:     "Narrative",
		AmountType:            AmountTypeSingle,
		AmountColumn:          "Amount",
	}

	idx, err := cm.ResolveIndexes(testHeaders())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if idx.Date != 0 || idx.Description != 1 || idx.Amount != 2 {
		t.Errorf("unexpected indexes: %+v", idx)
	}
	if idx.Debit != -1 || idx.Credit != -1 {
		t.Errorf("unused columns should be -1: %+v", idx)
	}
}

func TestResolveIndexesSeparateMode(t *testing.T) {
	cm := &ColumnMapping{
		TransactionDateColumn: "Date",
		AmountType:            AmountTypeSeparate,
		DebitAmountColumn:     "Debit",
		CreditAmountColumn:    "Credit",
	}

	idx, err := cm.ResolveIndexes(testHeaders())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.Debit != 3 || idx.Credit != 4 || idx.Amount != -1 {
		t.Errorf("unexpected indexes: %+v", idx)
	}
}

func TestMarshalStringRoundTrip(t *testing.T) {
	cm := &ColumnMapping{
		TransactionDateColumn: "Date",
		AmountType:            AmountTypeSeparate,
		DebitAmountColumn:     "Debit",
		CreditAmountColumn:    "Credit",
	}

	s, err := cm.MarshalString()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	restored, err := UnmarshalString(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *restored != *cm {
		t.Errorf("round trip mismatch: got %+v, expected %+v", restored, cm)
	}

	if _, err := UnmarshalString(""); err == nil {
		t.Error("expected error for empty stored mapping")
	}
}
