package contract

import (
	"encoding/json"
	"strings"
	"testing"

	"wagetrace/model"
)

func TestRecordWage_Success(t *testing.T) {
	contract := &WageLedgerContract{}
	ctx := roleContext("employer", "Org2MSP")

	err := contract.RecordWage(ctx, "WAGE100", "worker-1", "employer-1", 2500, "INR", "construction", "", "2025-Q2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data := ctx.stub.state["WAGE100"]
	if data == nil {
		t.Fatal("wage record not stored")
	}
	var record model.WageRecord
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("stored record unmarshal: %v", err)
	}
	if record.DocType != "wage" || record.Amount != 2500 || record.WorkerIDHash != "worker-1" {
		t.Fatalf("stored record wrong: %+v", record)
	}
	if record.Timestamp != "2025-06-15T12:00:00Z" {
		t.Fatalf("timestamp should default to tx proposal time, got %s", record.Timestamp)
	}
	if string(ctx.stub.events["WageRecorded"]) != "WAGE100" {
		t.Fatalf("WageRecorded event missing or wrong: %q", ctx.stub.events["WageRecorded"])
	}
}

func TestRecordWage_DuplicateRejected(t *testing.T) {
	contract := &WageLedgerContract{}
	ctx := roleContext("employer", "Org2MSP")
	seedWage(ctx.stub, "WAGE100", "worker-1", "employer-1", 1000, "2025-05-01T00:00:00Z")

	err := contract.RecordWage(ctx, "WAGE100", "worker-1", "employer-1", 2500, "INR", "", "", "v1")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
}

func TestRecordWage_Validation(t *testing.T) {
	contract := &WageLedgerContract{}
	ctx := roleContext("employer", "Org2MSP")

	if err := contract.RecordWage(ctx, "", "worker-1", "employer-1", 100, "INR", "", "", "v1"); err == nil {
		t.Fatal("empty wageId must be rejected")
	}
	if err := contract.RecordWage(ctx, "WAGE101", "worker-1", "employer-1", 0, "INR", "", "", "v1"); err == nil {
		t.Fatal("zero amount must be rejected")
	}
	if err := contract.RecordWage(ctx, "WAGE101", "worker-1", "employer-1", -5, "INR", "", "", "v1"); err == nil {
		t.Fatal("negative amount must be rejected")
	}
}

func TestRecordWage_DeniedForWorker(t *testing.T) {
	contract := &WageLedgerContract{}
	ctx := roleContext("worker", "Org1MSP")

	err := contract.RecordWage(ctx, "WAGE100", "worker-1", "employer-1", 100, "INR", "", "", "v1")
	if err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Fatalf("expected access denial, got %v", err)
	}
	if ctx.stub.state["WAGE100"] != nil {
		t.Fatal("denied call must not write state")
	}
}

func TestRecordWage_MaxWageAmountAttribute(t *testing.T) {
	contract := &WageLedgerContract{}
	ctx := newMockContext("Org2MSP", map[string]string{
		"role":          "employer",
		"maxWageAmount": "1000",
	})

	err := contract.RecordWage(ctx, "WAGE100", "worker-1", "employer-1", 1500, "INR", "", "", "v1")
	if err == nil || !strings.Contains(err.Error(), "exceeds authorized limit") {
		t.Fatalf("expected wage limit rejection, got %v", err)
	}
}

func TestReadWage_NotFound(t *testing.T) {
	contract := &WageLedgerContract{}
	ctx := roleContext("auditor", "Org1MSP")

	_, err := contract.ReadWage(ctx, "WAGE404")
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestReadWage_RoundTrip(t *testing.T) {
	contract := &WageLedgerContract{}
	ctx := roleContext("employer", "Org2MSP")

	if err := contract.RecordWage(ctx, "WAGE100", "worker-1", "employer-1", 750.25, "INR", "weaving", "2025-03-01T10:00:00Z", "v1"); err != nil {
		t.Fatalf("record: %v", err)
	}
	record, err := contract.ReadWage(ctx, "WAGE100")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if record.Amount != 750.25 || record.JobType != "weaving" || record.Timestamp != "2025-03-01T10:00:00Z" {
		t.Fatalf("round trip mismatch: %+v", record)
	}
}

func TestQueryWagesByWorker_FiltersAndSelfAccess(t *testing.T) {
	contract := &WageLedgerContract{}
	ctx := newMockContext("Org1MSP", map[string]string{
		"role":   "worker",
		"idHash": "worker-1",
	})
	seedWage(ctx.stub, "WAGE001", "worker-1", "employer-1", 100, "2025-01-10T00:00:00Z")
	seedWage(ctx.stub, "WAGE002", "worker-2", "employer-1", 200, "2025-01-11T00:00:00Z")
	seedWage(ctx.stub, "WAGE003", "worker-1", "employer-2", 300, "2025-01-12T00:00:00Z")

	records, err := contract.QueryWagesByWorker(ctx, "worker-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records for worker-1, got %d", len(records))
	}

	// Same certificate querying someone else's hash is denied.
	_, err = contract.QueryWagesByWorker(ctx, "worker-2")
	if err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Fatalf("expected self-access denial, got %v", err)
	}
}

func TestQueryWagesByWorker_EmptyResultIsEmptySlice(t *testing.T) {
	contract := &WageLedgerContract{}
	ctx := roleContext("auditor", "Org1MSP")

	records, err := contract.QueryWagesByWorker(ctx, "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestQueryWagesByEmployer(t *testing.T) {
	contract := &WageLedgerContract{}
	ctx := roleContext("government_official", "Org1MSP")
	seedWage(ctx.stub, "WAGE001", "worker-1", "employer-1", 100, "2025-01-10T00:00:00Z")
	seedWage(ctx.stub, "WAGE002", "worker-2", "employer-1", 200, "2025-01-11T00:00:00Z")
	seedWage(ctx.stub, "WAGE003", "worker-1", "employer-2", 300, "2025-01-12T00:00:00Z")

	records, err := contract.QueryWagesByEmployer(ctx, "employer-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records for employer-1, got %d", len(records))
	}
}

func TestCalculateTotalIncome_DateWindow(t *testing.T) {
	contract := &WageLedgerContract{}
	ctx := roleContext("auditor", "Org1MSP")
	seedWage(ctx.stub, "WAGE001", "worker-1", "employer-1", 100, "2025-01-10T00:00:00Z")
	seedWage(ctx.stub, "WAGE002", "worker-1", "employer-1", 200, "2025-02-10T00:00:00Z")
	seedWage(ctx.stub, "WAGE003", "worker-1", "employer-1", 400, "2025-03-10T00:00:00Z")

	total, err := contract.CalculateTotalIncome(ctx, "worker-1", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 700 {
		t.Fatalf("all-time total expected 700, got %.2f", total)
	}

	total, err = contract.CalculateTotalIncome(ctx, "worker-1", "2025-02-01", "2025-02-28")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 200 {
		t.Fatalf("windowed total expected 200, got %.2f", total)
	}

	// A single bound does not activate filtering.
	total, err = contract.CalculateTotalIncome(ctx, "worker-1", "2025-02-01", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 700 {
		t.Fatalf("single-bound total expected 700, got %.2f", total)
	}
}

func TestBatchRecordWages_PartialSuccess(t *testing.T) {
	contract := &WageLedgerContract{}
	ctx := roleContext("employer", "Org2MSP")
	seedWage(ctx.stub, "WAGE002", "worker-9", "employer-9", 50, "2025-01-01T00:00:00Z")

	batch := `[
		{"wageId":"WAGE001","workerIdHash":"worker-1","employerIdHash":"employer-1","amount":100},
		{"wageId":"WAGE002","workerIdHash":"worker-2","employerIdHash":"employer-1","amount":200},
		{"wageId":"","workerIdHash":"worker-3","employerIdHash":"employer-1","amount":300},
		{"wageId":"WAGE004","workerIdHash":"worker-4","employerIdHash":"employer-1","amount":-10},
		{"wageId":"WAGE005","workerIdHash":"worker-5","employerIdHash":"employer-1","amount":500}
	]`
	recorded, err := contract.BatchRecordWages(ctx, batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recorded) != 2 {
		t.Fatalf("expected 2 recorded, got %d: %v", len(recorded), recorded)
	}
	if recorded[0] != "WAGE001" || recorded[1] != "WAGE005" {
		t.Fatalf("unexpected recorded IDs: %v", recorded)
	}

	// The duplicate must keep its original value.
	var existing model.WageRecord
	if err := json.Unmarshal(ctx.stub.state["WAGE002"], &existing); err != nil {
		t.Fatalf("unmarshal existing: %v", err)
	}
	if existing.Amount != 50 {
		t.Fatalf("existing wage overwritten: %+v", existing)
	}
}

func TestBatchRecordWages_PerItemChecks(t *testing.T) {
	contract := &WageLedgerContract{}
	ctx := newMockContext("Org2MSP", map[string]string{
		"role":          "employer",
		"maxWageAmount": "1000",
	})

	batch := `[
		{"wageId":"WAGE001","workerIdHash":"worker-1","employerIdHash":"employer-1","amount":500},
		{"wageId":"WAGE002","workerIdHash":"worker-2","employerIdHash":"","amount":300},
		{"wageId":"WAGE003","workerIdHash":"worker-3","employerIdHash":"employer-1","amount":5000}
	]`
	recorded, err := contract.BatchRecordWages(ctx, batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recorded) != 1 || recorded[0] != "WAGE001" {
		t.Fatalf("expected only WAGE001 recorded, got %v", recorded)
	}
	if ctx.stub.state["WAGE002"] != nil {
		t.Fatal("missing employer hash must be skipped")
	}
	if ctx.stub.state["WAGE003"] != nil {
		t.Fatal("amount above maxWageAmount must be skipped")
	}
}

func TestBatchRecordWages_RejectsEmptyAndInvalidJSON(t *testing.T) {
	contract := &WageLedgerContract{}
	ctx := roleContext("employer", "Org2MSP")

	if _, err := contract.BatchRecordWages(ctx, "[]"); err == nil {
		t.Fatal("empty batch must be rejected")
	}
	if _, err := contract.BatchRecordWages(ctx, "{not json"); err == nil {
		t.Fatal("invalid JSON must be rejected")
	}
}

func TestGetWorkerIncomeHistory_MonthlyBuckets(t *testing.T) {
	contract := &WageLedgerContract{}
	ctx := roleContext("auditor", "Org1MSP")
	seedWage(ctx.stub, "WAGE001", "worker-1", "employer-1", 100, "2025-05-01T00:00:00Z")
	seedWage(ctx.stub, "WAGE002", "worker-1", "employer-1", 150, "2025-05-20T00:00:00Z")
	seedWage(ctx.stub, "WAGE003", "worker-1", "employer-1", 400, "2025-04-10T00:00:00Z")
	seedWage(ctx.stub, "WAGE004", "worker-1", "employer-1", 999, "2023-01-10T00:00:00Z")

	history, err := contract.GetWorkerIncomeHistory(ctx, "worker-1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 monthly buckets, got %d", len(history))
	}
	if history[0].Month != "2025-05" || history[0].TotalIncome != 250 || history[0].WageCount != 2 {
		t.Fatalf("newest bucket wrong: %+v", history[0])
	}
	if history[1].Month != "2025-04" || history[1].TotalIncome != 400 {
		t.Fatalf("older bucket wrong: %+v", history[1])
	}
	if history[2].Month != "2023-01" || history[2].TotalIncome != 999 {
		t.Fatalf("oldest bucket wrong: %+v", history[2])
	}
}

func TestGetWorkerIncomeHistory_TruncatesToRequestedMonths(t *testing.T) {
	contract := &WageLedgerContract{}
	ctx := roleContext("auditor", "Org1MSP")
	seedWage(ctx.stub, "WAGE001", "worker-1", "employer-1", 100, "2025-05-01T00:00:00Z")
	seedWage(ctx.stub, "WAGE002", "worker-1", "employer-1", 400, "2025-04-10T00:00:00Z")
	seedWage(ctx.stub, "WAGE003", "worker-1", "employer-1", 999, "2023-01-10T00:00:00Z")

	history, err := contract.GetWorkerIncomeHistory(ctx, "worker-1", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected truncation to 2 buckets, got %d", len(history))
	}
	if history[0].Month != "2025-05" || history[1].Month != "2025-04" {
		t.Fatalf("truncation must keep the newest months: %+v", history)
	}
}

func TestGetWorkerIncomeHistory_OldWagesStillBucketed(t *testing.T) {
	contract := &WageLedgerContract{}
	ctx := roleContext("auditor", "Org1MSP")
	// All wages predate the mock tx time (2025-06-15) by years; the window
	// counts months with data, not calendar distance.
	seedWage(ctx.stub, "WAGE001", "worker-1", "employer-1", 100, "2022-11-05T00:00:00Z")
	seedWage(ctx.stub, "WAGE002", "worker-1", "employer-1", 200, "2022-12-05T00:00:00Z")

	history, err := contract.GetWorkerIncomeHistory(ctx, "worker-1", 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 buckets from old wages, got %d: %+v", len(history), history)
	}
	if history[0].Month != "2022-12" || history[1].Month != "2022-11" {
		t.Fatalf("buckets wrong: %+v", history)
	}
}

func TestQueryWageHistory_ReplaysModifications(t *testing.T) {
	contract := &WageLedgerContract{}
	ctx := roleContext("employer", "Org2MSP")

	if err := contract.RecordWage(ctx, "WAGE100", "worker-1", "employer-1", 100, "INR", "", "", "v1"); err != nil {
		t.Fatalf("record: %v", err)
	}

	history, err := contract.QueryWageHistory(ctx, "WAGE100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 modification, got %d", len(history))
	}
	if history[0]["txId"] != ctx.stub.txID {
		t.Fatalf("history txId mismatch: %v", history[0])
	}
}

func TestWageExists(t *testing.T) {
	contract := &WageLedgerContract{}
	ctx := roleContext("worker", "Org1MSP")
	seedWage(ctx.stub, "WAGE001", "worker-1", "employer-1", 100, "2025-01-10T00:00:00Z")

	exists, err := contract.WageExists(ctx, "WAGE001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Fatal("WAGE001 should exist")
	}
	exists, err = contract.WageExists(ctx, "WAGE999")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Fatal("WAGE999 should not exist")
	}
}
