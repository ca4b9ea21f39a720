package contract

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"wagetrace/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// RecordWage writes a new immutable wage record to the ledger. The wage ID
// must be unused; the record timestamp defaults to the transaction proposal
// time when the caller supplies none.
func (s *WageLedgerContract) RecordWage(ctx contractapi.TransactionContextInterface, wageID, workerIDHash, employerIDHash string, amount float64, currency, jobType, timestamp, policyVersion string) error {
	am := NewAccessManager(ctx)
	identity, err := am.CheckAccess("RecordWage")
	if err != nil {
		s.logAccessDenied(ctx, "RecordWage", wageID, "wage", err.Error())
		return fmt.Errorf("access denied: %w", err)
	}

	if err := validateRequiredString(wageID, "wageId", maxStringInputLength); err != nil {
		return err
	}
	if err := validateRequiredString(workerIDHash, "workerIdHash", maxStringInputLength); err != nil {
		return err
	}
	if err := validateRequiredString(employerIDHash, "employerIdHash", maxStringInputLength); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("wage amount must be positive, got %.2f", amount)
	}
	if currency == "" {
		currency = "INR"
	}
	if err := am.ValidateWageAmountLimit(amount); err != nil {
		return err
	}

	exists, err := s.wageExists(ctx, wageID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("wage record %s already exists", wageID)
	}

	if timestamp == "" {
		timestamp, err = s.txTimestamp(ctx)
		if err != nil {
			return err
		}
	}

	record := model.WageRecord{
		DocType:        "wage",
		WageID:         wageID,
		WorkerIDHash:   workerIDHash,
		EmployerIDHash: employerIDHash,
		Amount:         amount,
		Currency:       currency,
		JobType:        jobType,
		Timestamp:      timestamp,
		PolicyVersion:  policyVersion,
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal wage record: %w", err)
	}
	if err := ctx.GetStub().PutState(wageID, payload); err != nil {
		return fmt.Errorf("put wage record %s: %w", wageID, err)
	}

	s.logAccess(ctx, EventDataWrite, "RecordWage", wageID, "wage", "success",
		fmt.Sprintf("Wage of %.2f %s recorded for worker %s", amount, currency, workerIDHash))
	s.emitEvent(ctx, "WageRecorded", []byte(wageID))
	logger.Infof("Wage %s recorded by %s (role: %s)", wageID, identity.ID, identity.Role)
	return nil
}

// ReadWage retrieves a wage record by ID.
func (s *WageLedgerContract) ReadWage(ctx contractapi.TransactionContextInterface, wageID string) (*model.WageRecord, error) {
	if _, err := NewAccessManager(ctx).CheckAccess("ReadWage"); err != nil {
		s.logAccessDenied(ctx, "ReadWage", wageID, "wage", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}

	data, err := ctx.GetStub().GetState(wageID)
	if err != nil {
		return nil, fmt.Errorf("get wage record %s: %w", wageID, err)
	}
	if data == nil {
		return nil, fmt.Errorf("wage record %s does not exist", wageID)
	}

	var record model.WageRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal wage record %s: %w", wageID, err)
	}

	s.logDataRead(ctx, "ReadWage", wageID, "wage")
	return &record, nil
}

// WageExists reports whether a wage record is present on the ledger.
func (s *WageLedgerContract) WageExists(ctx contractapi.TransactionContextInterface, wageID string) (bool, error) {
	if _, err := NewAccessManager(ctx).CheckAccess("WageExists"); err != nil {
		return false, fmt.Errorf("access denied: %w", err)
	}
	return s.wageExists(ctx, wageID)
}

func (s *WageLedgerContract) wageExists(ctx contractapi.TransactionContextInterface, wageID string) (bool, error) {
	data, err := ctx.GetStub().GetState(wageID)
	if err != nil {
		return false, fmt.Errorf("read wage record %s: %w", wageID, err)
	}
	return data != nil, nil
}

// QueryWageHistory replays the full modification history of a wage record
// from the blockchain, including deletion markers.
func (s *WageLedgerContract) QueryWageHistory(ctx contractapi.TransactionContextInterface, wageID string) ([]map[string]interface{}, error) {
	if _, err := NewAccessManager(ctx).CheckAccess("QueryWageHistory"); err != nil {
		s.logAccessDenied(ctx, "QueryWageHistory", wageID, "wage", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}

	iterator, err := ctx.GetStub().GetHistoryForKey(wageID)
	if err != nil {
		return nil, fmt.Errorf("get history for wage %s: %w", wageID, err)
	}
	defer iterator.Close()

	history := []map[string]interface{}{}
	for iterator.HasNext() {
		modification, err := iterator.Next()
		if err != nil {
			return nil, fmt.Errorf("iterate history for wage %s: %w", wageID, err)
		}
		entry := map[string]interface{}{
			"txId":      modification.TxId,
			"isDelete":  modification.IsDelete,
			"timestamp": modification.Timestamp.AsTime().UTC().Format(time.RFC3339),
		}
		if !modification.IsDelete && len(modification.Value) > 0 {
			var record model.WageRecord
			if err := json.Unmarshal(modification.Value, &record); err == nil {
				entry["record"] = record
			}
		}
		history = append(history, entry)
	}

	s.logDataRead(ctx, "QueryWageHistory", wageID, "wage")
	return history, nil
}

// QueryWagesByWorker returns all wage records for a worker. Non-privileged
// callers may only query their own hash.
func (s *WageLedgerContract) QueryWagesByWorker(ctx contractapi.TransactionContextInterface, workerIDHash string) ([]*model.WageRecord, error) {
	am := NewAccessManager(ctx)
	identity, err := am.CheckAccess("QueryWagesByWorker")
	if err != nil {
		s.logAccessDenied(ctx, "QueryWagesByWorker", workerIDHash, "wage", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}
	if err := CheckSelfAccess(identity, "QueryWagesByWorker", workerIDHash); err != nil {
		s.logAccessDenied(ctx, "QueryWagesByWorker", workerIDHash, "wage", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}

	records, err := s.scanWages(ctx, func(record *model.WageRecord) bool {
		return record.WorkerIDHash == workerIDHash
	})
	if err != nil {
		return nil, err
	}

	s.logDataRead(ctx, "QueryWagesByWorker", workerIDHash, "wage")
	return records, nil
}

// QueryWagesByEmployer returns all wage records paid by an employer.
func (s *WageLedgerContract) QueryWagesByEmployer(ctx contractapi.TransactionContextInterface, employerIDHash string) ([]*model.WageRecord, error) {
	am := NewAccessManager(ctx)
	identity, err := am.CheckAccess("QueryWagesByEmployer")
	if err != nil {
		s.logAccessDenied(ctx, "QueryWagesByEmployer", employerIDHash, "wage", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}
	if err := CheckSelfAccess(identity, "QueryWagesByEmployer", employerIDHash); err != nil {
		s.logAccessDenied(ctx, "QueryWagesByEmployer", employerIDHash, "wage", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}

	records, err := s.scanWages(ctx, func(record *model.WageRecord) bool {
		return record.EmployerIDHash == employerIDHash
	})
	if err != nil {
		return nil, err
	}

	s.logDataRead(ctx, "QueryWagesByEmployer", employerIDHash, "wage")
	return records, nil
}

// scanWages range-scans the wage namespace and keeps records the filter
// accepts. Entries that fail to unmarshal or carry another docType are
// skipped, not fatal.
func (s *WageLedgerContract) scanWages(ctx contractapi.TransactionContextInterface, keep func(*model.WageRecord) bool) ([]*model.WageRecord, error) {
	iterator, err := ctx.GetStub().GetStateByRange(wageKeyPrefix, rangeEnd(wageKeyPrefix))
	if err != nil {
		return nil, fmt.Errorf("scan wage records: %w", err)
	}
	defer iterator.Close()

	records := []*model.WageRecord{}
	for iterator.HasNext() {
		queryResponse, err := iterator.Next()
		if err != nil {
			logger.Warningf("scanWages: iterator error: %v. Skipping.", err)
			continue
		}
		var record model.WageRecord
		if err := json.Unmarshal(queryResponse.Value, &record); err != nil {
			continue
		}
		if record.DocType != "wage" {
			continue
		}
		if keep(&record) {
			records = append(records, &record)
		}
	}
	return records, nil
}

// BatchRecordWages records multiple wages from a JSON array in one
// transaction. Individual failures are logged and skipped; the returned slice
// holds the IDs that were actually written.
func (s *WageLedgerContract) BatchRecordWages(ctx contractapi.TransactionContextInterface, wagesJSON string) ([]string, error) {
	am := NewAccessManager(ctx)
	identity, err := am.CheckAccess("BatchRecordWages")
	if err != nil {
		s.logAccessDenied(ctx, "BatchRecordWages", "batch", "wage", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}

	var wages []model.WageRecord
	if err := json.Unmarshal([]byte(wagesJSON), &wages); err != nil {
		return nil, fmt.Errorf("invalid wages JSON: %w", err)
	}
	if len(wages) == 0 {
		return nil, fmt.Errorf("batch contains no wage records")
	}

	now, err := s.txTimestamp(ctx)
	if err != nil {
		return nil, err
	}

	recorded := []string{}
	for i := range wages {
		wage := &wages[i]
		if wage.WageID == "" || wage.WorkerIDHash == "" || wage.EmployerIDHash == "" || wage.Amount <= 0 {
			logger.Warningf("BatchRecordWages: skipping invalid entry %d (id=%q)", i, wage.WageID)
			continue
		}
		if err := am.ValidateWageAmountLimit(wage.Amount); err != nil {
			logger.Warningf("BatchRecordWages: skipping %s: %v", wage.WageID, err)
			continue
		}
		exists, err := s.wageExists(ctx, wage.WageID)
		if err != nil || exists {
			logger.Warningf("BatchRecordWages: skipping existing or unreadable wage %s", wage.WageID)
			continue
		}
		wage.DocType = "wage"
		if wage.Currency == "" {
			wage.Currency = "INR"
		}
		if wage.Timestamp == "" {
			wage.Timestamp = now
		}
		payload, err := json.Marshal(wage)
		if err != nil {
			logger.Warningf("BatchRecordWages: marshal failed for %s: %v", wage.WageID, err)
			continue
		}
		if err := ctx.GetStub().PutState(wage.WageID, payload); err != nil {
			logger.Warningf("BatchRecordWages: put failed for %s: %v", wage.WageID, err)
			continue
		}
		recorded = append(recorded, wage.WageID)
	}

	s.logAccess(ctx, EventDataWrite, "BatchRecordWages", "batch", "wage", "success",
		fmt.Sprintf("Recorded %d of %d wages", len(recorded), len(wages)))
	eventData, _ := json.Marshal(recorded)
	s.emitEvent(ctx, "WagesBatchRecorded", eventData)
	logger.Infof("Batch: %d of %d wages recorded by %s", len(recorded), len(wages), identity.ID)
	return recorded, nil
}

// CalculateTotalIncome sums a worker's wages inside an optional date window.
// The window applies only when both bounds are supplied.
func (s *WageLedgerContract) CalculateTotalIncome(ctx contractapi.TransactionContextInterface, workerIDHash, startDate, endDate string) (float64, error) {
	am := NewAccessManager(ctx)
	identity, err := am.CheckAccess("CalculateTotalIncome")
	if err != nil {
		s.logAccessDenied(ctx, "CalculateTotalIncome", workerIDHash, "wage", err.Error())
		return 0, fmt.Errorf("access denied: %w", err)
	}
	if err := CheckSelfAccess(identity, "CalculateTotalIncome", workerIDHash); err != nil {
		s.logAccessDenied(ctx, "CalculateTotalIncome", workerIDHash, "wage", err.Error())
		return 0, fmt.Errorf("access denied: %w", err)
	}

	records, err := s.scanWages(ctx, func(record *model.WageRecord) bool {
		return record.WorkerIDHash == workerIDHash && inDateWindow(record.Timestamp, startDate, endDate)
	})
	if err != nil {
		return 0, err
	}

	var total float64
	for _, record := range records {
		total += record.Amount
	}

	s.logDataRead(ctx, "CalculateTotalIncome", workerIDHash, "wage")
	return total, nil
}

// GetWorkerIncomeHistory groups a worker's wages into monthly buckets, newest
// month first, truncated to the months most recent buckets. The window is a
// count of distinct months, not a time cutoff, so sparse or old histories
// still fill it. months <= 0 falls back to 12.
func (s *WageLedgerContract) GetWorkerIncomeHistory(ctx contractapi.TransactionContextInterface, workerIDHash string, months int) ([]*model.MonthlyIncome, error) {
	am := NewAccessManager(ctx)
	identity, err := am.CheckAccess("GetWorkerIncomeHistory")
	if err != nil {
		s.logAccessDenied(ctx, "GetWorkerIncomeHistory", workerIDHash, "wage", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}
	if err := CheckSelfAccess(identity, "GetWorkerIncomeHistory", workerIDHash); err != nil {
		s.logAccessDenied(ctx, "GetWorkerIncomeHistory", workerIDHash, "wage", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}

	if months <= 0 {
		months = defaultHistoryMonths
	}

	records, err := s.scanWages(ctx, func(record *model.WageRecord) bool {
		if record.WorkerIDHash != workerIDHash {
			return false
		}
		_, err := time.Parse(time.RFC3339, record.Timestamp)
		return err == nil
	})
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]*model.MonthlyIncome)
	for _, record := range records {
		recordTime, _ := time.Parse(time.RFC3339, record.Timestamp)
		month := recordTime.Format("2006-01")
		bucket, ok := buckets[month]
		if !ok {
			bucket = &model.MonthlyIncome{Month: month}
			buckets[month] = bucket
		}
		bucket.TotalIncome += record.Amount
		bucket.WageCount++
	}

	history := []*model.MonthlyIncome{}
	for _, bucket := range buckets {
		history = append(history, bucket)
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].Month > history[j].Month
	})
	if len(history) > months {
		history = history[:months]
	}

	s.logDataRead(ctx, "GetWorkerIncomeHistory", workerIDHash, "wage")
	return history, nil
}
