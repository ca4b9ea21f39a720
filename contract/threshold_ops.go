package contract

import (
	"encoding/json"
	"fmt"
	"strconv"

	"wagetrace/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// SetPovertyThreshold stores the BPL or APL income cutoff for a state. The
// amount arrives as a string so off-chain callers control its decimal form.
// An empty setBy falls back to the caller's enrollment ID.
func (s *WageLedgerContract) SetPovertyThreshold(ctx contractapi.TransactionContextInterface, state, category, amountStr, setBy string) error {
	am := NewAccessManager(ctx)
	identity, err := am.CheckAccess("SetPovertyThreshold")
	if err != nil {
		s.logAccessDenied(ctx, "SetPovertyThreshold", state, "threshold", err.Error())
		return fmt.Errorf("access denied: %w", err)
	}

	if err := validateRequiredString(state, "state", maxStringInputLength); err != nil {
		return err
	}
	thresholdCategory := model.ThresholdCategory(category)
	if thresholdCategory != model.CategoryBPL && thresholdCategory != model.CategoryAPL {
		return fmt.Errorf("invalid category '%s' (expected BPL or APL)", category)
	}
	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		return fmt.Errorf("invalid threshold amount '%s': %w", amountStr, err)
	}
	if amount <= 0 {
		return fmt.Errorf("threshold amount must be positive, got %.2f", amount)
	}

	now, err := s.txTimestamp(ctx)
	if err != nil {
		return err
	}
	if setBy == "" {
		setBy = identity.ID
	}

	threshold := model.PovertyThreshold{
		DocType:   "threshold",
		State:     state,
		Category:  thresholdCategory,
		Amount:    amount,
		SetBy:     setBy,
		UpdatedAt: now,
	}
	payload, err := json.Marshal(threshold)
	if err != nil {
		return fmt.Errorf("marshal threshold: %w", err)
	}
	key := thresholdKey(state, category)
	if err := ctx.GetStub().PutState(key, payload); err != nil {
		return fmt.Errorf("put threshold %s: %w", key, err)
	}

	s.logAccess(ctx, EventThresholdChanged, "SetPovertyThreshold", key, "threshold", "success",
		fmt.Sprintf("%s threshold for %s set to %.2f", category, state, amount))
	eventData, _ := json.Marshal(threshold)
	s.emitEvent(ctx, "PovertyThresholdUpdated", eventData)
	logger.Infof("Threshold %s/%s set to %.2f by %s", state, category, amount, identity.ID)
	return nil
}

// GetPovertyThreshold retrieves the threshold for a state, falling back to
// the DEFAULT state entry when the state has none of its own.
func (s *WageLedgerContract) GetPovertyThreshold(ctx contractapi.TransactionContextInterface, state, category string) (*model.PovertyThreshold, error) {
	if _, err := NewAccessManager(ctx).CheckAccess("GetPovertyThreshold"); err != nil {
		s.logAccessDenied(ctx, "GetPovertyThreshold", state, "threshold", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}
	return s.loadThreshold(ctx, state, category)
}

func (s *WageLedgerContract) loadThreshold(ctx contractapi.TransactionContextInterface, state, category string) (*model.PovertyThreshold, error) {
	data, err := ctx.GetStub().GetState(thresholdKey(state, category))
	if err != nil {
		return nil, fmt.Errorf("get threshold for %s/%s: %w", state, category, err)
	}
	if data == nil && state != defaultThresholdState {
		data, err = ctx.GetStub().GetState(thresholdKey(defaultThresholdState, category))
		if err != nil {
			return nil, fmt.Errorf("get default threshold for %s: %w", category, err)
		}
	}
	if data == nil {
		return nil, fmt.Errorf("no %s threshold found for state %s or DEFAULT", category, state)
	}

	var threshold model.PovertyThreshold
	if err := json.Unmarshal(data, &threshold); err != nil {
		return nil, fmt.Errorf("unmarshal threshold: %w", err)
	}
	return &threshold, nil
}

// CheckPovertyStatus classifies a worker as BPL or APL by comparing summed
// income inside the window against the state's BPL threshold. When no
// threshold record exists at all, a built-in cutoff keeps classification
// available.
func (s *WageLedgerContract) CheckPovertyStatus(ctx contractapi.TransactionContextInterface, workerIDHash, state, startDate, endDate string) (*model.PovertyStatusResult, error) {
	am := NewAccessManager(ctx)
	identity, err := am.CheckAccess("CheckPovertyStatus")
	if err != nil {
		s.logAccessDenied(ctx, "CheckPovertyStatus", workerIDHash, "threshold", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}
	if err := CheckSelfAccess(identity, "CheckPovertyStatus", workerIDHash); err != nil {
		s.logAccessDenied(ctx, "CheckPovertyStatus", workerIDHash, "threshold", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}

	if state == "" {
		state = defaultThresholdState
	}

	records, err := s.scanWages(ctx, func(record *model.WageRecord) bool {
		return record.WorkerIDHash == workerIDHash && inDateWindow(record.Timestamp, startDate, endDate)
	})
	if err != nil {
		return nil, err
	}
	var totalIncome float64
	for _, record := range records {
		totalIncome += record.Amount
	}

	cutoff := float64(defaultBPLThreshold)
	if threshold, err := s.loadThreshold(ctx, state, string(model.CategoryBPL)); err == nil {
		cutoff = threshold.Amount
	} else {
		logger.Warningf("No BPL threshold for state %s, using built-in cutoff %.2f", state, cutoff)
	}

	status := model.CategoryAPL
	if totalIncome < cutoff {
		status = model.CategoryBPL
	}

	period := "all-time"
	if startDate != "" && endDate != "" {
		period = fmt.Sprintf("%s to %s", startDate, endDate)
	}

	result := &model.PovertyStatusResult{
		Status:      status,
		TotalIncome: totalIncome,
		Threshold:   cutoff,
		State:       state,
		Period:      period,
	}

	s.logDataRead(ctx, "CheckPovertyStatus", workerIDHash, "threshold")
	eventData, _ := json.Marshal(map[string]interface{}{
		"workerIdHash": workerIDHash,
		"status":       status,
		"income":       totalIncome,
	})
	s.emitEvent(ctx, "PovertyStatusChecked", eventData)
	return result, nil
}
