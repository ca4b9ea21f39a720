package contract

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// txTimestamp returns the transaction proposal timestamp in RFC3339 form.
// Every peer simulating the transaction sees the same value, so this is the
// only time source the contract uses; there is deliberately no wall-clock
// fallback, a missing proposal timestamp aborts the invocation.
func (s *WageLedgerContract) txTimestamp(ctx contractapi.TransactionContextInterface) (string, error) {
	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return "", fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	if ts == nil {
		return "", errors.New("transaction timestamp not available")
	}
	return ts.AsTime().UTC().Format(time.RFC3339), nil
}

// txTime is the time.Time form of txTimestamp, used for compact key stamps.
func (s *WageLedgerContract) txTime(ctx contractapi.TransactionContextInterface) (time.Time, error) {
	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get transaction timestamp: %w", err)
	}
	if ts == nil {
		return time.Time{}, errors.New("transaction timestamp not available")
	}
	return ts.AsTime().UTC(), nil
}

// parseFlexibleDate accepts either a bare date (YYYY-MM-DD) or a full RFC3339
// timestamp.
func parseFlexibleDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if t, err := time.Parse("2006-01-02", trimmed); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date '%s' (expected YYYY-MM-DD or RFC3339): %w", value, err)
	}
	return t, nil
}

// inDateWindow reports whether an RFC3339 record timestamp falls inside the
// window. Filtering is active only when both bounds are supplied; records with
// unparsable timestamps are excluded while filtering is active.
func inDateWindow(recordTimestamp, startDate, endDate string) bool {
	if startDate == "" || endDate == "" {
		return true
	}
	recordTime, err := time.Parse(time.RFC3339, recordTimestamp)
	if err != nil {
		return false
	}
	start, err := parseFlexibleDate(startDate)
	if err != nil {
		return false
	}
	end, err := parseFlexibleDate(endDate)
	if err != nil {
		return false
	}
	return !recordTime.Before(start) && !recordTime.After(end)
}

// --- Key helpers ---

func upiKey(txID string) string {
	return upiKeyPrefix + txID
}

func userKey(userIDHash string) string {
	return userKeyPrefix + userIDHash
}

func thresholdKey(state, category string) string {
	return fmt.Sprintf("%s%s_%s", thresholdKeyPrefix, state, category)
}

func anomalyKey(wageID string) string {
	return anomalyKeyPrefix + wageID
}

// rangeEnd is the exclusive upper bound for a prefix scan ('~' sorts after
// every character used in ledger keys).
func rangeEnd(prefix string) string {
	return prefix + "~"
}

// emitEvent sets a chaincode event; failures are logged, never fatal.
func (s *WageLedgerContract) emitEvent(ctx contractapi.TransactionContextInterface, name string, payload []byte) {
	if err := ctx.GetStub().SetEvent(name, payload); err != nil {
		logger.Warningf("Failed to emit event '%s': %v", name, err)
	}
}

// validateRequiredString rejects empty or oversized inputs.
func validateRequiredString(input, field string, max int) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if len(input) > max {
		return fmt.Errorf("%s exceeds max length %d", field, max)
	}
	return nil
}

const maxStringInputLength = 256
