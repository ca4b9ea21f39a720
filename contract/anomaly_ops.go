package contract

import (
	"encoding/json"
	"fmt"
	"strconv"

	"wagetrace/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

var validAnomalyStatuses = map[model.AnomalyStatus]bool{
	model.AnomalyPending:   true,
	model.AnomalyReviewed:  true,
	model.AnomalyDismissed: true,
	model.AnomalyConfirmed: true,
}

// FlagAnomaly marks a wage record as suspicious. One flag per wage record;
// re-flagging overwrites the previous flag and resets it to pending. An empty
// flaggedBy falls back to the caller's enrollment ID.
func (s *WageLedgerContract) FlagAnomaly(ctx contractapi.TransactionContextInterface, wageID string, anomalyScore float64, reason, flaggedBy string) error {
	am := NewAccessManager(ctx)
	identity, err := am.CheckAccess("FlagAnomaly")
	if err != nil {
		s.logAccessDenied(ctx, "FlagAnomaly", wageID, "anomaly", err.Error())
		return fmt.Errorf("access denied: %w", err)
	}

	if err := validateRequiredString(wageID, "wageId", maxStringInputLength); err != nil {
		return err
	}
	exists, err := s.wageExists(ctx, wageID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("cannot flag non-existent wage record %s", wageID)
	}

	now, err := s.txTimestamp(ctx)
	if err != nil {
		return err
	}
	if flaggedBy == "" {
		flaggedBy = identity.ID
	}

	anomaly := model.Anomaly{
		DocType:      "anomaly",
		WageID:       wageID,
		AnomalyScore: anomalyScore,
		Reason:       reason,
		FlaggedBy:    flaggedBy,
		Status:       model.AnomalyPending,
		Timestamp:    now,
	}
	payload, err := json.Marshal(anomaly)
	if err != nil {
		return fmt.Errorf("marshal anomaly: %w", err)
	}
	if err := ctx.GetStub().PutState(anomalyKey(wageID), payload); err != nil {
		return fmt.Errorf("put anomaly for wage %s: %w", wageID, err)
	}

	s.logAccess(ctx, EventAnomalyFlagged, "FlagAnomaly", wageID, "anomaly", "success",
		fmt.Sprintf("Flagged with score %.2f: %s", anomalyScore, reason))
	s.emitEvent(ctx, "AnomalyFlagged", []byte(wageID))
	logger.Infof("Wage %s flagged (score %.2f) by %s", wageID, anomalyScore, flaggedBy)
	return nil
}

// GetFlaggedWages returns anomalies with a score at or above the given
// threshold. An empty or unparsable threshold falls back to 0.5.
func (s *WageLedgerContract) GetFlaggedWages(ctx contractapi.TransactionContextInterface, minScoreStr string) ([]*model.Anomaly, error) {
	identity, err := NewAccessManager(ctx).CheckAccess("GetFlaggedWages")
	if err != nil {
		s.logAccessDenied(ctx, "GetFlaggedWages", "all", "anomaly", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}

	minScore := defaultAnomalyCutoff
	if minScoreStr != "" {
		if parsed, err := strconv.ParseFloat(minScoreStr, 64); err == nil {
			minScore = parsed
		} else {
			logger.Warningf("Ignoring unparsable minScore '%s', using %.2f", minScoreStr, minScore)
		}
	}

	iterator, err := ctx.GetStub().GetStateByRange(anomalyKeyPrefix, rangeEnd(anomalyKeyPrefix))
	if err != nil {
		return nil, fmt.Errorf("scan anomalies: %w", err)
	}
	defer iterator.Close()

	anomalies := []*model.Anomaly{}
	for iterator.HasNext() {
		queryResponse, err := iterator.Next()
		if err != nil {
			logger.Warningf("GetFlaggedWages: iterator error: %v. Skipping.", err)
			continue
		}
		var anomaly model.Anomaly
		if err := json.Unmarshal(queryResponse.Value, &anomaly); err != nil {
			continue
		}
		if anomaly.DocType != "anomaly" || anomaly.AnomalyScore < minScore {
			continue
		}
		anomalies = append(anomalies, &anomaly)
	}

	s.logDataRead(ctx, "GetFlaggedWages", "all", "anomaly")
	logger.Infof("User %s retrieved %d flagged wages (min score %.2f)", identity.ID, len(anomalies), minScore)
	return anomalies, nil
}

// UpdateAnomalyStatus moves a flag through its review lifecycle. An empty
// reviewedBy falls back to the caller's enrollment ID.
func (s *WageLedgerContract) UpdateAnomalyStatus(ctx contractapi.TransactionContextInterface, wageID, status, reviewedBy string) error {
	am := NewAccessManager(ctx)
	identity, err := am.CheckAccess("UpdateAnomalyStatus")
	if err != nil {
		s.logAccessDenied(ctx, "UpdateAnomalyStatus", wageID, "anomaly", err.Error())
		return fmt.Errorf("access denied: %w", err)
	}

	newStatus := model.AnomalyStatus(status)
	if !validAnomalyStatuses[newStatus] {
		return fmt.Errorf("invalid anomaly status '%s' (expected pending, reviewed, dismissed, or confirmed)", status)
	}

	key := anomalyKey(wageID)
	data, err := ctx.GetStub().GetState(key)
	if err != nil {
		return fmt.Errorf("get anomaly for wage %s: %w", wageID, err)
	}
	if data == nil {
		return fmt.Errorf("no anomaly flag exists for wage %s", wageID)
	}

	var anomaly model.Anomaly
	if err := json.Unmarshal(data, &anomaly); err != nil {
		return fmt.Errorf("unmarshal anomaly for wage %s: %w", wageID, err)
	}

	if reviewedBy == "" {
		reviewedBy = identity.ID
	}
	previous := anomaly.Status
	anomaly.Status = newStatus
	payload, err := json.Marshal(anomaly)
	if err != nil {
		return fmt.Errorf("marshal anomaly: %w", err)
	}
	if err := ctx.GetStub().PutState(key, payload); err != nil {
		return fmt.Errorf("put anomaly for wage %s: %w", wageID, err)
	}

	s.logAccess(ctx, EventAnomalyReviewed, "UpdateAnomalyStatus", wageID, "anomaly", "success",
		fmt.Sprintf("Status changed from %s to %s by %s", previous, newStatus, reviewedBy))
	s.emitEvent(ctx, "AnomalyStatusUpdated", []byte(wageID))
	logger.Infof("Anomaly on wage %s: %s -> %s by %s", wageID, previous, newStatus, reviewedBy)
	return nil
}
