package contract

import (
	"encoding/json"
	"fmt"
	"time"

	"wagetrace/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var auditLogger = flogging.MustGetLogger("wagetrace.audit")

// Audit event types.
const (
	EventAccessGranted = "ACCESS_GRANTED"
	EventAccessDenied  = "ACCESS_DENIED"
	EventDataRead      = "DATA_READ"
	EventDataWrite     = "DATA_WRITE"

	EventUserRegistered   = "USER_REGISTERED"
	EventUserUpdated      = "USER_UPDATED"
	EventAnomalyFlagged   = "ANOMALY_FLAGGED"
	EventAnomalyReviewed  = "ANOMALY_REVIEWED"
	EventThresholdChanged = "THRESHOLD_CHANGED"
	EventReportGenerated  = "REPORT_GENERATED"
)

// Risk levels attached to audit entries.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

var highRiskFunctions = map[string]bool{
	"SetPovertyThreshold": true,
	"UpdateUserStatus":    true,
	"RegisterUser":        true,
	"InitLedger":          true,
}

var mediumRiskFunctions = map[string]bool{
	"RecordWage":               true,
	"BatchRecordWages":         true,
	"RecordUPITransaction":     true,
	"FlagAnomaly":              true,
	"UpdateAnomalyStatus":      true,
	"GenerateComplianceReport": true,
}

// DetermineRiskLevel classifies an audit entry by function and outcome.
// Denials on high-risk functions are critical.
func DetermineRiskLevel(eventType, function, status string) string {
	if status == "denied" || eventType == EventAccessDenied {
		if highRiskFunctions[function] {
			return RiskCritical
		}
		return RiskHigh
	}
	if highRiskFunctions[function] {
		return RiskHigh
	}
	if mediumRiskFunctions[function] {
		return RiskMedium
	}
	return RiskLow
}

// logAccess writes one audit entry keyed by transaction time and ID. Both
// derive from the transaction proposal, so every endorsing peer produces the
// same entry. On query-class invocations the write-set is discarded by the
// peer, so only submitted transactions persist their trail.
func (s *WageLedgerContract) logAccess(ctx contractapi.TransactionContextInterface, eventType, function, targetID, targetType, status, details string) {
	identity, err := NewAccessManager(ctx).ExtractIdentity()
	callerID, callerMSP, callerRole := "unknown", "unknown", "unknown"
	if err == nil && identity != nil {
		callerID = identity.ID
		callerMSP = identity.MSPID
		callerRole = identity.Role
	}

	now, err := s.txTime(ctx)
	if err != nil {
		auditLogger.Warningf("Skipping audit entry for %s: %v", function, err)
		return
	}
	txID := ctx.GetStub().GetTxID()
	shortTxID := txID
	if len(shortTxID) > 8 {
		shortTxID = shortTxID[:8]
	}
	logID := fmt.Sprintf("%s%s_%s", auditKeyPrefix, now.Format("20060102150405"), shortTxID)

	riskLevel := DetermineRiskLevel(eventType, function, status)
	entry := model.AuditLog{
		DocType:    "audit_log",
		LogID:      logID,
		Timestamp:  now.Format(time.RFC3339),
		EventType:  eventType,
		Function:   function,
		CallerID:   callerID,
		CallerMSP:  callerMSP,
		CallerRole: callerRole,
		TargetID:   targetID,
		TargetType: targetType,
		Status:     status,
		Details:    details,
		TxID:       txID,
		RiskLevel:  riskLevel,
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		auditLogger.Warningf("Failed to marshal audit entry for %s: %v", function, err)
		return
	}
	if err := ctx.GetStub().PutState(logID, payload); err != nil {
		auditLogger.Warningf("Failed to store audit entry %s: %v", logID, err)
		return
	}

	if riskLevel == RiskHigh || riskLevel == RiskCritical {
		eventData, _ := json.Marshal(map[string]string{
			"logId":     logID,
			"eventType": eventType,
			"riskLevel": riskLevel,
			"function":  function,
			"callerId":  callerID,
		})
		s.emitEvent(ctx, "HighRiskActivity", eventData)
	}
}

func (s *WageLedgerContract) logAccessGranted(ctx contractapi.TransactionContextInterface, function, targetID, targetType string) {
	s.logAccess(ctx, EventAccessGranted, function, targetID, targetType, "success", "Access granted")
}

func (s *WageLedgerContract) logAccessDenied(ctx contractapi.TransactionContextInterface, function, targetID, targetType, reason string) {
	s.logAccess(ctx, EventAccessDenied, function, targetID, targetType, "denied", reason)
}

func (s *WageLedgerContract) logDataRead(ctx contractapi.TransactionContextInterface, function, targetID, targetType string) {
	s.logAccess(ctx, EventDataRead, function, targetID, targetType, "success", "Data read")
}

// --- Audit query surface ---

// GetAuditLogs retrieves audit entries matching the JSON query parameters.
func (s *WageLedgerContract) GetAuditLogs(ctx contractapi.TransactionContextInterface, queryJSON string) ([]*model.AuditLog, error) {
	identity, err := NewAccessManager(ctx).CheckAccess("GetAuditLogs")
	if err != nil {
		s.logAccessDenied(ctx, "GetAuditLogs", "all", "audit_log", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}

	var query model.AuditQuery
	if queryJSON != "" {
		if err := json.Unmarshal([]byte(queryJSON), &query); err != nil {
			return nil, fmt.Errorf("invalid audit query parameters: %w", err)
		}
	}
	if query.Limit <= 0 || query.Limit > 1000 {
		query.Limit = 100
	}

	iterator, err := ctx.GetStub().GetStateByRange(auditKeyPrefix, rangeEnd(auditKeyPrefix))
	if err != nil {
		return nil, fmt.Errorf("get audit logs: %w", err)
	}
	defer iterator.Close()

	logs := []*model.AuditLog{}
	for iterator.HasNext() {
		queryResponse, iterErr := iterator.Next()
		if iterErr != nil {
			auditLogger.Warningf("GetAuditLogs: iterator error: %v. Skipping.", iterErr)
			continue
		}
		var entry model.AuditLog
		if err := json.Unmarshal(queryResponse.Value, &entry); err != nil {
			continue
		}
		if !auditEntryMatches(&entry, &query) {
			continue
		}
		logs = append(logs, &entry)
		if len(logs) >= query.Limit {
			break
		}
	}

	auditLogger.Infof("User %s (role: %s) retrieved %d audit entries", identity.ID, identity.Role, len(logs))
	return logs, nil
}

func auditEntryMatches(entry *model.AuditLog, query *model.AuditQuery) bool {
	if query.CallerID != "" && entry.CallerID != query.CallerID {
		return false
	}
	if query.TargetID != "" && entry.TargetID != query.TargetID {
		return false
	}
	if query.Status != "" && entry.Status != query.Status {
		return false
	}
	if query.RiskLevel != "" && entry.RiskLevel != query.RiskLevel {
		return false
	}
	if query.StartDate != "" && query.EndDate != "" {
		logTime, err := time.Parse(time.RFC3339, entry.Timestamp)
		if err != nil {
			return false
		}
		start, errS := parseFlexibleDate(query.StartDate)
		end, errE := parseFlexibleDate(query.EndDate)
		if errS != nil || errE != nil {
			return false
		}
		if logTime.Before(start) || logTime.After(end.Add(24*time.Hour)) {
			return false
		}
	}
	if len(query.EventTypes) > 0 && !containsString(query.EventTypes, entry.EventType) {
		return false
	}
	return true
}

// GetAuditSummary aggregates audit statistics for a period.
func (s *WageLedgerContract) GetAuditSummary(ctx contractapi.TransactionContextInterface, startDate, endDate string) (*model.AuditSummary, error) {
	if _, err := NewAccessManager(ctx).CheckAccess("GetAuditSummary"); err != nil {
		s.logAccessDenied(ctx, "GetAuditSummary", "all", "audit_log", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}

	summary := &model.AuditSummary{
		EventsByType:      make(map[string]int),
		EventsByFunction:  make(map[string]int),
		EventsByRiskLevel: make(map[string]int),
		Period:            fmt.Sprintf("%s to %s", startDate, endDate),
	}

	iterator, err := ctx.GetStub().GetStateByRange(auditKeyPrefix, rangeEnd(auditKeyPrefix))
	if err != nil {
		return nil, fmt.Errorf("get audit logs: %w", err)
	}
	defer iterator.Close()

	window := model.AuditQuery{StartDate: startDate, EndDate: endDate}
	for iterator.HasNext() {
		queryResponse, iterErr := iterator.Next()
		if iterErr != nil {
			continue
		}
		var entry model.AuditLog
		if err := json.Unmarshal(queryResponse.Value, &entry); err != nil {
			continue
		}
		if !auditEntryMatches(&entry, &window) {
			continue
		}

		summary.TotalEvents++
		switch entry.Status {
		case "success":
			summary.SuccessCount++
		case "denied":
			summary.DeniedCount++
		default:
			summary.ErrorCount++
		}
		summary.EventsByType[entry.EventType]++
		summary.EventsByFunction[entry.Function]++
		summary.EventsByRiskLevel[entry.RiskLevel]++
	}

	return summary, nil
}

// GetUserActivityLog retrieves the audit trail for one caller. Non-privileged
// callers may only inspect their own activity.
func (s *WageLedgerContract) GetUserActivityLog(ctx contractapi.TransactionContextInterface, callerID string) ([]*model.AuditLog, error) {
	am := NewAccessManager(ctx)
	identity, err := am.CheckAccess("GetUserActivityLog")
	if err != nil {
		s.logAccessDenied(ctx, "GetUserActivityLog", callerID, "audit_log", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}
	if err := CheckSelfAccess(identity, "GetUserActivityLog", callerID); err != nil {
		s.logAccessDenied(ctx, "GetUserActivityLog", callerID, "audit_log", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}

	iterator, err := ctx.GetStub().GetStateByRange(auditKeyPrefix, rangeEnd(auditKeyPrefix))
	if err != nil {
		return nil, fmt.Errorf("get audit logs: %w", err)
	}
	defer iterator.Close()

	logs := []*model.AuditLog{}
	for iterator.HasNext() {
		queryResponse, iterErr := iterator.Next()
		if iterErr != nil {
			continue
		}
		var entry model.AuditLog
		if err := json.Unmarshal(queryResponse.Value, &entry); err != nil {
			continue
		}
		if entry.CallerID != callerID {
			continue
		}
		logs = append(logs, &entry)
		if len(logs) >= 500 {
			break
		}
	}

	auditLogger.Infof("User %s retrieved %d of their own audit entries", identity.ID, len(logs))
	return logs, nil
}

// GetHighRiskEvents retrieves high and critical risk audit entries.
func (s *WageLedgerContract) GetHighRiskEvents(ctx contractapi.TransactionContextInterface, limit int) ([]*model.AuditLog, error) {
	identity, err := NewAccessManager(ctx).CheckAccess("GetHighRiskEvents")
	if err != nil {
		s.logAccessDenied(ctx, "GetHighRiskEvents", "all", "audit_log", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}

	if limit <= 0 || limit > 500 {
		limit = 100
	}

	iterator, err := ctx.GetStub().GetStateByRange(auditKeyPrefix, rangeEnd(auditKeyPrefix))
	if err != nil {
		return nil, fmt.Errorf("get audit logs: %w", err)
	}
	defer iterator.Close()

	logs := []*model.AuditLog{}
	for iterator.HasNext() {
		queryResponse, iterErr := iterator.Next()
		if iterErr != nil {
			continue
		}
		var entry model.AuditLog
		if err := json.Unmarshal(queryResponse.Value, &entry); err != nil {
			continue
		}
		if entry.RiskLevel != RiskHigh && entry.RiskLevel != RiskCritical {
			continue
		}
		logs = append(logs, &entry)
		if len(logs) >= limit {
			break
		}
	}

	auditLogger.Infof("User %s accessed %d high-risk events", identity.ID, len(logs))
	return logs, nil
}

// GetAccessDenials retrieves denial events for security monitoring.
func (s *WageLedgerContract) GetAccessDenials(ctx contractapi.TransactionContextInterface, startDate, endDate string) ([]*model.AuditLog, error) {
	identity, err := NewAccessManager(ctx).CheckAccess("GetAccessDenials")
	if err != nil {
		s.logAccessDenied(ctx, "GetAccessDenials", "all", "audit_log", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}

	iterator, err := ctx.GetStub().GetStateByRange(auditKeyPrefix, rangeEnd(auditKeyPrefix))
	if err != nil {
		return nil, fmt.Errorf("get audit logs: %w", err)
	}
	defer iterator.Close()

	window := model.AuditQuery{StartDate: startDate, EndDate: endDate}
	logs := []*model.AuditLog{}
	for iterator.HasNext() {
		queryResponse, iterErr := iterator.Next()
		if iterErr != nil {
			continue
		}
		var entry model.AuditLog
		if err := json.Unmarshal(queryResponse.Value, &entry); err != nil {
			continue
		}
		if entry.EventType != EventAccessDenied && entry.Status != "denied" {
			continue
		}
		if !auditEntryMatches(&entry, &window) {
			continue
		}
		logs = append(logs, &entry)
	}

	auditLogger.Infof("User %s retrieved %d access denial records", identity.ID, len(logs))
	return logs, nil
}
