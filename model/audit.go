package model

// AuditLog is an immutable audit trail entry written alongside access
// decisions and data operations, stored under AUDIT_<txTime>_<txId>.
type AuditLog struct {
	DocType    string `json:"docType"` // "audit_log"
	LogID      string `json:"logId"`
	Timestamp  string `json:"timestamp"`
	EventType  string `json:"eventType"`
	Function   string `json:"function"`
	CallerID   string `json:"callerId"`
	CallerMSP  string `json:"callerMsp"`
	CallerRole string `json:"callerRole"`
	TargetID   string `json:"targetId"`
	TargetType string `json:"targetType"`
	Status     string `json:"status"` // success, denied, error
	Details    string `json:"details"`
	TxID       string `json:"txId"`
	RiskLevel  string `json:"riskLevel"` // low, medium, high, critical
}

// AuditQuery carries filter parameters for audit log retrieval.
type AuditQuery struct {
	StartDate  string   `json:"startDate"`
	EndDate    string   `json:"endDate"`
	EventTypes []string `json:"eventTypes"`
	CallerID   string   `json:"callerId"`
	TargetID   string   `json:"targetId"`
	Status     string   `json:"status"`
	RiskLevel  string   `json:"riskLevel"`
	Limit      int      `json:"limit"`
}

// AuditSummary aggregates audit statistics over a period.
type AuditSummary struct {
	TotalEvents       int            `json:"totalEvents"`
	SuccessCount      int            `json:"successCount"`
	DeniedCount       int            `json:"deniedCount"`
	ErrorCount        int            `json:"errorCount"`
	EventsByType      map[string]int `json:"eventsByType"`
	EventsByFunction  map[string]int `json:"eventsByFunction"`
	EventsByRiskLevel map[string]int `json:"eventsByRiskLevel"`
	Period            string         `json:"period"`
}
