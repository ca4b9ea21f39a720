package model

// UserRole defines the closed set of roles a registered user can hold.
type UserRole string

const (
	RoleWorker             UserRole = "worker"
	RoleEmployer           UserRole = "employer"
	RoleGovernmentOfficial UserRole = "government_official"
	RoleBankOfficer        UserRole = "bank_officer"
	RoleAuditor            UserRole = "auditor"
	RoleAdmin              UserRole = "admin"
)

// UserStatus defines the possible states of a registered user.
type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserInactive  UserStatus = "inactive"
	UserSuspended UserStatus = "suspended"
)

// AnomalyStatus defines the review states of a flagged wage record.
type AnomalyStatus string

const (
	AnomalyPending   AnomalyStatus = "pending"
	AnomalyReviewed  AnomalyStatus = "reviewed"
	AnomalyDismissed AnomalyStatus = "dismissed"
	AnomalyConfirmed AnomalyStatus = "confirmed"
)

// ThresholdCategory is either BPL (below poverty line) or APL (above).
type ThresholdCategory string

const (
	CategoryBPL ThresholdCategory = "BPL"
	CategoryAPL ThresholdCategory = "APL"
)

// WageRecord is a single wage transaction stored on the ledger. Records are
// immutable once written; there is no update path, only creation and flagging.
type WageRecord struct {
	DocType        string  `json:"docType"` // "wage"
	WageID         string  `json:"wageId"`
	WorkerIDHash   string  `json:"workerIdHash"`
	EmployerIDHash string  `json:"employerIdHash"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	JobType        string  `json:"jobType,omitempty"`
	Timestamp      string  `json:"timestamp"` // RFC3339, taken from the transaction proposal
	PolicyVersion  string  `json:"policyVersion"`
}

// UPITransaction models a UPI payment credited to a worker, stored under the
// UPI_ key namespace.
type UPITransaction struct {
	DocType          string  `json:"docType"` // "upi"
	TxID             string  `json:"txId"`
	WorkerIDHash     string  `json:"workerIdHash"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
	SenderName       string  `json:"senderName"`
	SenderPhone      string  `json:"senderPhone,omitempty"`
	TransactionRef   string  `json:"transactionRef,omitempty"`
	Timestamp        string  `json:"timestamp"`
	PaymentMethod    string  `json:"paymentMethod"`
	OnChainReference string  `json:"onChainReference,omitempty"`
}

// User is a registered participant, stored under USER_<userIdHash>.
type User struct {
	DocType     string     `json:"docType"` // "user"
	UserID      string     `json:"userId"`
	UserIDHash  string     `json:"userIdHash"`
	Role        UserRole   `json:"role"`
	OrgID       string     `json:"orgId"`
	Name        string     `json:"name"`
	ContactHash string     `json:"contactHash,omitempty"`
	Status      UserStatus `json:"status"`
	CreatedAt   string     `json:"createdAt"`
	UpdatedAt   string     `json:"updatedAt"`
}

// PovertyThreshold is the BPL/APL income cutoff for a state, stored under
// THRESHOLD_<state>_<category>. The "DEFAULT" state acts as the fallback for
// states without their own record.
type PovertyThreshold struct {
	DocType   string            `json:"docType"` // "threshold"
	State     string            `json:"state"`
	Category  ThresholdCategory `json:"category"`
	Amount    float64           `json:"amount"`
	SetBy     string            `json:"setBy"`
	UpdatedAt string            `json:"updatedAt"`
}

// Anomaly is a suspicion flag against a wage record, one per wage, stored
// under ANOMALY_<wageId>. Re-flagging overwrites the previous entry.
type Anomaly struct {
	DocType      string        `json:"docType"` // "anomaly"
	WageID       string        `json:"wageId"`
	AnomalyScore float64       `json:"anomalyScore"`
	Reason       string        `json:"reason"`
	FlaggedBy    string        `json:"flaggedBy"`
	Status       AnomalyStatus `json:"status"`
	Timestamp    string        `json:"timestamp"`
}

// MonthlyIncome is one bucket of a worker's income history.
type MonthlyIncome struct {
	Month       string  `json:"month"` // YYYY-MM
	TotalIncome float64 `json:"totalIncome"`
	WageCount   int     `json:"wageCount"`
}

// PovertyStatusResult is the outcome of a BPL/APL classification.
type PovertyStatusResult struct {
	Status      ThresholdCategory `json:"status"`
	TotalIncome float64           `json:"totalIncome"`
	Threshold   float64           `json:"threshold"`
	State       string            `json:"state"`
	Period      string            `json:"period"`
}

// EmployerComplianceEntry aggregates wages paid by one employer.
type EmployerComplianceEntry struct {
	TotalPaid float64 `json:"totalPaid"`
	WageCount int     `json:"wageCount"`
}

// ComplianceReport is computed on demand and never persisted.
type ComplianceReport struct {
	ReportType   string      `json:"reportType"`
	GeneratedAt  string      `json:"generatedAt"`
	StartDate    string      `json:"startDate"`
	EndDate      string      `json:"endDate"`
	TotalRecords int         `json:"totalRecords"`
	TotalAmount  float64     `json:"totalAmount"`
	Data         interface{} `json:"data"`
}
