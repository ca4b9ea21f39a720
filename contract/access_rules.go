package contract

import "fmt"

// AccessRule defines the authorization requirements for one chaincode function.
type AccessRule struct {
	AllowedRoles        []string // roles permitted to invoke (from certificate attribute)
	RequiredPermissions []string // permission flags that must all be present
	MinClearanceLevel   int      // minimum clearance level (1-10), 0 means no gate
	AllowedMSPs         []string // MSP IDs permitted to invoke
	AllowSelf           bool     // restrict non-privileged callers to their own records
	Description         string
}

// AccessDeniedError carries the unmet requirement for audit logging. Every
// denial surfaces verbatim to the caller.
type AccessDeniedError struct {
	Reason     string
	UserID     string
	Function   string
	RequiredBy string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("ACCESS DENIED: %s (function: %s, user: %s, required: %s)", e.Reason, e.Function, e.UserID, e.RequiredBy)
}

// MSP IDs recognized by the rule table. Org1 hosts the registering authority
// (government); Org2 hosts employers and banks.
const (
	registrarMSP = "Org1MSP"
	employerMSP  = "Org2MSP"
)

var allMSPs = []string{registrarMSP, employerMSP}

var allRoles = []string{"worker", "employer", "government_official", "auditor", "bank_officer", "admin"}

// accessRules is the static per-function authorization table, built once at
// startup and never mutated. A function with no entry is denied for every
// identity.
var accessRules = map[string]AccessRule{
	// Wage records
	"RecordWage": {
		AllowedRoles:        []string{"employer", "admin"},
		RequiredPermissions: []string{"canRecordWage"},
		MinClearanceLevel:   5,
		AllowedMSPs:         allMSPs,
		Description:         "Record a new wage transaction",
	},
	"ReadWage": {
		AllowedRoles:      allRoles,
		MinClearanceLevel: 1,
		AllowedMSPs:       allMSPs,
		Description:       "Read wage record by ID",
	},
	"WageExists": {
		AllowedRoles:      allRoles,
		MinClearanceLevel: 1,
		AllowedMSPs:       allMSPs,
		Description:       "Check if wage record exists",
	},
	"QueryWageHistory": {
		AllowedRoles:      []string{"worker", "employer", "government_official", "auditor", "admin"},
		MinClearanceLevel: 2,
		AllowedMSPs:       allMSPs,
		Description:       "Replay ledger history for a wage record",
	},
	"QueryWagesByWorker": {
		AllowedRoles:      allRoles,
		MinClearanceLevel: 1,
		AllowedMSPs:       allMSPs,
		AllowSelf:         true,
		Description:       "Query wages by worker ID hash",
	},
	"QueryWagesByEmployer": {
		AllowedRoles:      []string{"employer", "government_official", "auditor", "admin"},
		MinClearanceLevel: 3,
		AllowedMSPs:       allMSPs,
		AllowSelf:         true,
		Description:       "Query wages by employer ID hash",
	},
	"BatchRecordWages": {
		AllowedRoles:        []string{"employer", "admin"},
		RequiredPermissions: []string{"canRecordWage", "canBatchProcess"},
		MinClearanceLevel:   6,
		AllowedMSPs:         allMSPs,
		Description:         "Batch record multiple wages",
	},
	"CalculateTotalIncome": {
		AllowedRoles:      allRoles,
		MinClearanceLevel: 2,
		AllowedMSPs:       allMSPs,
		AllowSelf:         true,
		Description:       "Calculate total income for a worker",
	},
	"GetWorkerIncomeHistory": {
		AllowedRoles:      allRoles,
		MinClearanceLevel: 2,
		AllowedMSPs:       allMSPs,
		AllowSelf:         true,
		Description:       "Get monthly income breakdown",
	},

	// UPI transactions
	"RecordUPITransaction": {
		AllowedRoles:        []string{"employer", "bank_officer", "admin"},
		RequiredPermissions: []string{"canRecordUPI"},
		MinClearanceLevel:   5,
		AllowedMSPs:         allMSPs,
		Description:         "Record UPI payment transaction",
	},
	"ReadUPITransaction": {
		AllowedRoles:      allRoles,
		MinClearanceLevel: 2,
		AllowedMSPs:       allMSPs,
		Description:       "Read UPI transaction by ID",
	},
	"UPITransactionExists": {
		AllowedRoles:      allRoles,
		MinClearanceLevel: 1,
		AllowedMSPs:       allMSPs,
		Description:       "Check if UPI transaction exists",
	},
	"QueryUPITransactionsByWorker": {
		AllowedRoles:      allRoles,
		MinClearanceLevel: 2,
		AllowedMSPs:       allMSPs,
		AllowSelf:         true,
		Description:       "Query UPI transactions for a worker",
	},

	// User registry
	"RegisterUser": {
		AllowedRoles:        []string{"government_official", "admin"},
		RequiredPermissions: []string{"canRegisterUsers"},
		MinClearanceLevel:   8,
		AllowedMSPs:         []string{registrarMSP},
		Description:         "Register new user in the system",
	},
	"GetUserProfile": {
		AllowedRoles:      allRoles,
		MinClearanceLevel: 1,
		AllowedMSPs:       allMSPs,
		AllowSelf:         true,
		Description:       "Get user profile by ID hash",
	},
	"UpdateUserStatus": {
		AllowedRoles:        []string{"government_official", "admin"},
		RequiredPermissions: []string{"canManageUsers"},
		MinClearanceLevel:   9,
		AllowedMSPs:         []string{registrarMSP},
		Description:         "Update user status (active/inactive/suspended)",
	},
	"VerifyUserRole": {
		AllowedRoles:      allRoles,
		MinClearanceLevel: 1,
		AllowedMSPs:       allMSPs,
		Description:       "Verify user has specific role",
	},
	"UserExists": {
		AllowedRoles:      allRoles,
		MinClearanceLevel: 1,
		AllowedMSPs:       allMSPs,
		Description:       "Check if user exists",
	},

	// Poverty thresholds
	"SetPovertyThreshold": {
		AllowedRoles:        []string{"government_official", "admin"},
		RequiredPermissions: []string{"canUpdateThresholds"},
		MinClearanceLevel:   8,
		AllowedMSPs:         []string{registrarMSP},
		Description:         "Set BPL/APL poverty threshold",
	},
	"GetPovertyThreshold": {
		AllowedRoles:      allRoles,
		MinClearanceLevel: 1,
		AllowedMSPs:       allMSPs,
		Description:       "Get poverty threshold for state",
	},
	"CheckPovertyStatus": {
		AllowedRoles:      allRoles,
		MinClearanceLevel: 2,
		AllowedMSPs:       allMSPs,
		AllowSelf:         true,
		Description:       "Check if worker is BPL/APL",
	},

	// Anomaly detection
	"FlagAnomaly": {
		AllowedRoles:        []string{"auditor", "government_official", "admin"},
		RequiredPermissions: []string{"canFlagAnomaly"},
		MinClearanceLevel:   7,
		AllowedMSPs:         allMSPs,
		Description:         "Flag wage record as suspicious",
	},
	"GetFlaggedWages": {
		AllowedRoles:      []string{"auditor", "government_official", "admin"},
		MinClearanceLevel: 6,
		AllowedMSPs:       allMSPs,
		Description:       "Get all flagged anomalies",
	},
	"UpdateAnomalyStatus": {
		AllowedRoles:        []string{"auditor", "government_official", "admin"},
		RequiredPermissions: []string{"canReviewAnomaly"},
		MinClearanceLevel:   7,
		AllowedMSPs:         allMSPs,
		Description:         "Update anomaly review status",
	},

	// Compliance reporting
	"GenerateComplianceReport": {
		AllowedRoles:        []string{"government_official", "auditor", "admin"},
		RequiredPermissions: []string{"canGenerateReport"},
		MinClearanceLevel:   6,
		AllowedMSPs:         allMSPs,
		Description:         "Generate compliance reports",
	},

	// Audit trail queries
	"GetAuditLogs": {
		AllowedRoles:      []string{"auditor", "government_official", "admin"},
		MinClearanceLevel: 6,
		AllowedMSPs:       allMSPs,
		Description:       "Query on-ledger audit trail",
	},
	"GetAuditSummary": {
		AllowedRoles:        []string{"government_official", "auditor", "admin"},
		RequiredPermissions: []string{"canGenerateReport"},
		MinClearanceLevel:   6,
		AllowedMSPs:         allMSPs,
		Description:         "Aggregate audit statistics",
	},
	"GetUserActivityLog": {
		AllowedRoles:      allRoles,
		MinClearanceLevel: 1,
		AllowedMSPs:       allMSPs,
		AllowSelf:         true,
		Description:       "Audit entries for a single caller",
	},
	"GetHighRiskEvents": {
		AllowedRoles:        []string{"government_official", "auditor", "admin"},
		RequiredPermissions: []string{"canGenerateReport"},
		MinClearanceLevel:   6,
		AllowedMSPs:         allMSPs,
		Description:         "High and critical risk audit events",
	},
	"GetAccessDenials": {
		AllowedRoles:        []string{"government_official", "admin"},
		RequiredPermissions: []string{"canManageUsers"},
		MinClearanceLevel:   9,
		AllowedMSPs:         []string{registrarMSP},
		Description:         "Access denial events for security monitoring",
	},

	// Initialization
	"InitLedger": {
		AllowedRoles:      []string{"admin"},
		MinClearanceLevel: 10,
		AllowedMSPs:       []string{registrarMSP},
		Description:       "Initialize ledger with seed data",
	},
}

// GetAccessRules exposes a copy of the rule table for inspection; callers
// cannot mutate the live rules through it.
func GetAccessRules() map[string]AccessRule {
	rules := make(map[string]AccessRule, len(accessRules))
	for name, rule := range accessRules {
		rules[name] = rule
	}
	return rules
}
