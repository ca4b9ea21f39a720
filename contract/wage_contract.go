package contract

import (
	"encoding/json"
	"fmt"

	"wagetrace/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var logger = flogging.MustGetLogger("wagetrace.ledgercontract")

// Key namespaces on the ledger. Wage records are stored directly under their
// wage ID, which by convention starts with the WAGE prefix; all other
// entities carry an explicit prefix.
const (
	wageKeyPrefix      = "WAGE"
	upiKeyPrefix       = "UPI_"
	userKeyPrefix      = "USER_"
	thresholdKeyPrefix = "THRESHOLD_"
	anomalyKeyPrefix   = "ANOMALY_"
	auditKeyPrefix     = "AUDIT_"
)

const (
	defaultBPLThreshold   = 32000  // last-resort annual BPL cutoff
	defaultAPLThreshold   = 100000 // seed value for DEFAULT/APL
	defaultHistoryMonths  = 12
	defaultAnomalyCutoff  = 0.5
	defaultThresholdState = "DEFAULT"
)

// WageLedgerContract records wage and UPI payment transactions for the
// welfare income traceability platform. Every operation is gated through the
// certificate-attribute access rules before it touches the ledger.
// @contract:WageLedgerContract
type WageLedgerContract struct {
	contractapi.Contract
}

// Instantiate is called during chaincode instantiation.
func (s *WageLedgerContract) Instantiate(ctx contractapi.TransactionContextInterface) {
	logger.Info("WageLedgerContract Instantiated/Upgraded")
}

// InitLedger seeds the ledger with a sample wage record and the DEFAULT
// poverty thresholds. Admin-only, single designated organization.
func (s *WageLedgerContract) InitLedger(ctx contractapi.TransactionContextInterface) error {
	identity, err := NewAccessManager(ctx).CheckAccess("InitLedger")
	if err != nil {
		s.logAccessDenied(ctx, "InitLedger", "ledger", "system", err.Error())
		return fmt.Errorf("access denied: %w", err)
	}
	s.logAccessGranted(ctx, "InitLedger", "ledger", "system")
	logger.Infof("InitLedger called by %s (role: %s, MSP: %s)", identity.ID, identity.Role, identity.MSPID)

	now, err := s.txTimestamp(ctx)
	if err != nil {
		return err
	}

	seed := model.WageRecord{
		DocType:        "wage",
		WageID:         "WAGE001",
		WorkerIDHash:   "worker-001",
		EmployerIDHash: "employer-001",
		Amount:         1200.50,
		Currency:       "INR",
		JobType:        "construction",
		Timestamp:      now,
		PolicyVersion:  "2025-Q4",
	}
	payload, err := json.Marshal(seed)
	if err != nil {
		return fmt.Errorf("marshal seed wage record: %w", err)
	}
	if err := ctx.GetStub().PutState(seed.WageID, payload); err != nil {
		return fmt.Errorf("put seed wage record: %w", err)
	}

	defaults := []model.PovertyThreshold{
		{DocType: "threshold", State: defaultThresholdState, Category: model.CategoryBPL, Amount: defaultBPLThreshold, SetBy: "system", UpdatedAt: now},
		{DocType: "threshold", State: defaultThresholdState, Category: model.CategoryAPL, Amount: defaultAPLThreshold, SetBy: "system", UpdatedAt: now},
	}
	for _, threshold := range defaults {
		key := thresholdKey(threshold.State, string(threshold.Category))
		payload, err := json.Marshal(threshold)
		if err != nil {
			return fmt.Errorf("marshal seed threshold: %w", err)
		}
		if err := ctx.GetStub().PutState(key, payload); err != nil {
			return fmt.Errorf("put seed threshold: %w", err)
		}
	}

	logger.Info("Ledger seeded with sample wage record and default thresholds")
	return nil
}
