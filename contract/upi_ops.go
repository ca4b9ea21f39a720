package contract

import (
	"encoding/json"
	"fmt"

	"wagetrace/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// RecordUPITransaction stores a UPI payment credited to a worker and returns
// the ledger key it was stored under. The on-chain reference mirrors that key
// so off-chain systems can correlate the payment.
func (s *WageLedgerContract) RecordUPITransaction(ctx contractapi.TransactionContextInterface, txID, workerIDHash string, amount float64, currency, senderName, senderPhone, transactionRef, paymentMethod string) (string, error) {
	am := NewAccessManager(ctx)
	identity, err := am.CheckAccess("RecordUPITransaction")
	if err != nil {
		s.logAccessDenied(ctx, "RecordUPITransaction", txID, "upi", err.Error())
		return "", fmt.Errorf("access denied: %w", err)
	}

	if err := validateRequiredString(txID, "txId", maxStringInputLength); err != nil {
		return "", err
	}
	if err := validateRequiredString(workerIDHash, "workerIdHash", maxStringInputLength); err != nil {
		return "", err
	}
	if amount <= 0 {
		return "", fmt.Errorf("transaction amount must be positive, got %.2f", amount)
	}
	if currency == "" {
		currency = "INR"
	}
	if paymentMethod == "" {
		paymentMethod = "UPI"
	}

	key := upiKey(txID)
	existing, err := ctx.GetStub().GetState(key)
	if err != nil {
		return "", fmt.Errorf("read UPI transaction %s: %w", txID, err)
	}
	if existing != nil {
		return "", fmt.Errorf("UPI transaction %s already exists", txID)
	}

	now, err := s.txTimestamp(ctx)
	if err != nil {
		return "", err
	}

	transaction := model.UPITransaction{
		DocType:          "upi",
		TxID:             txID,
		WorkerIDHash:     workerIDHash,
		Amount:           amount,
		Currency:         currency,
		SenderName:       senderName,
		SenderPhone:      senderPhone,
		TransactionRef:   transactionRef,
		Timestamp:        now,
		PaymentMethod:    paymentMethod,
		OnChainReference: key,
	}
	payload, err := json.Marshal(transaction)
	if err != nil {
		return "", fmt.Errorf("marshal UPI transaction: %w", err)
	}
	if err := ctx.GetStub().PutState(key, payload); err != nil {
		return "", fmt.Errorf("put UPI transaction %s: %w", txID, err)
	}

	s.logAccess(ctx, EventDataWrite, "RecordUPITransaction", txID, "upi", "success",
		fmt.Sprintf("UPI payment of %.2f %s recorded for worker %s", amount, currency, workerIDHash))
	s.emitEvent(ctx, "UPITransactionRecorded", []byte(txID))
	logger.Infof("UPI transaction %s recorded by %s (role: %s)", txID, identity.ID, identity.Role)
	return key, nil
}

// ReadUPITransaction retrieves a UPI transaction by its transaction ID.
func (s *WageLedgerContract) ReadUPITransaction(ctx contractapi.TransactionContextInterface, txID string) (*model.UPITransaction, error) {
	if _, err := NewAccessManager(ctx).CheckAccess("ReadUPITransaction"); err != nil {
		s.logAccessDenied(ctx, "ReadUPITransaction", txID, "upi", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}

	data, err := ctx.GetStub().GetState(upiKey(txID))
	if err != nil {
		return nil, fmt.Errorf("get UPI transaction %s: %w", txID, err)
	}
	if data == nil {
		return nil, fmt.Errorf("UPI transaction %s does not exist", txID)
	}

	var transaction model.UPITransaction
	if err := json.Unmarshal(data, &transaction); err != nil {
		return nil, fmt.Errorf("unmarshal UPI transaction %s: %w", txID, err)
	}

	s.logDataRead(ctx, "ReadUPITransaction", txID, "upi")
	return &transaction, nil
}

// UPITransactionExists reports whether a UPI transaction is on the ledger.
func (s *WageLedgerContract) UPITransactionExists(ctx contractapi.TransactionContextInterface, txID string) (bool, error) {
	if _, err := NewAccessManager(ctx).CheckAccess("UPITransactionExists"); err != nil {
		return false, fmt.Errorf("access denied: %w", err)
	}
	data, err := ctx.GetStub().GetState(upiKey(txID))
	if err != nil {
		return false, fmt.Errorf("read UPI transaction %s: %w", txID, err)
	}
	return data != nil, nil
}

// QueryUPITransactionsByWorker returns every UPI payment credited to a
// worker. Non-privileged callers may only query their own hash.
func (s *WageLedgerContract) QueryUPITransactionsByWorker(ctx contractapi.TransactionContextInterface, workerIDHash string) ([]*model.UPITransaction, error) {
	am := NewAccessManager(ctx)
	identity, err := am.CheckAccess("QueryUPITransactionsByWorker")
	if err != nil {
		s.logAccessDenied(ctx, "QueryUPITransactionsByWorker", workerIDHash, "upi", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}
	if err := CheckSelfAccess(identity, "QueryUPITransactionsByWorker", workerIDHash); err != nil {
		s.logAccessDenied(ctx, "QueryUPITransactionsByWorker", workerIDHash, "upi", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}

	iterator, err := ctx.GetStub().GetStateByRange(upiKeyPrefix, rangeEnd(upiKeyPrefix))
	if err != nil {
		return nil, fmt.Errorf("scan UPI transactions: %w", err)
	}
	defer iterator.Close()

	transactions := []*model.UPITransaction{}
	for iterator.HasNext() {
		queryResponse, err := iterator.Next()
		if err != nil {
			logger.Warningf("QueryUPITransactionsByWorker: iterator error: %v. Skipping.", err)
			continue
		}
		var transaction model.UPITransaction
		if err := json.Unmarshal(queryResponse.Value, &transaction); err != nil {
			continue
		}
		if transaction.DocType != "upi" || transaction.WorkerIDHash != workerIDHash {
			continue
		}
		transactions = append(transactions, &transaction)
	}

	s.logDataRead(ctx, "QueryUPITransactionsByWorker", workerIDHash, "upi")
	return transactions, nil
}
