package contract

import (
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"sort"
	"time"

	"github.com/hyperledger/fabric-chaincode-go/pkg/cid"
	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-protos-go/ledger/queryresult"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// fixedTxTime is the proposal timestamp every mock transaction reports.
var fixedTxTime = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// mockClientIdentity implements cid.ClientIdentity from a plain attribute map.
type mockClientIdentity struct {
	id    string
	mspID string
	attrs map[string]string
}

func (m *mockClientIdentity) GetID() (string, error)    { return m.id, nil }
func (m *mockClientIdentity) GetMSPID() (string, error) { return m.mspID, nil }

func (m *mockClientIdentity) GetAttributeValue(attrName string) (string, bool, error) {
	value, found := m.attrs[attrName]
	return value, found, nil
}

func (m *mockClientIdentity) AssertAttributeValue(attrName, attrValue string) error {
	value, found := m.attrs[attrName]
	if !found || value != attrValue {
		return fmt.Errorf("attribute %s does not have value %s", attrName, attrValue)
	}
	return nil
}

func (m *mockClientIdentity) GetX509Certificate() (*x509.Certificate, error) {
	return nil, nil
}

// mockStub backs the chaincode stub with an in-memory state map. Range scans
// iterate keys in lexical order, matching LevelDB behavior. Puts are appended
// to a per-key history so GetHistoryForKey can replay them.
type mockStub struct {
	shim.ChaincodeStubInterface
	state   map[string][]byte
	history map[string][]*queryresult.KeyModification
	events  map[string][]byte
	txID    string
	txTime  time.Time
}

func newMockStub() *mockStub {
	return &mockStub{
		state:   make(map[string][]byte),
		history: make(map[string][]*queryresult.KeyModification),
		events:  make(map[string][]byte),
		txID:    "mocktx01-aaaa-bbbb",
		txTime:  fixedTxTime,
	}
}

func (m *mockStub) GetState(key string) ([]byte, error) {
	return m.state[key], nil
}

func (m *mockStub) PutState(key string, value []byte) error {
	m.state[key] = value
	m.history[key] = append(m.history[key], &queryresult.KeyModification{
		TxId:      m.txID,
		Value:     value,
		Timestamp: timestamppb.New(m.txTime),
	})
	return nil
}

func (m *mockStub) DelState(key string) error {
	delete(m.state, key)
	m.history[key] = append(m.history[key], &queryresult.KeyModification{
		TxId:      m.txID,
		IsDelete:  true,
		Timestamp: timestamppb.New(m.txTime),
	})
	return nil
}

func (m *mockStub) GetStateByRange(startKey, endKey string) (shim.StateQueryIteratorInterface, error) {
	keys := make([]string, 0, len(m.state))
	for key := range m.state {
		if startKey != "" && key < startKey {
			continue
		}
		if endKey != "" && key >= endKey {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	results := make([]*queryresult.KV, 0, len(keys))
	for _, key := range keys {
		results = append(results, &queryresult.KV{Key: key, Value: m.state[key]})
	}
	return &mockStateIterator{results: results}, nil
}

func (m *mockStub) GetHistoryForKey(key string) (shim.HistoryQueryIteratorInterface, error) {
	return &mockHistoryIterator{results: m.history[key]}, nil
}

func (m *mockStub) GetTxTimestamp() (*timestamppb.Timestamp, error) {
	return timestamppb.New(m.txTime), nil
}

func (m *mockStub) GetTxID() string { return m.txID }

func (m *mockStub) SetEvent(name string, payload []byte) error {
	m.events[name] = payload
	return nil
}

type mockStateIterator struct {
	results []*queryresult.KV
	pos     int
}

func (it *mockStateIterator) HasNext() bool { return it.pos < len(it.results) }
func (it *mockStateIterator) Close() error  { return nil }

func (it *mockStateIterator) Next() (*queryresult.KV, error) {
	if !it.HasNext() {
		return nil, fmt.Errorf("no more items")
	}
	result := it.results[it.pos]
	it.pos++
	return result, nil
}

type mockHistoryIterator struct {
	results []*queryresult.KeyModification
	pos     int
}

func (it *mockHistoryIterator) HasNext() bool { return it.pos < len(it.results) }
func (it *mockHistoryIterator) Close() error  { return nil }

func (it *mockHistoryIterator) Next() (*queryresult.KeyModification, error) {
	if !it.HasNext() {
		return nil, fmt.Errorf("no more items")
	}
	result := it.results[it.pos]
	it.pos++
	return result, nil
}

// mockTxContext wires a mock stub and identity into the transaction context.
type mockTxContext struct {
	stub *mockStub
	ci   cid.ClientIdentity
}

func (m *mockTxContext) GetStub() shim.ChaincodeStubInterface  { return m.stub }
func (m *mockTxContext) GetClientIdentity() cid.ClientIdentity { return m.ci }
func (m *mockTxContext) SetStub(stub shim.ChaincodeStubInterface) {
	m.stub = stub.(*mockStub)
}
func (m *mockTxContext) SetClientIdentity(ci cid.ClientIdentity) { m.ci = ci }

// newMockContext builds a transaction context for a caller with the given
// MSP and certificate attributes. The enrollment ID mimics the Fabric
// x509:: form, base64 encoded like the real client identity library returns.
func newMockContext(mspID string, attrs map[string]string) *mockTxContext {
	subject := "x509::CN=testuser,O=test::CN=ca.example.com"
	if attrs == nil {
		attrs = map[string]string{}
	}
	return &mockTxContext{
		stub: newMockStub(),
		ci: &mockClientIdentity{
			id:    base64.StdEncoding.EncodeToString([]byte(subject)),
			mspID: mspID,
			attrs: attrs,
		},
	}
}

// roleContext is the common case: a caller whose certificate carries only a
// role attribute, relying on role defaults for clearance and permissions.
func roleContext(role, mspID string) *mockTxContext {
	return newMockContext(mspID, map[string]string{"role": role})
}

// adminOUContext simulates a default Fabric admin certificate: no custom
// attributes, OU=admin inside the encoded subject.
func adminOUContext(mspID string) *mockTxContext {
	subject := "x509::CN=admin,OU=admin::CN=ca.example.com"
	return &mockTxContext{
		stub: newMockStub(),
		ci: &mockClientIdentity{
			id:    base64.StdEncoding.EncodeToString([]byte(subject)),
			mspID: mspID,
			attrs: map[string]string{},
		},
	}
}

// seedWage writes a wage record directly into mock state, bypassing access
// control, for query tests.
func seedWage(stub *mockStub, wageID, workerHash, employerHash string, amount float64, timestamp string) {
	payload := []byte(fmt.Sprintf(
		`{"docType":"wage","wageId":"%s","workerIdHash":"%s","employerIdHash":"%s","amount":%f,"currency":"INR","timestamp":"%s","policyVersion":"v1"}`,
		wageID, workerHash, employerHash, amount, timestamp))
	stub.state[wageID] = payload
}
