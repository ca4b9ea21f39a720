package contract

import (
	"encoding/json"
	"fmt"

	"wagetrace/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

var validUserRoles = map[model.UserRole]bool{
	model.RoleWorker:             true,
	model.RoleEmployer:           true,
	model.RoleGovernmentOfficial: true,
	model.RoleBankOfficer:        true,
	model.RoleAuditor:            true,
	model.RoleAdmin:              true,
}

var validUserStatuses = map[model.UserStatus]bool{
	model.UserActive:    true,
	model.UserInactive:  true,
	model.UserSuspended: true,
}

// RegisterUser creates a user entry under USER_<userIdHash>. New users start
// active; the role must be one of the recognized platform roles.
func (s *WageLedgerContract) RegisterUser(ctx contractapi.TransactionContextInterface, userID, userIDHash, role, orgID, name, contactHash string) error {
	am := NewAccessManager(ctx)
	identity, err := am.CheckAccess("RegisterUser")
	if err != nil {
		s.logAccessDenied(ctx, "RegisterUser", userIDHash, "user", err.Error())
		return fmt.Errorf("access denied: %w", err)
	}

	if err := validateRequiredString(userID, "userId", maxStringInputLength); err != nil {
		return err
	}
	if err := validateRequiredString(userIDHash, "userIdHash", maxStringInputLength); err != nil {
		return err
	}
	userRole := model.UserRole(role)
	if !validUserRoles[userRole] {
		return fmt.Errorf("invalid role '%s'", role)
	}

	key := userKey(userIDHash)
	existing, err := ctx.GetStub().GetState(key)
	if err != nil {
		return fmt.Errorf("read user %s: %w", userIDHash, err)
	}
	if existing != nil {
		return fmt.Errorf("user %s already exists", userIDHash)
	}

	now, err := s.txTimestamp(ctx)
	if err != nil {
		return err
	}

	user := model.User{
		DocType:     "user",
		UserID:      userID,
		UserIDHash:  userIDHash,
		Role:        userRole,
		OrgID:       orgID,
		Name:        name,
		ContactHash: contactHash,
		Status:      model.UserActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	if err := ctx.GetStub().PutState(key, payload); err != nil {
		return fmt.Errorf("put user %s: %w", userIDHash, err)
	}

	s.logAccess(ctx, EventUserRegistered, "RegisterUser", userIDHash, "user", "success",
		fmt.Sprintf("User registered with role %s", role))
	s.emitEvent(ctx, "UserRegistered", []byte(userIDHash))
	logger.Infof("User %s (role: %s) registered by %s", userIDHash, role, identity.ID)
	return nil
}

// GetUserProfile retrieves a user by ID hash. Non-privileged callers may only
// read their own profile.
func (s *WageLedgerContract) GetUserProfile(ctx contractapi.TransactionContextInterface, userIDHash string) (*model.User, error) {
	am := NewAccessManager(ctx)
	identity, err := am.CheckAccess("GetUserProfile")
	if err != nil {
		s.logAccessDenied(ctx, "GetUserProfile", userIDHash, "user", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}
	if err := CheckSelfAccess(identity, "GetUserProfile", userIDHash); err != nil {
		s.logAccessDenied(ctx, "GetUserProfile", userIDHash, "user", err.Error())
		return nil, fmt.Errorf("access denied: %w", err)
	}

	user, err := s.loadUser(ctx, userIDHash)
	if err != nil {
		return nil, err
	}

	s.logDataRead(ctx, "GetUserProfile", userIDHash, "user")
	return user, nil
}

func (s *WageLedgerContract) loadUser(ctx contractapi.TransactionContextInterface, userIDHash string) (*model.User, error) {
	data, err := ctx.GetStub().GetState(userKey(userIDHash))
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userIDHash, err)
	}
	if data == nil {
		return nil, fmt.Errorf("user %s does not exist", userIDHash)
	}
	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("unmarshal user %s: %w", userIDHash, err)
	}
	return &user, nil
}

// UpdateUserStatus moves a user between active, inactive, and suspended. Any
// transition between the three states is permitted. An empty updatedBy falls
// back to the caller's enrollment ID.
func (s *WageLedgerContract) UpdateUserStatus(ctx contractapi.TransactionContextInterface, userIDHash, status, updatedBy string) error {
	am := NewAccessManager(ctx)
	identity, err := am.CheckAccess("UpdateUserStatus")
	if err != nil {
		s.logAccessDenied(ctx, "UpdateUserStatus", userIDHash, "user", err.Error())
		return fmt.Errorf("access denied: %w", err)
	}

	newStatus := model.UserStatus(status)
	if !validUserStatuses[newStatus] {
		return fmt.Errorf("invalid status '%s' (expected active, inactive, or suspended)", status)
	}

	user, err := s.loadUser(ctx, userIDHash)
	if err != nil {
		return err
	}

	now, err := s.txTimestamp(ctx)
	if err != nil {
		return err
	}
	if updatedBy == "" {
		updatedBy = identity.ID
	}
	previous := user.Status
	user.Status = newStatus
	user.UpdatedAt = now

	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	if err := ctx.GetStub().PutState(userKey(userIDHash), payload); err != nil {
		return fmt.Errorf("put user %s: %w", userIDHash, err)
	}

	s.logAccess(ctx, EventUserUpdated, "UpdateUserStatus", userIDHash, "user", "success",
		fmt.Sprintf("Status changed from %s to %s by %s", previous, newStatus, updatedBy))
	s.emitEvent(ctx, "UserStatusUpdated", []byte(userIDHash))
	logger.Infof("User %s status %s -> %s by %s", userIDHash, previous, newStatus, updatedBy)
	return nil
}

// VerifyUserRole reports whether a registered, active user holds the given
// role. Inactive and suspended users never verify, without error.
func (s *WageLedgerContract) VerifyUserRole(ctx contractapi.TransactionContextInterface, userIDHash, role string) (bool, error) {
	if _, err := NewAccessManager(ctx).CheckAccess("VerifyUserRole"); err != nil {
		s.logAccessDenied(ctx, "VerifyUserRole", userIDHash, "user", err.Error())
		return false, fmt.Errorf("access denied: %w", err)
	}

	user, err := s.loadUser(ctx, userIDHash)
	if err != nil {
		return false, err
	}
	if user.Status != model.UserActive {
		return false, nil
	}
	return user.Role == model.UserRole(role), nil
}

// UserExists reports whether a user is registered.
func (s *WageLedgerContract) UserExists(ctx contractapi.TransactionContextInterface, userIDHash string) (bool, error) {
	if _, err := NewAccessManager(ctx).CheckAccess("UserExists"); err != nil {
		return false, fmt.Errorf("access denied: %w", err)
	}
	data, err := ctx.GetStub().GetState(userKey(userIDHash))
	if err != nil {
		return false, fmt.Errorf("read user %s: %w", userIDHash, err)
	}
	return data != nil, nil
}
