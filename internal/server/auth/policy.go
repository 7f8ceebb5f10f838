package auth

import "github.com/dmitrijs2005/notekeeper/internal/common"

// CanAccess reports whether requester acting as role may read a note owned
// by owner.
func CanAccess(role, owner, requester string) bool {
	if role == common.RoleAdmin {
		return true
	}
	return owner == requester
}

// CanModify uses the same rule as CanAccess.
func CanModify(role, owner, requester string) bool {
	return CanAccess(role, owner, requester)
}
