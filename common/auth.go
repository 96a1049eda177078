package common

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// RoleAdmin grants access to parameter updates, asset registration, fee
// withdrawals and score overrides.
const RoleAdmin = "ROLE_ADMIN"

var ErrUnauthorized = errors.New("caller lacks required role")

// Authorizer is the injected capability answering role checks at admin entry
// points.
type Authorizer interface {
	HasRole(addr common.Address, role string) bool
}

// RequireRole verifies the caller holds the role. A nil authorizer denies
// everything; an open system must be configured explicitly.
func RequireRole(a Authorizer, caller common.Address, role string) error {
	if a == nil || !a.HasRole(caller, role) {
		return ErrUnauthorized
	}
	return nil
}

// StaticRoles is the production authorizer: a fixed role table loaded from
// configuration at startup.
type StaticRoles struct {
	grants map[string]map[common.Address]struct{}
}

// NewStaticRoles builds an authorizer from role → member lists.
func NewStaticRoles(grants map[string][]common.Address) *StaticRoles {
	s := &StaticRoles{grants: make(map[string]map[common.Address]struct{}, len(grants))}
	for role, members := range grants {
		set := make(map[common.Address]struct{}, len(members))
		for _, member := range members {
			set[member] = struct{}{}
		}
		s.grants[role] = set
	}
	return s
}

func (s *StaticRoles) HasRole(addr common.Address, role string) bool {
	if s == nil {
		return false
	}
	members, ok := s.grants[role]
	if !ok {
		return false
	}
	_, ok = members[addr]
	return ok
}
