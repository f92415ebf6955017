package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Role is a single directory-assigned role.
type Role string

const (
	RoleNormal  Role = "normal"
	RoleBanned  Role = "banned"
	RoleSpecial Role = "special"
	RoleAdmin   Role = "admin"
)

// roleBits maps roles to the bitmask values the directory stores. The mask is
// a wire detail only; everything above the JSON boundary works with RoleSet.
var roleBits = map[Role]uint{
	RoleNormal:  1,
	RoleBanned:  2,
	RoleSpecial: 4,
	RoleAdmin:   8,
}

// RoleSet is the set of roles held by a user. Membership is queried with Has;
// the zero value is the empty set.
type RoleSet struct {
	members map[Role]struct{}
}

// NewRoleSet builds a RoleSet containing the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	s := RoleSet{members: make(map[Role]struct{}, len(roles))}
	for _, r := range roles {
		s.members[r] = struct{}{}
	}
	return s
}

// RolesFromBits decodes the directory's bitmask representation. Unknown bits
// are ignored so a newer backend does not break older relays.
func RolesFromBits(bits uint) RoleSet {
	s := RoleSet{members: make(map[Role]struct{})}
	for role, bit := range roleBits {
		if bits&bit != 0 {
			s.members[role] = struct{}{}
		}
	}
	return s
}

// Has reports whether the set contains the given role.
func (s RoleSet) Has(r Role) bool {
	_, ok := s.members[r]
	return ok
}

// With returns a copy of the set with the given role added.
func (s RoleSet) With(r Role) RoleSet {
	out := RoleSet{members: make(map[Role]struct{}, len(s.members)+1)}
	for m := range s.members {
		out.members[m] = struct{}{}
	}
	out.members[r] = struct{}{}
	return out
}

// Bits encodes the set back to the directory's bitmask representation.
func (s RoleSet) Bits() uint {
	var bits uint
	for m := range s.members {
		bits |= roleBits[m]
	}
	return bits
}

// Roles returns the members in stable order, mainly for logging.
func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, len(s.members))
	for m := range s.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Bits())
}

func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var bits uint
	if err := json.Unmarshal(data, &bits); err != nil {
		return fmt.Errorf("domain: decode roles bitmask: %w", err)
	}
	*s = RolesFromBits(bits)
	return nil
}
