package domain

// Role enumerates reviewer roles in escalation order.
type Role string

const (
	RoleAnalyst Role = "ANALYST"
	RoleManager Role = "MANAGER"
	RoleFLUAML  Role = "FLU_AML"
	RoleGFC     Role = "GFC"
)

// roleRank defines the total order Analyst < Manager < FLU AML < GFC.
var roleRank = map[Role]int{
	RoleAnalyst: 0,
	RoleManager: 1,
	RoleFLUAML:  2,
	RoleGFC:     3,
}

// Valid reports whether the role is a known member of the hierarchy.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// SeniorTo reports whether r is strictly senior to other.
func (r Role) SeniorTo(other Role) bool {
	return roleRank[r] > roleRank[other]
}

// AtLeast reports whether r is senior to or equal to other.
func (r Role) AtLeast(other Role) bool {
	return roleRank[r] >= roleRank[other]
}

// EscalationLevel identifies which review tier a case is escalated to.
type EscalationLevel string

const (
	LevelNone    EscalationLevel = "NONE"
	LevelManager EscalationLevel = "MANAGER"
	LevelFLUAML  EscalationLevel = "FLU_AML"
	LevelGFC     EscalationLevel = "GFC"
)

// LevelForRole maps a senior role to the escalation tier it serves.
func LevelForRole(r Role) EscalationLevel {
	switch r {
	case RoleManager:
		return LevelManager
	case RoleFLUAML:
		return LevelFLUAML
	case RoleGFC:
		return LevelGFC
	default:
		return LevelNone
	}
}

// RoleForLevel maps an escalation tier to the role that works it.
func RoleForLevel(l EscalationLevel) Role {
	switch l {
	case LevelManager:
		return RoleManager
	case LevelFLUAML:
		return RoleFLUAML
	case LevelGFC:
		return RoleGFC
	default:
		return RoleAnalyst
	}
}
