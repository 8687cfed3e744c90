package types

const (
	PolicyWildcard = "*"

	ActionQuery = "query"
)

type PolicyEffect string

const (
	EffectAllow PolicyEffect = "allow"
	EffectDeny  PolicyEffect = "deny"
)

// AccessPolicy grants or denies one role an action on one metric object.
// Condition is a key/value match over the request attributes; ConditionExpr
// is an optional CEL boolean expression over the same attributes exposed as
// `ctx`. Both must hold for the policy to match.
type AccessPolicy struct {
	ID            int64        `json:"id" yaml:"id"`
	ObjectID      int64        `json:"object_id" yaml:"object_id"`
	Role          string       `json:"role" yaml:"role"`
	Action        string       `json:"action" yaml:"action"`
	Condition     Conditions   `json:"condition,omitempty" yaml:"condition"`
	ConditionExpr string       `json:"condition_expr,omitempty" yaml:"condition_expr"`
	Effect        PolicyEffect `json:"effect" yaml:"effect"`
	Priority      int          `json:"priority" yaml:"priority"`
}

func (p AccessPolicy) AppliesTo(objectID int64, role string, action string) bool {
	if p.ObjectID != objectID {
		return false
	}
	if p.Role != role && p.Role != PolicyWildcard {
		return false
	}
	return p.Action == action || p.Action == PolicyWildcard
}

type PolicyDecision struct {
	Allow     bool    `json:"allow"`
	Reason    string  `json:"reason"`
	Matched   []int64 `json:"matched_policy_ids"`
	Evaluated int     `json:"evaluated"`
}

type PolicySummary struct {
	ID         int64        `json:"id"`
	ObjectID   int64        `json:"object_id"`
	ObjectName string       `json:"object_name"`
	Role       string       `json:"role"`
	Action     string       `json:"action"`
	Effect     PolicyEffect `json:"effect"`
	Priority   int          `json:"priority"`
	Condition  Conditions   `json:"condition,omitempty"`
}
