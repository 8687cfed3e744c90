package authz

const (
	RoleAnonymous = "anonymous"
	RoleAdmin     = "admin"
)

const (
	ActionRead    = "read"
	ActionExecute = "execute"
)

const (
	ObjectSemanticQuery    = "semantic.query"
	ObjectSemanticPreview  = "semantic.preview"
	ObjectSemanticReplay   = "semantic.replay"
	ObjectSemanticObjects  = "semantic.objects"
	ObjectSemanticAudits   = "semantic.audits"
	ObjectSemanticPolicies = "semantic.policies"
)

// Objects lists every route-level object, in allowlist order.
func Objects() []string {
	return []string{
		ObjectSemanticQuery,
		ObjectSemanticPreview,
		ObjectSemanticReplay,
		ObjectSemanticObjects,
		ObjectSemanticAudits,
		ObjectSemanticPolicies,
	}
}
