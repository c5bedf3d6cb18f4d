package file

// Action is one operation an actor may attempt on files.
type Action string

// Actions known to the evaluator. Manage subsumes every other action.
const (
	ActionCreate Action = "create"
	ActionList   Action = "list"
	ActionRead   Action = "read"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
)

// Roles recognized in actor claims.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// Actor is the authenticated identity behind a request, supplied by the
// auth middleware.
type Actor struct {
	ID    string
	Roles []string
}

// rulePredicate optionally narrows a rule to records satisfying a condition.
type rulePredicate func(actor Actor, rec *Record) bool

type aclRule struct {
	role      string
	actions   []Action
	predicate rulePredicate
}

// Evaluator answers whether an actor may perform an action, from a fixed
// rule table. No matching rule means denied.
type Evaluator struct {
	rules []aclRule
}

// NewEvaluator builds the base policy: admins manage everything, users may
// create, list, and read anything but delete only their own files.
func NewEvaluator() *Evaluator {
	return &Evaluator{rules: []aclRule{
		{role: RoleAdmin, actions: []Action{ActionManage}},
		{role: RoleUser, actions: []Action{ActionCreate, ActionList, ActionRead}},
		{role: RoleUser, actions: []Action{ActionDelete}, predicate: isOwner},
	}}
}

// CanPerform reports whether actor may perform action on rec. rec may be nil
// for collection-level actions. Evaluation fails closed.
func (e *Evaluator) CanPerform(actor Actor, action Action, rec *Record) bool {
	for _, rule := range e.rules {
		if !hasRole(actor, rule.role) {
			continue
		}
		for _, a := range rule.actions {
			if a != action && a != ActionManage {
				continue
			}
			if rule.predicate != nil && !rule.predicate(actor, rec) {
				continue
			}
			return true
		}
	}
	return false
}

func isOwner(actor Actor, rec *Record) bool {
	return rec != nil && actor.ID != "" && rec.CreatedBy == actor.ID
}

func hasRole(actor Actor, role string) bool {
	for _, r := range actor.Roles {
		if r == role {
			return true
		}
	}
	return false
}
