package domain

import "strings"

// Caller identifies who is searching. It is resolved by the identity
// collaborator (bearer token, MCP session) before the search core runs.
type Caller struct {
	UserID          string   `json:"user_id"`
	Email           string   `json:"email,omitempty"`
	OrganizationIDs []string `json:"organization_ids,omitempty"`
	Superuser       bool     `json:"superuser,omitempty"`
}

// IsAnonymous returns true for unauthenticated callers
func (c *Caller) IsAnonymous() bool {
	return c == nil || c.UserID == ""
}

// VisibilityPredicate restricts which rows a caller may see. The search core
// treats it as opaque and ANDs it into every store query.
type VisibilityPredicate interface {
	// Where renders a boolean SQL expression. bind registers a query
	// argument and returns its placeholder.
	Where(bind func(arg any) string) string

	// Allows evaluates the predicate against a loaded memory
	Allows(m *Memory) bool
}

// CallerVisibility is the default predicate: a caller sees public memories,
// their own personal memories and organization memories of the
// organizations they belong to. Superusers see everything.
type CallerVisibility struct {
	Caller *Caller
}

// NewCallerVisibility creates the default predicate for a caller
func NewCallerVisibility(caller *Caller) CallerVisibility {
	return CallerVisibility{Caller: caller}
}

// Where implements VisibilityPredicate
func (v CallerVisibility) Where(bind func(arg any) string) string {
	if v.Caller != nil && v.Caller.Superuser {
		return "1=1"
	}

	clauses := []string{"visibility = " + bind(string(VisibilityPublic))}
	if !v.Caller.IsAnonymous() {
		clauses = append(clauses,
			"(visibility = "+bind(string(VisibilityPersonal))+" AND owner_id = "+bind(v.Caller.UserID)+")")
		// Organization rows are visible to members; owners also keep access
		// to rows they shared.
		orgClause := "owner_id = " + bind(v.Caller.UserID)
		if len(v.Caller.OrganizationIDs) > 0 {
			placeholders := make([]string, len(v.Caller.OrganizationIDs))
			for i, orgID := range v.Caller.OrganizationIDs {
				placeholders[i] = bind(orgID)
			}
			orgClause = "(" + orgClause + " OR organization_id IN (" + strings.Join(placeholders, ", ") + "))"
		}
		clauses = append(clauses,
			"(visibility = "+bind(string(VisibilityOrganization))+" AND "+orgClause+")")
	}
	return "(" + strings.Join(clauses, " OR ") + ")"
}

// Allows implements VisibilityPredicate
func (v CallerVisibility) Allows(m *Memory) bool {
	if v.Caller != nil && v.Caller.Superuser {
		return true
	}
	switch m.Visibility {
	case VisibilityPublic:
		return true
	case VisibilityPersonal:
		return !v.Caller.IsAnonymous() && m.OwnerID == v.Caller.UserID
	case VisibilityOrganization:
		if v.Caller.IsAnonymous() {
			return false
		}
		if m.OwnerID == v.Caller.UserID {
			return true
		}
		for _, orgID := range v.Caller.OrganizationIDs {
			if orgID == m.OrganizationID {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Unrestricted is the predicate for trusted in-process callers such as
// the backfill worker and the evaluation harness.
type Unrestricted struct{}

// Where implements VisibilityPredicate
func (Unrestricted) Where(func(arg any) string) string { return "1=1" }

// Allows implements VisibilityPredicate
func (Unrestricted) Allows(*Memory) bool { return true }
