package domain

import (
	"fmt"
	"strings"
	"testing"
)

func TestCallerVisibility_Allows(t *testing.T) {
	alice := &Caller{UserID: "alice", OrganizationIDs: []string{"org-1"}}

	tests := []struct {
		name   string
		caller *Caller
		memory *Memory
		want   bool
	}{
		{"public to anonymous", nil, &Memory{Visibility: VisibilityPublic}, true},
		{"personal to anonymous", nil, &Memory{Visibility: VisibilityPersonal, OwnerID: "alice"}, false},
		{"own personal", alice, &Memory{Visibility: VisibilityPersonal, OwnerID: "alice"}, true},
		{"other personal", alice, &Memory{Visibility: VisibilityPersonal, OwnerID: "bob"}, false},
		{"member organization", alice, &Memory{Visibility: VisibilityOrganization, OwnerID: "bob", OrganizationID: "org-1"}, true},
		{"foreign organization", alice, &Memory{Visibility: VisibilityOrganization, OwnerID: "bob", OrganizationID: "org-2"}, false},
		{"own organization row", alice, &Memory{Visibility: VisibilityOrganization, OwnerID: "alice", OrganizationID: "org-9"}, true},
		{"superuser", &Caller{UserID: "root", Superuser: true}, &Memory{Visibility: VisibilityPersonal, OwnerID: "bob"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewCallerVisibility(tt.caller).Allows(tt.memory); got != tt.want {
				t.Errorf("Allows() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCallerVisibility_Where(t *testing.T) {
	var args []any
	bind := func(arg any) string {
		args = append(args, arg)
		return fmt.Sprintf("$%d", len(args))
	}

	where := NewCallerVisibility(&Caller{UserID: "alice", OrganizationIDs: []string{"org-1", "org-2"}}).Where(bind)

	if !strings.Contains(where, "organization_id IN ($5, $6)") {
		t.Errorf("expected organization placeholders, got %s", where)
	}
	if len(args) != 7 {
		t.Errorf("expected 7 bound args, got %d: %v", len(args), args)
	}

	args = nil
	anon := NewCallerVisibility(nil).Where(bind)
	if anon != "(visibility = $1)" {
		t.Errorf("unexpected anonymous predicate %q", anon)
	}

	if got := (Unrestricted{}).Where(bind); got != "1=1" {
		t.Errorf("unexpected unrestricted predicate %q", got)
	}
}
