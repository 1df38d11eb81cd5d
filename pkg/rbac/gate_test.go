package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/evalhub/pkg/auth"
	"github.com/platinummonkey/evalhub/pkg/cases"
	"github.com/platinummonkey/evalhub/pkg/orgs"
	"github.com/platinummonkey/evalhub/pkg/storage"
	"github.com/platinummonkey/evalhub/pkg/storage/memory"
)

func int64p(v int64) *int64 { return &v }

func newUser(id int64, role auth.Role, orgID *int64, modules ...auth.Module) *auth.User {
	return &auth.User{
		ID:              id,
		Role:            role,
		OrganizationID:  orgID,
		AssignedModules: modules,
		IsActive:        true,
	}
}

var (
	org1     = &orgs.Organization{ID: 1, Name: "O1", IsActive: true}
	org2     = &orgs.Organization{ID: 2, Name: "O2", IsActive: true}
	inactive = &orgs.Organization{ID: 3, Name: "O3", IsActive: false}
)

func TestEvaluate_CustomerScenario(t *testing.T) {
	customer := newUser(10, auth.RoleCustomer, int64p(1), auth.ModuleK12)

	d := Evaluate(customer, nil, Target{Module: auth.ModulePostSecondary, Action: ActionView})
	assert.Equal(t, Deny(ReasonModuleNotAssigned), d)

	d = Evaluate(customer, org1, Target{Module: auth.ModuleK12, OrganizationID: int64p(1), Action: ActionView})
	assert.True(t, d.Allowed)

	d = Evaluate(customer, org2, Target{Module: auth.ModuleK12, OrganizationID: int64p(2), Action: ActionView})
	assert.Equal(t, Deny(ReasonOrganizationMismatch), d)
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		user   *auth.User
		org    *orgs.Organization
		target Target
		want   Decision
	}{
		{
			name:   "developer bypasses module check",
			user:   newUser(1, auth.RoleDeveloper, nil),
			target: Target{Module: auth.ModuleTutoring, OrganizationID: int64p(2), Action: ActionEdit},
			want:   Allow(),
		},
		{
			name:   "developer edits prompts",
			user:   newUser(1, auth.RoleDeveloper, nil),
			target: Target{Module: auth.ModuleK12, Action: ActionEditPrompts},
			want:   Allow(),
		},
		{
			name:   "admin bypasses organization check",
			user:   newUser(2, auth.RoleAdmin, nil),
			org:    inactive,
			target: Target{Module: auth.ModuleK12, OrganizationID: int64p(3), Action: ActionView},
			want:   Allow(),
		},
		{
			name:   "admin cannot edit prompts",
			user:   newUser(2, auth.RoleAdmin, nil),
			target: Target{Module: auth.ModuleK12, Action: ActionEditPrompts},
			want:   Deny(ReasonInsufficientRole),
		},
		{
			name:   "org admin in inactive organization",
			user:   newUser(3, auth.RoleOrgAdmin, int64p(3), auth.ModuleK12),
			org:    inactive,
			target: Target{Module: auth.ModuleK12, OrganizationID: int64p(3), Action: ActionView},
			want:   Deny(ReasonOrganizationInactive),
		},
		{
			name:   "unresolved organization is treated as inactive",
			user:   newUser(3, auth.RoleOrgAdmin, int64p(1), auth.ModuleK12),
			target: Target{Module: auth.ModuleK12, OrganizationID: int64p(1), Action: ActionView},
			want:   Deny(ReasonOrganizationInactive),
		},
		{
			name:   "module check precedes organization check",
			user:   newUser(3, auth.RoleOrgAdmin, int64p(1), auth.ModuleK12),
			org:    org2,
			target: Target{Module: auth.ModuleTutoring, OrganizationID: int64p(2), Action: ActionView},
			want:   Deny(ReasonModuleNotAssigned),
		},
		{
			name:   "customer cannot edit prompts on assigned module",
			user:   newUser(4, auth.RoleCustomer, int64p(1), auth.ModuleK12),
			target: Target{Module: auth.ModuleK12, Action: ActionEditPrompts},
			want:   Deny(ReasonInsufficientRole),
		},
		{
			name:   "customer without target organization",
			user:   newUser(4, auth.RoleCustomer, int64p(1), auth.ModuleK12),
			target: Target{Module: auth.ModuleK12, Action: ActionCreateReport},
			want:   Allow(),
		},
		{
			name:   "demo on assigned module",
			user:   newUser(5, auth.RoleDemo, nil, auth.ModuleK12),
			target: Target{Module: auth.ModuleK12, Action: ActionCreateReport},
			want:   Allow(),
		},
		{
			name:   "demo on unassigned module",
			user:   newUser(5, auth.RoleDemo, nil, auth.ModuleK12),
			target: Target{Module: auth.ModulePostSecondary, Action: ActionView},
			want:   Deny(ReasonModuleNotAssigned),
		},
		{
			name:   "demo ignores organization checks",
			user:   newUser(5, auth.RoleDemo, nil, auth.ModuleK12),
			org:    inactive,
			target: Target{Module: auth.ModuleK12, OrganizationID: int64p(3), Action: ActionView},
			want:   Allow(),
		},
		{
			name:   "demo cannot edit prompts",
			user:   newUser(5, auth.RoleDemo, nil, auth.ModuleK12),
			target: Target{Module: auth.ModuleK12, Action: ActionEditPrompts},
			want:   Deny(ReasonInsufficientRole),
		},
		{
			name:   "unknown role",
			user:   newUser(6, auth.Role("superuser"), nil, auth.ModuleK12),
			target: Target{Module: auth.ModuleK12, Action: ActionView},
			want:   Deny(ReasonInsufficientRole),
		},
		{
			name:   "unknown action",
			user:   newUser(1, auth.RoleDeveloper, nil),
			target: Target{Module: auth.ModuleK12, Action: "delete_everything"},
			want:   Deny(ReasonInsufficientRole),
		},
		{
			name:   "nil user",
			target: Target{Module: auth.ModuleK12, Action: ActionView},
			want:   Deny(ReasonInsufficientRole),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.user, tt.org, tt.target))
		})
	}
}

func TestEvaluate_IsPure(t *testing.T) {
	user := newUser(10, auth.RoleCustomer, int64p(1), auth.ModuleK12)
	before := user.Clone()
	target := Target{Module: auth.ModuleK12, OrganizationID: int64p(1), Action: ActionEdit}

	first := Evaluate(user, org1, target)
	second := Evaluate(user, org1, target)

	assert.Equal(t, first, second)
	assert.Equal(t, before, user)
}

func TestEvaluateCase(t *testing.T) {
	demo := newUser(5, auth.RoleDemo, nil, auth.ModuleK12)
	customer := newUser(10, auth.RoleCustomer, int64p(1), auth.ModuleK12)
	orgAdmin := newUser(11, auth.RoleOrgAdmin, int64p(1), auth.ModuleK12)
	admin := newUser(2, auth.RoleAdmin, nil)

	demoCase := &cases.Case{ID: 1, ModuleType: auth.ModuleK12, CreatedByUserID: 5}
	otherDemoCase := &cases.Case{ID: 2, ModuleType: auth.ModuleK12, CreatedByUserID: 6}
	orgCase := &cases.Case{ID: 3, ModuleType: auth.ModuleK12, OrganizationID: int64p(1), CreatedByUserID: 11}
	ownOrgCase := &cases.Case{ID: 4, ModuleType: auth.ModuleK12, OrganizationID: int64p(1), CreatedByUserID: 11, CustomerID: int64p(10)}
	foreignCase := &cases.Case{ID: 5, ModuleType: auth.ModuleK12, OrganizationID: int64p(2), CreatedByUserID: 40}

	tests := []struct {
		name   string
		user   *auth.User
		org    *orgs.Organization
		c      *cases.Case
		action Action
		want   Decision
	}{
		{"demo views own case", demo, nil, demoCase, ActionView, Allow()},
		{"demo cannot view another demo case", demo, nil, otherDemoCase, ActionView, Deny(ReasonOrganizationMismatch)},
		{"demo cannot view organization case", demo, org1, orgCase, ActionView, Deny(ReasonOrganizationMismatch)},
		{"customer views organization case", customer, org1, orgCase, ActionView, Allow()},
		{"customer cannot edit unowned case", customer, org1, orgCase, ActionEdit, Deny(ReasonInsufficientRole)},
		{"customer edits own case", customer, org1, ownOrgCase, ActionEdit, Allow()},
		{"org admin edits organization case", orgAdmin, org1, orgCase, ActionEdit, Allow()},
		{"customer cannot see foreign tenant", customer, org2, foreignCase, ActionView, Deny(ReasonOrganizationMismatch)},
		{"customer cannot see demo case", customer, nil, demoCase, ActionView, Deny(ReasonOrganizationMismatch)},
		{"admin sees everything", admin, org2, foreignCase, ActionEdit, Allow()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateCase(tt.user, tt.org, tt.c, tt.action))
		})
	}
}

func TestGate_Check(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.CreateOrganization(ctx, &orgs.Organization{ID: 1, Name: "O1", IsActive: true}))
	require.NoError(t, store.CreateOrganization(ctx, &orgs.Organization{ID: 2, Name: "O2", IsActive: false}))

	gate := NewGate(orgs.NewStoreRegistry(store))

	customer := newUser(10, auth.RoleCustomer, int64p(1), auth.ModuleK12)
	d, err := gate.Check(ctx, customer, Target{Module: auth.ModuleK12, OrganizationID: int64p(1), Action: ActionView})
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	inactiveMember := newUser(11, auth.RoleOrgAdmin, int64p(2), auth.ModuleK12)
	d, err = gate.Check(ctx, inactiveMember, Target{Module: auth.ModuleK12, OrganizationID: int64p(2), Action: ActionView})
	require.NoError(t, err)
	assert.Equal(t, ReasonOrganizationInactive, d.Reason)

	orphan := newUser(12, auth.RoleCustomer, int64p(99), auth.ModuleK12)
	_, err = gate.Check(ctx, orphan, Target{Module: auth.ModuleK12, OrganizationID: int64p(99), Action: ActionView})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// cross-tenant probes are mismatches, never lookups
	d, err = gate.Check(ctx, customer, Target{Module: auth.ModuleK12, OrganizationID: int64p(99), Action: ActionView})
	require.NoError(t, err)
	assert.Equal(t, ReasonOrganizationMismatch, d.Reason)
}

func TestGate_Authorize(t *testing.T) {
	gate := NewGate(orgs.NewStoreRegistry(memory.New()))
	demo := newUser(5, auth.RoleDemo, nil, auth.ModuleK12)

	err := gate.Authorize(context.Background(), demo, Target{Module: auth.ModuleTutoring, Action: ActionCreateReport})
	require.Error(t, err)
	assert.True(t, IsPermissionDenied(err))
	assert.Equal(t, ReasonModuleNotAssigned, DenyReasonOf(err))

	assert.NoError(t, gate.Authorize(context.Background(), demo, Target{Module: auth.ModuleK12, Action: ActionCreateReport}))
}

func TestCanEditPrompts(t *testing.T) {
	for _, role := range auth.Roles() {
		u := newUser(1, role, nil)
		assert.Equal(t, role == auth.RoleDeveloper, CanEditPrompts(u), role)
	}
	assert.False(t, CanEditPrompts(nil))
}
