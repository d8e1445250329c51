package scope

import (
	"testing"

	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
	"github.com/spec-kit/helpdesk-dispatch/internal/repository"
)

func strPtr(s string) *string { return &s }

func ticketFor(company, requester string, technician *string) *domain.Ticket {
	return &domain.Ticket{ID: "t", CompanyID: company, RequesterID: requester, TechnicianID: technician}
}

func TestEmployeeScopeIsRequesterAndCompany(t *testing.T) {
	actor := domain.Actor{UserID: "emp-1", Role: domain.RoleEmployee, CompanyID: "acme"}
	pred := ResolveTicketScope(actor)

	if !pred.Matches(ticketFor("acme", "emp-1", nil)) {
		t.Fatal("employee must see own ticket")
	}
	if pred.Matches(ticketFor("acme", "emp-2", nil)) {
		t.Fatal("employee must not see colleague's ticket")
	}
	if pred.Matches(ticketFor("globex", "emp-1", nil)) {
		t.Fatal("employee must not see another tenant's ticket")
	}
}

func TestEmployeeFiltersCannotWidenScope(t *testing.T) {
	actor := domain.Actor{UserID: "emp-1", Role: domain.RoleEmployee, CompanyID: "acme"}
	requested := repository.TicketFilter{CompanyID: strPtr("globex"), RequesterID: strPtr("emp-9")}

	got := ResolveTicketScope(actor).Constrain(requested)

	if got.CompanyID == nil || *got.CompanyID != "acme" {
		t.Fatalf("company filter must be forced to actor tenant, got %v", got.CompanyID)
	}
	if got.RequesterID == nil || *got.RequesterID != "emp-1" {
		t.Fatalf("requester filter must be forced to actor, got %v", got.RequesterID)
	}
}

func TestTechnicianScopeIgnoresCompany(t *testing.T) {
	actor := domain.Actor{UserID: "tech-1", Role: domain.RoleTechnician, CompanyID: "pool"}
	pred := ResolveTicketScope(actor)

	if pred.CompanyID != nil {
		t.Fatal("technician scope must not restrict company")
	}
	if !pred.Matches(ticketFor("acme", "emp-1", strPtr("tech-1"))) {
		t.Fatal("technician must see tickets assigned to them in any tenant")
	}
	if pred.Matches(ticketFor("acme", "emp-1", strPtr("tech-2"))) {
		t.Fatal("technician must not see other technicians' tickets")
	}
	if pred.Matches(ticketFor("acme", "emp-1", nil)) {
		t.Fatal("technician must not see unassigned tickets")
	}
}

func TestCompanyScopedRoles(t *testing.T) {
	for _, role := range []domain.Role{domain.RoleTeamLead, domain.RoleAdmin, domain.Role("Intern")} {
		pred := ResolveTicketScope(domain.Actor{UserID: "u", Role: role, CompanyID: "acme"})
		if pred.CompanyID == nil || *pred.CompanyID != "acme" {
			t.Fatalf("%s: expected company scope", role)
		}
		if pred.RequesterID != nil || pred.TechnicianID != nil {
			t.Fatalf("%s: expected only company restriction", role)
		}
	}
}

func TestSuperAdminReadsGloballyButBroadcastsLocally(t *testing.T) {
	actor := domain.Actor{UserID: "owner", Role: domain.RoleSuperAdmin, CompanyID: "acme"}

	if !ResolveTicketScope(actor).Unrestricted() {
		t.Fatal("super admin ticket reads must be unrestricted")
	}
	bs := ResolveBroadcastScope(actor)
	if !bs.Allowed || bs.CompanyID == nil || *bs.CompanyID != "acme" {
		t.Fatalf("super admin broadcasts must be pinned to own tenant, got %+v", bs)
	}
}

func TestSystemAdminUnrestricted(t *testing.T) {
	actor := domain.Actor{UserID: "root", Role: domain.RoleSystemAdmin, CompanyID: "pool"}
	if !ResolveTicketScope(actor).Unrestricted() {
		t.Fatal("system admin reads must be unrestricted")
	}
	if bs := ResolveBroadcastScope(actor); !bs.Allowed || bs.CompanyID != nil {
		t.Fatalf("system admin broadcasts must be unrestricted, got %+v", bs)
	}
	if company, ok := AuditScope(actor); !ok || company != nil {
		t.Fatal("system admin audit reads must be unrestricted")
	}
}

func TestNonAdministratorsCannotBroadcast(t *testing.T) {
	for _, role := range []domain.Role{domain.RoleEmployee, domain.RoleTechnician, domain.RoleTeamLead} {
		if ResolveBroadcastScope(domain.Actor{Role: role, CompanyID: "acme"}).Allowed {
			t.Fatalf("%s must not broadcast", role)
		}
		if _, ok := AuditScope(domain.Actor{Role: role}); ok {
			t.Fatalf("%s must not read the audit log", role)
		}
	}
}
