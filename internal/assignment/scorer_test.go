package assignment

import (
	"errors"
	"testing"

	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
)

func technician(id string, available bool, department string) domain.User {
	return domain.User{ID: id, Role: domain.RoleTechnician, IsAvailable: available, Department: department}
}

func networkTicket() *domain.Ticket {
	return &domain.Ticket{ID: "t-1", CompanyID: "acme", Category: domain.CategoryNetwork}
}

func TestScoreComponents(t *testing.T) {
	ticket := networkTicket()
	cases := []struct {
		name      string
		candidate domain.User
		workload  int
		want      int
	}{
		{"perfect match", technician("a", true, "Network"), 0, 90},
		{"it operations counts as specialty", technician("b", true, domain.DepartmentITOperations), 0, 90},
		{"unavailable idle mismatch", technician("c", false, "Hardware"), 0, 30},
		{"workload penalty", technician("d", true, "Network"), 1, 85},
		{"workload floor at zero", technician("e", true, "Network"), 9, 60},
		{"nothing", technician("f", false, "Facilities"), 6, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(&tc.candidate, ticket, Workloads{tc.candidate.ID: tc.workload})
			if got != tc.want {
				t.Fatalf("score: got %d, want %d", got, tc.want)
			}
			if got < 0 || got > MaxScore {
				t.Fatalf("score %d outside [0,%d]", got, MaxScore)
			}
		})
	}
}

func TestSelectBestPrefersHigherScore(t *testing.T) {
	candidates := []domain.User{
		technician("B", false, "Hardware"),
		technician("A", true, "Network"),
	}
	best, score, err := SelectBest(candidates, networkTicket(), Workloads{"A": 1, "B": 0})
	if err != nil {
		t.Fatalf("SelectBest: %v", err)
	}
	if best.ID != "A" || score != 85 {
		t.Fatalf("expected A with 85, got %s with %d", best.ID, score)
	}
}

func TestSelectBestTieGoesToFirstCandidate(t *testing.T) {
	candidates := []domain.User{
		technician("first", true, "Network"),
		technician("second", true, "Network"),
	}
	for i := 0; i < 5; i++ {
		best, _, err := SelectBest(candidates, networkTicket(), Workloads{})
		if err != nil {
			t.Fatalf("SelectBest: %v", err)
		}
		if best.ID != "first" {
			t.Fatalf("run %d: expected first, got %s", i, best.ID)
		}
	}
}

func TestSelectBestEmptyPool(t *testing.T) {
	_, _, err := SelectBest(nil, networkTicket(), Workloads{})
	if !errors.Is(err, ErrNoEligibleTechnician) {
		t.Fatalf("expected ErrNoEligibleTechnician, got %v", err)
	}
}
