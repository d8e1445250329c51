// Package assignment ranks technicians for automatic ticket dispatch.
package assignment

import (
	"errors"

	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
)

const (
	availabilityWeight = 40
	workloadCeiling    = 30
	workloadPenalty    = 5
	specialtyWeight    = 20

	// MaxScore is the best attainable score.
	MaxScore = availabilityWeight + workloadCeiling + specialtyWeight
)

// ErrNoEligibleTechnician is returned when the candidate pool is empty.
var ErrNoEligibleTechnician = errors.New("no eligible technician")

// Workloads maps technician id to the number of Assigned or In Progress
// tickets it holds within the tenant of the ticket being dispatched.
type Workloads map[string]int

// Score rates candidate for ticket given current workloads.
func Score(candidate *domain.User, ticket *domain.Ticket, workloads Workloads) int {
	score := 0
	if candidate.IsAvailable {
		score += availabilityWeight
	}
	if load := workloadCeiling - workloadPenalty*workloads[candidate.ID]; load > 0 {
		score += load
	}
	if candidate.Department == string(ticket.Category) || candidate.Department == domain.DepartmentITOperations {
		score += specialtyWeight
	}
	return score
}

// Ranked pairs a candidate with its score.
type Ranked struct {
	Candidate *domain.User
	Score     int
}

// Rank scores every candidate, preserving input order.
func Rank(candidates []domain.User, ticket *domain.Ticket, workloads Workloads) []Ranked {
	ranked := make([]Ranked, 0, len(candidates))
	for i := range candidates {
		ranked = append(ranked, Ranked{Candidate: &candidates[i], Score: Score(&candidates[i], ticket, workloads)})
	}
	return ranked
}

// SelectBest returns the highest scoring candidate. Ties go to the candidate
// that appears first in candidates.
func SelectBest(candidates []domain.User, ticket *domain.Ticket, workloads Workloads) (*domain.User, int, error) {
	if len(candidates) == 0 {
		return nil, 0, ErrNoEligibleTechnician
	}
	var best *domain.User
	bestScore := -1
	for _, r := range Rank(candidates, ticket, workloads) {
		if r.Score > bestScore {
			best, bestScore = r.Candidate, r.Score
		}
	}
	return best, bestScore, nil
}
