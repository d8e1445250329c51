package domain

import "time"

// DutyStatus is a technician's self-reported working state.
type DutyStatus string

const (
	DutyOnline  DutyStatus = "Online"
	DutyOnSite  DutyStatus = "On-Site"
	DutyBreak   DutyStatus = "Break"
	DutyOffline DutyStatus = "Offline"
)

// DepartmentITOperations matches every ticket category during scoring.
const DepartmentITOperations = "IT Operations"

// User is an actor in any tenant. Technicians live in the technician pool tenant.
type User struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	Role         Role
	CompanyID    string
	IsAvailable  bool
	DutyStatus   DutyStatus
	Department   string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor is the authenticated caller of an inbound action together with its
// network context.
type Actor struct {
	UserID    string
	Role      Role
	CompanyID string
	IPAddress string
	UserAgent string
}

// ActorFromUser builds an Actor for the given user.
func ActorFromUser(user *User, ip, userAgent string) Actor {
	return Actor{
		UserID:    user.ID,
		Role:      user.Role,
		CompanyID: user.CompanyID,
		IPAddress: ip,
		UserAgent: userAgent,
	}
}
