// Package broadcast resolves realtime channels for ticket lifecycle events and
// administrator broadcasts, and fans payloads out to them.
package broadcast

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
	"github.com/spec-kit/helpdesk-dispatch/internal/scope"
)

// Channel names a realtime fan-out group.
type Channel string

// GlobalChannel reaches every connected actor.
const GlobalChannel Channel = "global"

var (
	// ErrInvalidTarget is returned for malformed target specifications.
	ErrInvalidTarget = errors.New("invalid broadcast target")
	// ErrForbiddenSender is returned when the sender's role may not broadcast.
	ErrForbiddenSender = errors.New("sender may not broadcast")
	// ErrForbiddenTarget is returned when the target leaves the sender's tenant.
	ErrForbiddenTarget = errors.New("broadcast target outside sender tenant")
)

// CompanyChannel returns the channel of a tenant.
func CompanyChannel(companyID string) Channel {
	return Channel("company:" + companyID)
}

// RoleChannel returns the channel of a role, optionally inside one tenant.
func RoleChannel(role domain.Role, companyID string) Channel {
	if companyID == "" {
		return Channel("role:" + role.String())
	}
	return Channel("company:" + companyID + ":role:" + role.String())
}

// UserChannel returns the private channel of a user.
func UserChannel(userID string) Channel {
	return Channel("user:" + userID)
}

// TicketChannel returns the channel for lifecycle updates of a ticket in
// companyID, degrading to the global channel when no tenant is known.
func TicketChannel(companyID string) Channel {
	if strings.TrimSpace(companyID) == "" {
		return GlobalChannel
	}
	return CompanyChannel(companyID)
}

// NormalizeTarget validates a target and canonicalizes role names.
func NormalizeTarget(target domain.Target) (domain.Target, error) {
	target.Value = strings.TrimSpace(target.Value)
	target.CompanyID = strings.TrimSpace(target.CompanyID)
	switch target.Type {
	case domain.TargetAll:
		target.Value = ""
	case domain.TargetCompany, domain.TargetSpecific:
		if target.Value == "" {
			return target, fmt.Errorf("%w: %s target requires a value", ErrInvalidTarget, target.Type)
		}
	case domain.TargetRole:
		role, err := domain.ParseRole(target.Value)
		if err != nil {
			return target, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
		}
		target.Value = role.String()
	default:
		return target, fmt.Errorf("%w: unknown target type %q", ErrInvalidTarget, target.Type)
	}
	return target, nil
}

// ResolveChannels authorizes target for sender and returns the channels it
// reaches. Senders pinned to a tenant may not use the all target, and every
// other target must stay inside their tenant. The returned target has role
// names canonicalized and tenant defaults filled in.
func ResolveChannels(target domain.Target, sender domain.Actor) ([]Channel, domain.Target, error) {
	target, err := NormalizeTarget(target)
	if err != nil {
		return nil, target, err
	}
	bs := scope.ResolveBroadcastScope(sender)
	if !bs.Allowed {
		return nil, target, ErrForbiddenSender
	}
	pinned := bs.CompanyID

	switch target.Type {
	case domain.TargetAll:
		if pinned != nil {
			return nil, target, fmt.Errorf("%w: %s may not broadcast to all", ErrForbiddenTarget, sender.Role)
		}
		return []Channel{GlobalChannel}, target, nil

	case domain.TargetCompany:
		if pinned != nil && target.Value != *pinned {
			return nil, target, ErrForbiddenTarget
		}
		target.CompanyID = target.Value
		return []Channel{CompanyChannel(target.Value)}, target, nil

	case domain.TargetRole:
		if pinned != nil {
			if target.CompanyID == "" {
				target.CompanyID = *pinned
			} else if target.CompanyID != *pinned {
				return nil, target, ErrForbiddenTarget
			}
		}
		return []Channel{RoleChannel(domain.Role(target.Value), target.CompanyID)}, target, nil

	default: // domain.TargetSpecific
		if pinned != nil && target.CompanyID != *pinned {
			return nil, target, ErrForbiddenTarget
		}
		return []Channel{UserChannel(target.Value)}, target, nil
	}
}

// Addressed reports whether a notification with target reaches recipient.
func Addressed(target domain.Target, recipient domain.Actor) bool {
	switch target.Type {
	case domain.TargetAll:
		return true
	case domain.TargetCompany:
		return target.Value == recipient.CompanyID
	case domain.TargetRole:
		if target.Value != recipient.Role.String() {
			return false
		}
		return target.CompanyID == "" || target.CompanyID == recipient.CompanyID
	case domain.TargetSpecific:
		return target.Value == recipient.UserID
	}
	return false
}

// SubscriptionChannels lists every channel recipient should listen on.
func SubscriptionChannels(recipient domain.Actor) []Channel {
	return []Channel{
		GlobalChannel,
		CompanyChannel(recipient.CompanyID),
		RoleChannel(recipient.Role, ""),
		RoleChannel(recipient.Role, recipient.CompanyID),
		UserChannel(recipient.UserID),
	}
}
