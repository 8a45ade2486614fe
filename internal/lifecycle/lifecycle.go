// Package lifecycle holds the donation state machine. It is pure: callers pass
// the donation, the acting user and the current time, and apply the returned
// Transition through the store's conditional update.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/diagnosis/foodshare-donations/internal/domain"
)

type Action string

const (
	ActionReserve  Action = "reserve"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionExpire   Action = "expire"
)

// Actions lists every action in the order AllowedActions reports them.
var Actions = []Action{ActionReserve, ActionComplete, ActionCancel, ActionExpire}

func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionReserve, ActionComplete, ActionCancel, ActionExpire:
		return Action(s), true
	case "confirm":
		return ActionComplete, true
	default:
		return "", false
	}
}

type ReserverChange int

const (
	ReserverKeep ReserverChange = iota
	ReserverSet
	ReserverClear
)

// Transition is a planned status change. From and FromReservedBy describe the
// stored state the plan was made against; the store must only apply it while
// both still hold.
type Transition struct {
	DonationID     string
	Action         Action
	From           domain.DonationStatus
	FromReservedBy string
	To             domain.DonationStatus

	Reserver       ReserverChange
	ReservedBy     string
	ReservedByName string
}

var permittedRoles = map[Action][]domain.Role{
	ActionReserve:  {domain.RoleOrphanage},
	ActionComplete: {domain.RoleOrphanage, domain.RoleDonor},
	ActionCancel:   {domain.RoleOrphanage, domain.RoleDonor},
	ActionExpire:   {domain.RoleSystem},
}

func rolePermitted(action Action, role domain.Role) bool {
	for _, r := range permittedRoles[action] {
		if r == role {
			return true
		}
	}
	return false
}

// Plan validates action against d as seen at now and returns the transition
// to apply. Errors wrap domain.ErrUnauthorized, domain.ErrExpired or
// domain.ErrInvalidTransition.
func Plan(d *domain.Donation, action Action, actor domain.Actor, now time.Time) (Transition, error) {
	if _, ok := permittedRoles[action]; !ok {
		return Transition{}, fmt.Errorf("%w: unknown action %q", domain.ErrInvalidTransition, action)
	}
	if !rolePermitted(action, actor.Role) {
		return Transition{}, fmt.Errorf("%w: role %q cannot %s", domain.ErrUnauthorized, actor.Role, action)
	}

	t := Transition{
		DonationID:     d.ID,
		Action:         action,
		From:           d.Status,
		FromReservedBy: d.ReservedBy,
	}
	effective := d.EffectiveStatus(now)

	switch action {
	case ActionReserve:
		if effective == domain.DonationExpired {
			return Transition{}, fmt.Errorf("%w: expired at %s", domain.ErrExpired, d.ExpiryDate.Format(time.RFC3339))
		}
		if effective != domain.DonationAvailable {
			return Transition{}, invalidFrom(action, effective)
		}
		t.To = domain.DonationReserved
		t.Reserver = ReserverSet
		t.ReservedBy = actor.ID
		t.ReservedByName = actor.Name

	case ActionComplete, ActionCancel:
		if effective != domain.DonationReserved {
			return Transition{}, invalidFrom(action, effective)
		}
		if !d.IsReserver(actor.ID) && !d.IsOwner(actor.ID) {
			return Transition{}, fmt.Errorf("%w: only the reserver or the owning donor can %s", domain.ErrUnauthorized, action)
		}
		if action == ActionComplete {
			t.To = domain.DonationCompleted
		} else {
			t.To = domain.DonationAvailable
			t.Reserver = ReserverClear
		}

	case ActionExpire:
		if d.Status != domain.DonationAvailable && d.Status != domain.DonationReserved {
			return Transition{}, invalidFrom(action, d.Status)
		}
		if !d.IsExpired(now) {
			return Transition{}, fmt.Errorf("%w: not past expiry yet", domain.ErrInvalidTransition)
		}
		t.To = domain.DonationExpired
	}

	return t, nil
}

func invalidFrom(action Action, status domain.DonationStatus) error {
	return fmt.Errorf("%w: cannot %s a donation that is %s", domain.ErrInvalidTransition, action, status)
}

// Apply returns d with t applied. It does not re-validate.
func Apply(d domain.Donation, t Transition, now time.Time) domain.Donation {
	d.Status = t.To
	switch t.Reserver {
	case ReserverSet:
		d.ReservedBy = t.ReservedBy
		d.ReservedByName = t.ReservedByName
	case ReserverClear:
		d.ReservedBy = ""
		d.ReservedByName = ""
	}
	d.UpdatedAt = now
	return d
}

// AllowedActions reports which actions actor may take on d right now.
func AllowedActions(d *domain.Donation, actor domain.Actor, now time.Time) []Action {
	allowed := make([]Action, 0, len(Actions))
	for _, a := range Actions {
		if _, err := Plan(d, a, actor, now); err == nil {
			allowed = append(allowed, a)
		}
	}
	return allowed
}
