package model

import "time"

// LifecycleState is the derived activation state of a soft-deletable entity.
type LifecycleState string

const (
	StateActive   LifecycleState = "active"
	StateDisabled LifecycleState = "disabled"
	StateDeleted  LifecycleState = "deleted"
)

// Lifecycle carries the soft-delete columns shared by accounts, policies,
// clients, gateways, tokens and auth providers. Deletion wins over disable.
type Lifecycle struct {
	DisabledAt *time.Time `json:"disabled_at,omitempty" db:"disabled_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

func (l Lifecycle) State() LifecycleState {
	switch {
	case l.DeletedAt != nil:
		return StateDeleted
	case l.DisabledAt != nil:
		return StateDisabled
	default:
		return StateActive
	}
}

// Active reports whether the entity is neither disabled nor deleted.
func (l Lifecycle) Active() bool { return l.State() == StateActive }

// LifecycleTransition classifies the state change between two row versions.
type LifecycleTransition string

const (
	TransitionNone       LifecycleTransition = "none"
	TransitionDeactivate LifecycleTransition = "deactivate" // active -> disabled or deleted
	TransitionActivate   LifecycleTransition = "activate"   // disabled -> active
)

// Transition returns how the lifecycle changed from old to new. Moving
// between disabled and deleted is not a transition: the entity was already
// out of service, and cascade handlers must not fire twice.
func Transition(old, new Lifecycle) LifecycleTransition {
	wasActive := old.Active()
	isActive := new.Active()
	switch {
	case wasActive && !isActive:
		return TransitionDeactivate
	case !wasActive && isActive:
		return TransitionActivate
	default:
		return TransitionNone
	}
}
