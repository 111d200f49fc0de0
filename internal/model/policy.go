package model

import (
	"time"

	"github.com/google/uuid"
)

// Condition properties.
const (
	PropertyRemoteIP           = "remote_ip"
	PropertyRemoteIPRegion     = "remote_ip_location_region"
	PropertyClientVerified     = "client_verified"
	PropertyCurrentUTCDatetime = "current_utc_datetime"
	PropertyProviderID         = "provider_id"
)

// Condition operators.
const (
	OperatorIsIn                = "is_in"
	OperatorIsNotIn             = "is_not_in"
	OperatorIsInCIDR            = "is_in_cidr"
	OperatorIsNotInCIDR         = "is_not_in_cidr"
	OperatorIs                  = "is"
	OperatorIsInDayOfWeekRanges = "is_in_day_of_week_time_ranges"
)

// Condition is a single constraint within a policy. All of a policy's
// conditions must hold for the policy to grant access.
type Condition struct {
	Property string   `json:"property"`
	Operator string   `json:"operator"`
	Values   []string `json:"values"`
}

// Policy grants access from an actor group to a resource under a condition
// set. Conditions, ActorGroupID and ResourceID are breaking attributes.
type Policy struct {
	ID           uuid.UUID   `json:"id" db:"id"`
	AccountID    uuid.UUID   `json:"account_id" db:"account_id"`
	ActorGroupID uuid.UUID   `json:"actor_group_id" db:"actor_group_id"`
	ResourceID   uuid.UUID   `json:"resource_id" db:"resource_id"`
	Description  string      `json:"description" db:"description"`
	Conditions   []Condition `json:"conditions" db:"conditions"`
	Lifecycle
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
