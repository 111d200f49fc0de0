package model

import (
	"time"

	"github.com/google/uuid"
)

// Resource types.
const (
	ResourceTypeDNS      = "dns"
	ResourceTypeCIDR     = "cidr"
	ResourceTypeInternet = "internet"
)

// IP stack variants for dns resources.
const (
	IPStackDual     = "dual"
	IPStackIPv4Only = "ipv4_only"
	IPStackIPv6Only = "ipv6_only"
)

// Filter restricts which traffic a resource accepts. Filters are applied
// live by the gateway; changing them never invalidates existing flows.
type Filter struct {
	Protocol  string `json:"protocol"` // tcp, udp, icmp
	PortStart int    `json:"port_range_start,omitempty"`
	PortEnd   int    `json:"port_range_end,omitempty"`
}

// Resource is a network destination. Type, Address and IPStack are breaking
// attributes: changing any of them invalidates existing flows.
type Resource struct {
	ID        uuid.UUID `json:"id" db:"id"`
	AccountID uuid.UUID `json:"account_id" db:"account_id"`
	Type      string    `json:"type" db:"type"`
	Name      string    `json:"name" db:"name"`
	Address   string    `json:"address" db:"address"`
	IPStack   *string   `json:"ip_stack,omitempty" db:"ip_stack"`
	Filters   []Filter  `json:"filters" db:"filters"`
	Lifecycle
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ResourceConnection joins a resource to a gateway group that serves it.
type ResourceConnection struct {
	AccountID      uuid.UUID `json:"account_id" db:"account_id"`
	ResourceID     uuid.UUID `json:"resource_id" db:"resource_id"`
	GatewayGroupID uuid.UUID `json:"gateway_group_id" db:"gateway_group_id"`
}
