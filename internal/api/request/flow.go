package request

// AuthorizeFlow asks for access to a resource through a gateway on behalf
// of the authenticated client session.
type AuthorizeFlow struct {
	ClientID   string `json:"client_id" validate:"required,uuid"`
	GatewayID  string `json:"gateway_id" validate:"required,uuid"`
	ResourceID string `json:"resource_id" validate:"required,uuid"`
}
