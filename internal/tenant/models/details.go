package models

// TenantDetails is tenant metadata with aggregate counts for the admin
// surface.
type TenantDetails struct {
	*Tenant
	UserCount   int `json:"user_count"`
	ClientCount int `json:"client_count"`
}
