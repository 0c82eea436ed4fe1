package domain

// Operator roles of the admin surface. Stage ownership references these by
// name through Stage.OwnerRole.
const (
	RoleAdmin           = "admin"
	RoleLegalAdmin      = "legal_admin"
	RoleLegalCounsel    = "legal_counsel"
	RoleContractManager = "contract_manager"
)
