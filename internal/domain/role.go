package domain

// Role names carried in the session claim as the principal's authority.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
