package domain

import "time"

const RoleCustomer = "customer"

type Buyer struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
