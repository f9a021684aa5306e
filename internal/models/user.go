package models

import "time"

// Group names that grant capabilities.
const (
	GroupManager      = "Manager"
	GroupDeliveryCrew = "Delivery_crew"
)

// User is an account known to the API. Registration and credentials live elsewhere.
type User struct {
	ID        int64     `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email" db:"email"`
	FirstName string    `json:"first_name,omitempty" db:"first_name"`
	LastName  string    `json:"last_name,omitempty" db:"last_name"`
	IsAdmin   bool      `json:"-" db:"is_admin"`
	CreatedAt time.Time `json:"-" db:"created_at"`
}
