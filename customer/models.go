// Package customer stores policy holders (users) and their accounts.
package customer

import "time"

// User is a policy holder keyed by email.
// It mirrors the users table and carries no JSON annotations so presentation
// layers can shape it as they need.
type User struct {
	ID        string
	Firstname string
	Email     string
	DOB       *time.Time
	Address   string
	Phone     string
	State     string
	Zip       string
	Gender    string
	UserType  string
	CreatedAt time.Time
}

// Account is a user account. Names are not unique.
type Account struct {
	ID          string
	AccountName string
	AccountType string
	UserID      string
	CreatedAt   time.Time
}

// CreateUserParams contains write parameters for creating users.
type CreateUserParams struct {
	ID        string
	Firstname string
	Email     string
	DOB       *time.Time
	Address   string
	Phone     string
	State     string
	Zip       string
	Gender    string
	UserType  string
}

// CreateAccountParams contains write parameters for creating accounts.
type CreateAccountParams struct {
	ID          string
	AccountName string
	AccountType string
	UserID      string
}
