package models

import "time"

// Plan is a subscription plan held by a customer.
type Plan string

const (
	PlanNone    Plan = "none"
	PlanPremium Plan = "premium"
	PlanFamily  Plan = "family"
)

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	switch p {
	case PlanNone, PlanPremium, PlanFamily:
		return true
	}
	return false
}

// User is a customer (or administrator) profile. Its ID is the purchaser
// reference stored on tickets.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CPF       string    `json:"cpf"`
	Age       *int      `json:"age"`
	Plan      Plan      `json:"plan"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// Field returns the value of a queryable field by name.
func (u User) Field(name string) any {
	switch name {
	case "id":
		return u.ID
	case "name":
		return u.Name
	case "email":
		return u.Email
	case "plan":
		return string(u.Plan)
	case "is_admin":
		return u.IsAdmin
	case "created_at":
		return u.CreatedAt
	}
	return nil
}

// UserForm is the editable part of a profile. CPF and email are read-only.
type UserForm struct {
	Name    string     `json:"name"`
	Age     NumberText `json:"age"`
	Plan    Plan       `json:"plan"`
	IsAdmin bool       `json:"is_admin"`
}

// Principal is the authenticated identity behind a session.
type Principal struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Credential is a login identity owned by the auth collaborator.
type Credential struct {
	UID          string
	Email        string
	PasswordHash string
	Disabled     bool
	CreatedAt    time.Time
}
