package model

import "time"

// Account is a user record of the development auth backend.
type Account struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"password_hash"`
	Names        string     `json:"nombres"`
	Surnames     string     `json:"apellidos"`
	Roles        []WireRole `json:"roles"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (a Account) Wire() WireUser {
	return WireUser{
		ID:        a.ID,
		Email:     a.Email,
		Nombres:   a.Names,
		Apellidos: a.Surnames,
		Roles:     append([]WireRole(nil), a.Roles...),
	}
}

type AuthClaims struct {
	UserID  string
	Email   string
	Type    string
	TokenID string
}
