package models

// User is an operator account allowed to drive the radiators through the API.
// The bcrypt hash never leaves the repository layer.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
