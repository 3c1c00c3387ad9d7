package cqrs

// LoginCommand and SignUpCommand carry credentials as given; the backend
// decides whether they are acceptable.
type LoginCommand struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type SignUpCommand struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// PasswordResetCommand requests a reset mail. When UseCurrentUserEmail is
// set, Email is replaced by the current session's address.
type PasswordResetCommand struct {
	Email               string `json:"email"`
	UseCurrentUserEmail bool   `json:"useCurrentUserEmail"`
}

