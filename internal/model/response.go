package model

// Wire shapes of the auth backend. Field names follow the backend contract,
// including its Spanish aliases.

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ErrorResponse struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type WireRole struct {
	ID     int    `json:"id"`
	Nombre string `json:"nombre"`
}

type WireUser struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Nombres   string     `json:"nombres"`
	Apellidos string     `json:"apellidos"`
	Roles     []WireRole `json:"roles"`
}

type LoginResponse struct {
	Token           string   `json:"token"`
	RefreshToken    string   `json:"refreshToken,omitempty"`
	TokenDurationMs int64    `json:"tokenDurationMs,omitempty"`
	Usuario         WireUser `json:"usuario"`
}

type RefreshResponse struct {
	Token           string `json:"token"`
	RefreshToken    string `json:"refreshToken,omitempty"`
	TokenDurationMs int64  `json:"tokenDurationMs,omitempty"`
}

type VerifyResponse struct {
	Valid   bool     `json:"valid"`
	Usuario WireUser `json:"usuario"`
}
