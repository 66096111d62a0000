package dto

type RegisterDTO struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginDTO accepts the identifier under any of the three aliases the
// clients send.
type LoginDTO struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

type PasswordResetRequestDTO struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
}

type PasswordResetCompleteDTO struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type EmailVerifyCompleteDTO struct {
	Token string `json:"token" binding:"required"`
}

type ChangePasswordDTO struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}
