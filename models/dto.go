package models

type RegisterRequest struct {
	Username    string   `json:"username" binding:"required,min=3,max=50"`
	Email       string   `json:"email" binding:"required,email"`
	Password    string   `json:"password" binding:"required,min=6"`
	DisplayName string   `json:"display_name"`
	Role        UserRole `json:"role,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// SubmitParams accompanies the multipart upload on submission.
type SubmitParams struct {
	Deadline string `form:"deadline"`
	Notes    string `form:"notes"`
}

// TransitionRequest carries the compare-and-swap token: ExpectedTime must
// equal the Time of the latest version the client saw.
type TransitionRequest struct {
	ExpectedTime        int64  `json:"expected_time" binding:"required"`
	Confirmed           bool   `json:"confirmed"`
	ReadyForPublication bool   `json:"ready_for_publication"`
	Notes               string `json:"notes"`
}

type PublishRequest struct {
	ExpectedTime int64    `json:"expected_time" binding:"required"`
	Repository   string   `json:"repository"`
	Keywords     []string `json:"keywords"`
}

type QueueParams struct {
	Queue          string `form:"queue"`
	Search         string `form:"search"`
	DeadlineBefore string `form:"deadline_before"`
	Overdue        bool   `form:"overdue"`
}
