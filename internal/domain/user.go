package domain

import "time"

// Delivery channels for second-factor codes.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// User is the account record owned by the user directory.
type User struct {
	UserID           string    `json:"id" dynamodbav:"user_id"`
	Username         string    `json:"username" dynamodbav:"username"`
	Email            string    `json:"email" dynamodbav:"email"`
	Phone            *string   `json:"phone" dynamodbav:"phone"`
	PasswordHash     string    `json:"-" dynamodbav:"password_hash"`
	Role             string    `json:"role" dynamodbav:"role"`
	FirstName        string    `json:"first_name" dynamodbav:"first_name"`
	LastName         string    `json:"last_name" dynamodbav:"last_name"`
	PhoneConfirmed   bool      `json:"phone_confirmed" dynamodbav:"phone_confirmed"`
	TwoFactorEnabled bool      `json:"two_factor_enabled" dynamodbav:"two_factor_enabled"`
	TwoFactorChannel string    `json:"two_factor_channel,omitempty" dynamodbav:"two_factor_channel"` // "email" | "sms"
	Enable           bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt        time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt        time.Time `json:"updated" dynamodbav:"updated_at"`
}

// Principal is the slice of a User that travels in a session claim.
type Principal struct {
	UserID   string
	Username string
	Role     string
}

// Principal returns the identity carried by session tokens for u.
func (u *User) Principal() Principal {
	return Principal{UserID: u.UserID, Username: u.Username, Role: u.Role}
}

// SecondFactorChannel resolves where a login code for u is delivered.
// SMS is used only when explicitly chosen and a confirmed phone is on file.
func (u *User) SecondFactorChannel() string {
	if u.TwoFactorChannel == ChannelSMS && u.Phone != nil && u.PhoneConfirmed {
		return ChannelSMS
	}
	return ChannelEmail
}

type CreateUserRequest struct {
	Username  string  `json:"username" validate:"required,min=3,max=64,excludes=@"` // "@" is reserved for emails in login lookups
	Password  string  `json:"password" validate:"required,min=8,max=72"`
	Email     string  `json:"email" validate:"required,email"`
	Phone     *string `json:"phone"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
}
