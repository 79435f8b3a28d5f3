package domain

import "time"

const DefaultLanguage = "en"

// User is a farmer account keyed by phone number. Only active users may
// receive tokens.
type User struct {
	UserID    string    `json:"id" dynamodbav:"user_id"`
	Name      string    `json:"name" dynamodbav:"name"`
	Phone     string    `json:"phone" dynamodbav:"phone"`
	Email     *string   `json:"email" dynamodbav:"email"`
	Language  string    `json:"language" dynamodbav:"language"`
	IsActive  bool      `json:"is_active" dynamodbav:"is_active"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}

// Profile holds the user-editable fields replaced when an inactive account
// registers again.
type Profile struct {
	Name     string
	Email    *string
	Language string
}
