package domain

import (
	"strings"
	"time"
)

// User represents a registered DevHub member.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Skills       []string  `json:"skills"`
	Bio          string    `json:"bio,omitempty"`
	GitHub       string    `json:"github,omitempty"`
	LinkedIn     string    `json:"linkedin,omitempty"`
	Website      string    `json:"website,omitempty"`
	ProfileStep  int       `json:"profile_step"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PublicUser is the projection of a user that is safe to return to clients.
type PublicUser struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Role     string   `json:"role"`
	Skills   []string `json:"skills,omitempty"`
	Bio      string   `json:"bio,omitempty"`
	GitHub   string   `json:"github,omitempty"`
	LinkedIn string   `json:"linkedin,omitempty"`
	Website  string   `json:"website,omitempty"`
}

// Public returns the client-safe projection of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		Skills:   u.Skills,
		Bio:      u.Bio,
		GitHub:   u.GitHub,
		LinkedIn: u.LinkedIn,
		Website:  u.Website,
	}
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ParseSkills splits a comma-separated skill list, trimming entries and
// dropping empty ones.
func ParseSkills(raw string) []string {
	parts := strings.Split(raw, ",")
	skills := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			skills = append(skills, s)
		}
	}
	return skills
}

// TokenPair holds an access and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"-"`
}

// Session is the result of a successful signup or login.
type Session struct {
	Tokens TokenPair
	User   PublicUser
}
