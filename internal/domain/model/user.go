package model

import "github.com/google/uuid"

// User is owned by the external identity collaborator. This service only reads it.
type User struct {
	ID           uuid.UUID
	FullName     string
	Email        string
	ProfilePic   string
	PasswordHash string
	CreatedAt    int64
}

// Profile is the public, password-stripped projection of a User.
type Profile struct {
	ID         uuid.UUID
	FullName   string
	Email      string
	ProfilePic string
}

// Public strips credentials.
func (u *User) Public() Profile {
	return Profile{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
	}
}

// UnknownProfile is used when a referenced user cannot be resolved;
// notifications still carry the identity.
func UnknownProfile(id uuid.UUID) Profile {
	return Profile{ID: id}
}
