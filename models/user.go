package models

import "fmt"

// User is a read-only directory entry used for display
type User struct {
	ID          int    `json:"id" bson:"_id"`
	DisplayName string `json:"displayName" bson:"name"`
	AvatarRef   string `json:"avatarRef,omitempty" bson:"avatar_ref,omitempty"`
	IsAdmin     bool   `json:"isAdmin,omitempty" bson:"is_admin,omitempty"`
}

// FallbackUser is what we show for a user id missing from the directory
func FallbackUser(id int) User {
	return User{ID: id, DisplayName: fmt.Sprintf("User %d", id)}
}
