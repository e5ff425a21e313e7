// Package users はユーザー（認証情報）の永続化を扱います。
package users

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role はユーザーの権限レベルです。
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid は既知のロールかどうかを返します。
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// User は users コレクションのドキュメントです。
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password"`
	Role         Role               `bson:"role"`
	// Bootstrap は最初の管理者枠を獲得したドキュメントだけが true を持ちます。
	Bootstrap bool      `bson:"bootstrap,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

// IsAdmin は管理者かどうかを返します。
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
