// Package userstest はテスト用のインメモリ users.Repository を提供します。
package userstest

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/users"
)

// Repository は users.Repository のインメモリ実装です。
type Repository struct {
	mu    sync.Mutex
	users []users.User

	// Err が設定されていれば全操作がこのエラーを返します。
	Err error
}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, u := range r.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, users.ErrNotFound
}

func (r *Repository) Insert(ctx context.Context, u *users.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(u)
}

func (r *Repository) InsertFirstAdminOrUser(ctx context.Context, u *users.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if len(r.users) == 0 {
		u.Role = users.RoleAdmin
		u.Bootstrap = true
	} else {
		u.Role = users.RoleUser
		u.Bootstrap = false
	}
	return r.insertLocked(u)
}

func (r *Repository) UpdateRole(ctx context.Context, email string, role users.Role) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	for i := range r.users {
		if r.users[i].Email == email {
			if r.users[i].Role == role {
				return false, nil
			}
			r.users[i].Role = role
			return true, nil
		}
	}
	return false, nil
}

func (r *Repository) CountAll(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	return int64(len(r.users)), nil
}

func (r *Repository) ListAll(ctx context.Context) ([]users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([]users.User, len(r.users))
	copy(out, r.users)
	return out, nil
}

func (r *Repository) insertLocked(u *users.User) error {
	if r.Err != nil {
		return r.Err
	}
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return users.ErrDuplicateEmail
		}
	}
	u.ID = primitive.NewObjectID()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	r.users = append(r.users, *u)
	return nil
}

var _ users.Repository = (*Repository)(nil)
