// Package auth は登録・ログイン・ログアウトと認可判定を提供します。
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/logging"
	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/session"
	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/users"
)

var (
	// ErrInvalidCredentials はメール不明とパスワード不一致を区別せずに返します。
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden は管理者権限がない場合に返します。
	ErrForbidden = errors.New("forbidden")
)

// SessionRevoker はロール変更時に対象ユーザーのセッションを失効させます。
type SessionRevoker interface {
	RevokeSessions(ctx context.Context, email string) error
}

// Manager は認証フローをまとめた構造体です。
type Manager struct {
	users    users.Repository
	sessions session.Store
	hasher   *Hasher
	revoker  SessionRevoker
	logger   logging.Logger
}

// NewManager は認証マネージャーを作成します。revoker が nil ならセッションを同期的に削除します。
func NewManager(repo users.Repository, sessions session.Store, hasher *Hasher, revoker SessionRevoker, logger logging.Logger) *Manager {
	if revoker == nil {
		revoker = InlineRevoker{Sessions: sessions}
	}
	return &Manager{
		users:    repo,
		sessions: sessions,
		hasher:   hasher,
		revoker:  revoker,
		logger:   logger,
	}
}

// Signup はユーザーを作成してセッションを発行します。
// 検証エラーは *ValidationError、重複メールは users.ErrDuplicateEmail を返します。
func (m *Manager) Signup(ctx context.Context, form SignupForm) (*users.User, string, error) {
	if err := validateForm(&form); err != nil {
		return nil, "", err
	}

	hash, err := m.hasher.Hash(form.Password)
	if err != nil {
		return nil, "", err
	}

	user := &users.User{
		Name:         form.Name,
		Email:        form.Email,
		PasswordHash: hash,
	}
	if err := m.users.InsertFirstAdminOrUser(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := m.sessions.Create(ctx, session.Data{Name: user.Name, Email: user.Email})
	if err != nil {
		return nil, "", fmt.Errorf("auth: create session: %w", err)
	}

	m.logger.Info(ctx, "user signed up", "email", user.Email, "role", user.Role)
	return user, token, nil
}

// Login は資格情報を検証してセッションを発行します。
func (m *Manager) Login(ctx context.Context, form LoginForm) (*users.User, string, error) {
	if err := validateForm(&form); err != nil {
		return nil, "", err
	}

	user, err := m.users.FindByEmail(ctx, form.Email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			m.hasher.VerifyDummy(form.Password)
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if !m.hasher.Verify(form.Password, user.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := m.sessions.Create(ctx, session.Data{Name: user.Name, Email: user.Email})
	if err != nil {
		return nil, "", fmt.Errorf("auth: create session: %w", err)
	}
	return user, token, nil
}

// Logout はセッションを削除します。既に存在しない場合も成功扱いです。
func (m *Manager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.sessions.Delete(ctx, token)
}

// Resolve はトークンを有効なセッションに解決します。
func (m *Manager) Resolve(ctx context.Context, token string) (*session.Data, error) {
	if token == "" {
		return nil, session.ErrNotFound
	}
	return m.sessions.Get(ctx, token)
}

// Authorize はセッションのスナップショットではなくユーザーストアの現在のロールで管理者か判定します。
func (m *Manager) Authorize(ctx context.Context, email string) (*users.User, error) {
	user, err := m.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if !user.IsAdmin() {
		return nil, ErrForbidden
	}
	return user, nil
}

// ListUsers は全ユーザーを返します。
func (m *Manager) ListUsers(ctx context.Context) ([]users.User, error) {
	return m.users.ListAll(ctx)
}

// SetRole は対象ユーザーのロールを変更します。一致するユーザーがなければ何もしません。
// 変更があった場合は対象ユーザーのセッション失効を依頼します。
func (m *Manager) SetRole(ctx context.Context, email string, role users.Role) (bool, error) {
	changed, err := m.users.UpdateRole(ctx, email, role)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	m.logger.Info(ctx, "role changed", "email", email, "role", role)
	if err := m.revoker.RevokeSessions(ctx, email); err != nil {
		m.logger.Warn(ctx, "failed to revoke sessions after role change", "email", email, "error", err)
	}
	return true, nil
}

// InlineRevoker はセッションストアから直接削除する SessionRevoker です。
type InlineRevoker struct {
	Sessions session.Store
}

func (r InlineRevoker) RevokeSessions(ctx context.Context, email string) error {
	_, err := r.Sessions.DeleteAllForEmail(ctx, email)
	return err
}
