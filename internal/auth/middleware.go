package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/logging"
	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/session"
	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/users"
)

const (
	// ContextSessionKey はハンドラー間で有効なセッションを共有するためのキーです。
	ContextSessionKey = "auth.session"
	// ContextAdminKey は RequireAdmin を通過したユーザーを共有するためのキーです。
	ContextAdminKey = "auth.admin"
)

// CurrentSession は有効なセッションを返します。ログインしていなければ nil。
// RequireLogin の後では保存済みの値を使い、ストアを再度参照しません。
func (m *Manager) CurrentSession(c *gin.Context) (*session.Data, error) {
	if v, ok := c.Get(ContextSessionKey); ok {
		if data, ok := v.(*session.Data); ok {
			return data, nil
		}
	}

	data, err := m.Resolve(c.Request.Context(), tokenFromCookie(c))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	c.Set(ContextSessionKey, data)
	return data, nil
}

// StartSession はトークンをクッキーに書き込みます。
func (m *Manager) StartSession(c *gin.Context, token string) error {
	return issueCookie(c, token)
}

// EndSession はセッションを削除してクッキーを消去します。
func (m *Manager) EndSession(c *gin.Context) error {
	if err := m.Logout(c.Request.Context(), tokenFromCookie(c)); err != nil {
		return err
	}
	return clearCookie(c)
}

// RequireLogin はセッションを検証するミドルウェアを返します。
// セッションがなければ /login にリダイレクトします。ユーザーストアには触れません。
func (m *Manager) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := m.CurrentSession(c)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if data == nil {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin は管理者権限を検証するミドルウェアを返します。RequireLogin の後に置きます。
// 権限がなければ forbidden を呼び出して以降の処理を中断します。
func (m *Manager) RequireAdmin(forbidden gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := m.CurrentSession(c)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if data == nil {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		admin, err := m.Authorize(c.Request.Context(), data.Email)
		if err != nil {
			if errors.Is(err, ErrForbidden) {
				logging.FromContext(c, m.logger).Warn(c.Request.Context(), "admin access denied", "email", data.Email)
				forbidden(c)
				c.Abort()
				return
			}
			abortWithError(c, err)
			return
		}

		c.Set(ContextAdminKey, admin)
		c.Next()
	}
}

// CurrentAdmin は RequireAdmin を通過したユーザーを返します。
func CurrentAdmin(c *gin.Context) *users.User {
	v, ok := c.Get(ContextAdminKey)
	if !ok {
		return nil
	}
	u, _ := v.(*users.User)
	return u
}

// abortWithError はエラーを記録して中断します。エラー画面の描画は上位のミドルウェアに任せます。
func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Status(http.StatusInternalServerError)
	c.Abort()
}
