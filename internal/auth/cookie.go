package auth

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

const (
	// SessionCookieName はセッショントークンを運ぶ署名付きクッキーの名前です。
	SessionCookieName = "sid"
	sessionKeyToken   = "token"
)

// NewCookieStore はセッショントークン用の署名付きクッキーストアを作成します。
func NewCookieStore(secret string, ttl time.Duration, secure bool) sessions.Store {
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return store
}

// CookieMiddleware は gin-contrib/sessions をルーターに組み込みます。
func CookieMiddleware(store sessions.Store) gin.HandlerFunc {
	return sessions.Sessions(SessionCookieName, store)
}

func tokenFromCookie(c *gin.Context) string {
	token, _ := sessions.Default(c).Get(sessionKeyToken).(string)
	return token
}

func issueCookie(c *gin.Context, token string) error {
	s := sessions.Default(c)
	s.Set(sessionKeyToken, token)
	return s.Save()
}

func clearCookie(c *gin.Context) error {
	s := sessions.Default(c)
	s.Clear()
	s.Options(sessions.Options{Path: "/", MaxAge: -1})
	return s.Save()
}
