// Package web は画面（HTML）の HTTP インターフェースを提供します。
package web

import (
	"fmt"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/auth"
	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/logging"
)

// Options はルーター構築に必要な依存です。
type Options struct {
	Auth         *auth.Manager
	CookieStore  sessions.Store
	Logger       logging.Logger
	AllowOrigins []string // 空なら CORS ミドルウェアを組み込まない
}

// NewRouter はミドルウェアとルーティングを設定した gin.Engine を返します。
func NewRouter(opts Options) (*gin.Engine, error) {
	if opts.Auth == nil || opts.CookieStore == nil || opts.Logger == nil {
		return nil, fmt.Errorf("web: auth manager, cookie store and logger are required")
	}

	tmpl, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("web: load templates: %w", err)
	}
	images, err := memberImages()
	if err != nil {
		return nil, fmt.Errorf("web: load images: %w", err)
	}

	router := gin.New()
	// /promote/:email の %2F を区切りとして扱わない（値は UnescapePathValues で復元される）
	router.UseRawPath = true
	router.SetHTMLTemplate(tmpl)
	router.Use(gin.Recovery(), logging.Middleware(opts.Logger), errorPages(opts.Logger))

	if len(opts.AllowOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = opts.AllowOrigins
		corsConfig.AllowCredentials = true
		router.Use(cors.New(corsConfig))
	}

	router.Use(auth.CookieMiddleware(opts.CookieStore))

	setupRoutes(router, newHandlers(opts.Auth, opts.Logger, images))
	return router, nil
}

func setupRoutes(router *gin.Engine, h *Handlers) {
	m := h.auth

	router.GET("/health", h.Health)
	router.GET("/static/*filepath", serveStatic)

	router.GET("/", h.Home)
	router.GET("/signup", h.SignupPage)
	router.POST("/signup", h.Signup)
	router.GET("/login", h.LoginPage)
	router.POST("/login", h.Login)
	router.GET("/logout", h.Logout)

	members := router.Group("")
	members.Use(m.RequireLogin())
	{
		members.GET("/members", h.Members)
	}

	// 権限変更系も含め、管理者操作はすべて個別に権限を確認する
	admin := router.Group("")
	admin.Use(m.RequireLogin(), m.RequireAdmin(forbidden))
	{
		admin.GET("/admin", h.Admin)
		admin.GET("/promote/:email", h.Promote)
		admin.GET("/demote/:email", h.Demote)
	}

	router.NoRoute(notFound)
}
