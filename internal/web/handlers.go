package web

import (
	"errors"
	"math/rand/v2"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/auth"
	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/logging"
	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/users"
)

// Handlers は画面系のハンドラーです。
type Handlers struct {
	auth   *auth.Manager
	logger logging.Logger
	images []string
	pick   func(n int) int
}

func newHandlers(m *auth.Manager, logger logging.Logger, images []string) *Handlers {
	return &Handlers{
		auth:   m,
		logger: logger,
		images: images,
		pick:   rand.IntN,
	}
}

// Home は GET / のハンドラーです。
func (h *Handlers) Home(c *gin.Context) {
	data, err := h.auth.CurrentSession(c)
	if err != nil {
		fail(c, err)
		return
	}
	if data != nil {
		c.Redirect(http.StatusFound, "/members")
		return
	}
	c.HTML(http.StatusOK, "home.html", nil)
}

func (h *Handlers) SignupPage(c *gin.Context) {
	c.HTML(http.StatusOK, "signup.html", nil)
}

func (h *Handlers) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", nil)
}

// Signup は POST /signup のハンドラーです。
// 入力エラーは 200 でエラー画面を返し、状態は一切変更しません。
func (h *Handlers) Signup(c *gin.Context) {
	var form auth.SignupForm
	if err := c.ShouldBind(&form); err != nil {
		invalidSignup(c, auth.NewValidationError(err).Message)
		return
	}

	_, token, err := h.auth.Signup(c.Request.Context(), form)
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			invalidSignup(c, verr.Message)
		case errors.Is(err, users.ErrDuplicateEmail):
			invalidSignup(c, "An account with that email already exists.")
		default:
			fail(c, err)
		}
		return
	}

	if err := h.auth.StartSession(c, token); err != nil {
		fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/members")
}

// Login は POST /login のハンドラーです。
func (h *Handlers) Login(c *gin.Context) {
	var form auth.LoginForm
	if err := c.ShouldBind(&form); err != nil {
		invalidLogin(c, auth.NewValidationError(err).Message)
		return
	}

	_, token, err := h.auth.Login(c.Request.Context(), form)
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			invalidLogin(c, verr.Message)
		case errors.Is(err, auth.ErrInvalidCredentials):
			// メール不明とパスワード不一致は同じ表示にする
			renderMessage(c, http.StatusOK, messageView{
				Title:    "Login Failed",
				Heading:  "Login failed!",
				Message:  "Incorrect email or password.",
				RetryURL: "/login",
			})
		default:
			fail(c, err)
		}
		return
	}

	if err := h.auth.StartSession(c, token); err != nil {
		fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/members")
}

// Members は GET /members のハンドラーです。RequireLogin の後で呼ばれます。
func (h *Handlers) Members(c *gin.Context) {
	data, err := h.auth.CurrentSession(c)
	if err != nil {
		fail(c, err)
		return
	}
	if data == nil {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	image := ""
	if len(h.images) > 0 {
		image = h.images[h.pick(len(h.images))]
	}
	c.HTML(http.StatusOK, "members.html", gin.H{
		"Name":  data.Name,
		"Image": image,
	})
}

// Logout は GET /logout のハンドラーです。
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.auth.EndSession(c); err != nil {
		fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

// Admin は GET /admin のハンドラーです。RequireAdmin の後で呼ばれます。
func (h *Handlers) Admin(c *gin.Context) {
	list, err := h.auth.ListUsers(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.HTML(http.StatusOK, "admin.html", gin.H{
		"Users": list,
	})
}

// Promote は GET /promote/:email のハンドラーです。
func (h *Handlers) Promote(c *gin.Context) {
	h.setRole(c, users.RoleAdmin)
}

// Demote は GET /demote/:email のハンドラーです。
func (h *Handlers) Demote(c *gin.Context) {
	h.setRole(c, users.RoleUser)
}

// setRole は一致するユーザーがいなくても /admin にリダイレクトします。
func (h *Handlers) setRole(c *gin.Context, role users.Role) {
	email := c.Param("email")
	changed, err := h.auth.SetRole(c.Request.Context(), email, role)
	if err != nil {
		fail(c, err)
		return
	}

	logging.FromContext(c, h.logger).Info(c.Request.Context(), "role mutation",
		"target", email,
		"role", role,
		"changed", changed,
		"by", auth.CurrentAdmin(c).Email,
	)
	c.Redirect(http.StatusFound, "/admin")
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func invalidSignup(c *gin.Context, msg string) {
	renderMessage(c, http.StatusOK, messageView{
		Title:    "Invalid Signup",
		Heading:  "Invalid input!",
		Message:  msg,
		RetryURL: "/signup",
	})
}

func invalidLogin(c *gin.Context, msg string) {
	renderMessage(c, http.StatusOK, messageView{
		Title:    "Invalid Login",
		Heading:  "Invalid login!",
		Message:  msg,
		RetryURL: "/login",
	})
}
