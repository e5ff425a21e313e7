package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/auth"
	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/logging"
	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/session"
	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/users"
	"github.com/Gillsehaj533/COMP-2537-Assignment-1/internal/users/userstest"
)

type testApp struct {
	router http.Handler
	repo   *userstest.Repository
	store  *session.MemoryStore
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := userstest.NewRepository()
	store := session.NewMemoryStore(time.Hour)
	manager := auth.NewManager(repo, store, auth.NewHasher(bcrypt.MinCost), nil, logging.Discard())

	router, err := NewRouter(Options{
		Auth:        manager,
		CookieStore: auth.NewCookieStore("cookie-secret", time.Hour, false),
		Logger:      logging.Discard(),
	})
	require.NoError(t, err)
	return &testApp{router: router, repo: repo, store: store}
}

// client はクッキーを保持して連続したリクエストを送ります。
type client struct {
	t       *testing.T
	app     *testApp
	cookies map[string]*http.Cookie
}

func (a *testApp) client(t *testing.T) *client {
	return &client{t: t, app: a, cookies: map[string]*http.Cookie{}}
}

func (cl *client) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range cl.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	cl.app.router.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(cl.cookies, c.Name)
			continue
		}
		cl.cookies[c.Name] = c
	}
	return rec
}

func (cl *client) get(path string) *httptest.ResponseRecorder {
	return cl.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (cl *client) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return cl.do(req)
}

func (cl *client) signup(name, email, password string) *httptest.ResponseRecorder {
	return cl.post("/signup", url.Values{"name": {name}, "email": {email}, "password": {password}})
}

func (cl *client) login(email, password string) *httptest.ResponseRecorder {
	return cl.post("/login", url.Values{"email": {email}, "password": {password}})
}

func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, location, rec.Header().Get("Location"))
}

func TestSignupFirstUserBecomesAdminAndSeesMembers(t *testing.T) {
	app := newTestApp(t)
	alice := app.client(t)

	rec := alice.signup("Alice", "a@x.com", "secret1")
	assertRedirect(t, rec, "/members")

	u, err := app.repo.FindByEmail(t.Context(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, users.RoleAdmin, u.Role)

	rec = alice.get("/members")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Hello, Alice.")
	assert.Contains(t, rec.Body.String(), "/static/images/img")

	bob := app.client(t)
	assertRedirect(t, bob.signup("Bob", "b@x.com", "secret2"), "/members")
	u, err = app.repo.FindByEmail(t.Context(), "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, users.RoleUser, u.Role)
}

func TestSignupValidationFailure(t *testing.T) {
	app := newTestApp(t)
	cl := app.client(t)

	rec := cl.signup("Alice", "not-an-email", "secret1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid input!")
	assert.Contains(t, rec.Body.String(), "Please enter a valid email address.")
	assert.Empty(t, rec.Result().Cookies())

	rec = cl.signup(strings.Repeat("n", 21), "a@x.com", "secret1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Name must be at most 20 characters.")

	n, err := app.repo.CountAll(t.Context())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSignupPasswordOverByteLimit(t *testing.T) {
	app := newTestApp(t)

	// 30 文字だが 120 バイト
	rec := app.client(t).signup("Alice", "a@x.com", strings.Repeat("😀", 30))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid input!")
	assert.Contains(t, rec.Body.String(), "Password must be at most 72 bytes.")

	n, err := app.repo.CountAll(t.Context())
	require.NoError(t, err)
	assert.Zero(t, n)

	assertRedirect(t, app.client(t).signup("Alice", "a@x.com", strings.Repeat("ü", 30)), "/members")
}

func TestSignupDuplicateEmail(t *testing.T) {
	app := newTestApp(t)
	assertRedirect(t, app.client(t).signup("Alice", "a@x.com", "secret1"), "/members")

	rec := app.client(t).signup("Eve", "a@x.com", "secret9")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")
}

func TestLoginFailureMessagesMatch(t *testing.T) {
	app := newTestApp(t)
	assertRedirect(t, app.client(t).signup("Alice", "a@x.com", "secret1"), "/members")

	wrongPassword := app.client(t).login("a@x.com", "wrong")
	unknownEmail := app.client(t).login("nobody@x.com", "secret1")

	require.Equal(t, http.StatusOK, wrongPassword.Code)
	require.Equal(t, http.StatusOK, unknownEmail.Code)
	assert.Contains(t, wrongPassword.Body.String(), "Incorrect email or password.")
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
	assert.Empty(t, wrongPassword.Result().Cookies())
	assert.Empty(t, unknownEmail.Result().Cookies())
}

func TestLoginValidationFailure(t *testing.T) {
	app := newTestApp(t)
	rec := app.client(t).login("bad", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid login!")
}

func TestLoginAndLogout(t *testing.T) {
	app := newTestApp(t)
	assertRedirect(t, app.client(t).signup("Alice", "a@x.com", "secret1"), "/members")

	cl := app.client(t)
	assertRedirect(t, cl.login("a@x.com", "secret1"), "/members")
	assertRedirect(t, cl.get("/"), "/members")

	stale := make([]*http.Cookie, 0, len(cl.cookies))
	for _, c := range cl.cookies {
		stale = append(stale, c)
	}

	assertRedirect(t, cl.get("/logout"), "/")
	assertRedirect(t, cl.get("/members"), "/login")

	// ログアウト前のクッキーを再送してもアクセスできない
	req := httptest.NewRequest(http.MethodGet, "/members", nil)
	for _, c := range stale {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	assertRedirect(t, rec, "/login")

	// 二回目のログアウトもエラーにならない
	assertRedirect(t, cl.get("/logout"), "/")
}

func TestPublicPages(t *testing.T) {
	app := newTestApp(t)
	cl := app.client(t)

	for _, path := range []string{"/", "/signup", "/login"} {
		rec := cl.get(path)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html", path)
	}

	assertRedirect(t, cl.get("/members"), "/login")

	rec := cl.get("/does-not-exist")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "404")

	rec = cl.get("/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAdminGate(t *testing.T) {
	app := newTestApp(t)
	alice := app.client(t)
	bob := app.client(t)
	assertRedirect(t, alice.signup("Alice", "a@x.com", "secret1"), "/members")
	assertRedirect(t, bob.signup("Bob", "b@x.com", "secret2"), "/members")

	rec := bob.get("/admin")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not authorized!")

	rec = alice.get("/admin")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "a@x.com")
	assert.Contains(t, body, "b@x.com")
	assert.Contains(t, body, "/promote/b@x.com")
	assert.Contains(t, body, "/demote/a@x.com")

	assertRedirect(t, app.client(t).get("/admin"), "/login")
}

func TestRoleMutationRequiresAdmin(t *testing.T) {
	app := newTestApp(t)
	assertRedirect(t, app.client(t).signup("Alice", "a@x.com", "secret1"), "/members")
	bob := app.client(t)
	assertRedirect(t, bob.signup("Bob", "b@x.com", "secret2"), "/members")

	// 一般ユーザーが URL を直接叩いても昇格できない
	rec := bob.get("/promote/b@x.com")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	u, err := app.repo.FindByEmail(t.Context(), "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, users.RoleUser, u.Role)

	assertRedirect(t, app.client(t).get("/demote/a@x.com"), "/login")
}

func TestPromoteDemoteRoundTrip(t *testing.T) {
	app := newTestApp(t)
	alice := app.client(t)
	assertRedirect(t, alice.signup("Alice", "a@x.com", "secret1"), "/members")
	bob := app.client(t)
	assertRedirect(t, bob.signup("Bob", "b@x.com", "secret2"), "/members")

	assertRedirect(t, alice.get("/promote/b@x.com"), "/admin")
	u, err := app.repo.FindByEmail(t.Context(), "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, users.RoleAdmin, u.Role)

	// ロール変更で Bob のセッションは失効する
	assertRedirect(t, bob.get("/members"), "/login")

	assertRedirect(t, alice.get("/demote/b@x.com"), "/admin")
	u, err = app.repo.FindByEmail(t.Context(), "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, users.RoleUser, u.Role)

	// user を降格しても何も起きない
	assertRedirect(t, alice.get("/demote/b@x.com"), "/admin")
	u, err = app.repo.FindByEmail(t.Context(), "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, users.RoleUser, u.Role)
}

func TestPromoteThroughRenderedLinkWithReservedCharacters(t *testing.T) {
	app := newTestApp(t)
	alice := app.client(t)
	assertRedirect(t, alice.signup("Alice", "a@x.com", "secret1"), "/members")

	for _, email := range []string{"s/t@x.com", "x#y@x.com"} {
		assertRedirect(t, app.client(t).signup("Target", email, "secret2"), "/members")

		rec := alice.get("/admin")
		require.Equal(t, http.StatusOK, rec.Code)
		link := "/promote/" + url.PathEscape(email)
		require.Contains(t, rec.Body.String(), `href="`+link+`"`)

		assertRedirect(t, alice.get(link), "/admin")
		u, err := app.repo.FindByEmail(t.Context(), email)
		require.NoError(t, err)
		assert.Equal(t, users.RoleAdmin, u.Role, email)

		rec = alice.get("/admin")
		link = "/demote/" + url.PathEscape(email)
		require.Contains(t, rec.Body.String(), `href="`+link+`"`)
		assertRedirect(t, alice.get(link), "/admin")
		u, err = app.repo.FindByEmail(t.Context(), email)
		require.NoError(t, err)
		assert.Equal(t, users.RoleUser, u.Role, email)
	}
}

func TestPromoteUnknownEmailIsNoop(t *testing.T) {
	app := newTestApp(t)
	alice := app.client(t)
	assertRedirect(t, alice.signup("Alice", "a@x.com", "secret1"), "/members")

	before, err := app.repo.ListAll(t.Context())
	require.NoError(t, err)

	assertRedirect(t, alice.get("/promote/nobody@x.com"), "/admin")

	after, err := app.repo.ListAll(t.Context())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAdminStoreFailureRendersErrorPage(t *testing.T) {
	app := newTestApp(t)
	alice := app.client(t)
	assertRedirect(t, alice.signup("Alice", "a@x.com", "secret1"), "/members")

	app.repo.Err = assert.AnError
	rec := alice.get("/admin")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Something went wrong.")
}

func TestStaticAssets(t *testing.T) {
	app := newTestApp(t)
	cl := app.client(t)

	rec := cl.get("/static/styles.css")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")

	rec = cl.get("/static/images/img1.svg")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "image/svg+xml")

	rec = cl.get("/static/../router.go")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = cl.get("/static/missing.png")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := NewRouter(Options{})
	assert.Error(t, err)
}

// brokenStore は Get が常に失敗するセッションストアです。
type brokenStore struct {
	*session.MemoryStore
}

func (brokenStore) Get(context.Context, string) (*session.Data, error) {
	return nil, assert.AnError
}

func TestMembersSessionStoreFailureRendersErrorPage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := brokenStore{session.NewMemoryStore(time.Hour)}
	manager := auth.NewManager(userstest.NewRepository(), store, auth.NewHasher(bcrypt.MinCost), nil, logging.Discard())

	tmpl, err := loadTemplates()
	require.NoError(t, err)
	router := gin.New()
	router.SetHTMLTemplate(tmpl)
	router.Use(errorPages(logging.Discard()), auth.CookieMiddleware(auth.NewCookieStore("cookie-secret", time.Hour, false)))
	router.GET("/start", func(c *gin.Context) {
		if err := manager.StartSession(c, "some-token"); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
	// RequireLogin を通さずにハンドラー単体の挙動を確認する
	router.GET("/members", newHandlers(manager, logging.Discard(), nil).Members)

	cl := (&testApp{router: router}).client(t)
	require.Equal(t, http.StatusNoContent, cl.get("/start").Code)

	rec := cl.get("/members")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Something went wrong.")
}
