package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	authmw "jwt-auth-demo/internal/middleware/auth"
	"jwt-auth-demo/internal/models"
	"jwt-auth-demo/internal/repo"
	"jwt-auth-demo/internal/service"
	"jwt-auth-demo/internal/token"
)

type testEnv struct {
	E      *echo.Echo
	A      *AuthHandler
	DB     *gorm.DB
	Issuer *token.AccessIssuer
	MW     *authmw.Middleware
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.RefreshToken{}, &models.Product{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	issuer := token.NewAccessIssuer([]byte("test-secret"), "test-issuer", "test-audience", 30*time.Minute)
	svc := service.NewAuthService(repo.NewGormRepo(db), issuer)

	return &testEnv{
		E:      echo.New(),
		A:      &AuthHandler{Svc: svc},
		DB:     db,
		Issuer: issuer,
		MW:     authmw.New(issuer),
	}
}

func (env *testEnv) doJSONRequest(method, path string, payload interface{}, cookies ...*http.Cookie) (*httptest.ResponseRecorder, echo.Context) {
	var body *bytes.Reader
	if payload != nil {
		b, _ := json.Marshal(payload)
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	return rec, env.E.NewContext(req, rec)
}

func refreshCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "refreshToken" {
			return ck
		}
	}
	t.Fatal("refreshToken cookie not set")
	return nil
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	payload := map[string]string{"username": "alice", "password": "secret1", "email": "a@x.com"}

	rec, c := env.doJSONRequest(http.MethodPost, "/api/auth/register", payload)
	require.NoError(t, env.A.Register(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Registered successfully", resp["message"])

	var user models.User
	require.NoError(t, env.DB.Where("username = ?", "alice").First(&user).Error)
	require.Equal(t, models.RoleUser, user.Role)
	require.NotEqual(t, "secret1", user.PasswordHash)

	// duplicate username
	rec2, c2 := env.doJSONRequest(http.MethodPost, "/api/auth/register", payload)
	require.NoError(t, env.A.Register(c2))
	require.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	payload := map[string]string{"username": "al", "password": "short", "email": "not-an-email"}

	rec, c := env.doJSONRequest(http.MethodPost, "/api/auth/register", payload)
	require.NoError(t, env.A.Register(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Errors, 3)

	var count int64
	env.DB.Model(&models.User{}).Count(&count)
	require.Zero(t, count)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	payload := map[string]string{"username": "alice", "password": "secret1", "email": "a@x.com"}

	_, cReg := env.doJSONRequest(http.MethodPost, "/api/auth/register", payload)
	require.NoError(t, env.A.Register(cReg))

	rec, c := env.doJSONRequest(http.MethodPost, "/api/auth/login", payload)
	require.NoError(t, env.A.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, models.RoleUser, resp["role"])
	claims, err := env.Issuer.Validate(resp["token"])
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)

	ck := refreshCookieFrom(t, rec)
	require.True(t, ck.HttpOnly)
	require.Equal(t, http.SameSiteStrictMode, ck.SameSite)
	require.NotEmpty(t, ck.Value)

	// bad password and unknown user answer identically
	recBad, cBad := env.doJSONRequest(http.MethodPost, "/api/auth/login",
		map[string]string{"username": "alice", "password": "wrong"})
	require.NoError(t, env.A.Login(cBad))
	require.Equal(t, http.StatusUnauthorized, recBad.Code)

	recNone, cNone := env.doJSONRequest(http.MethodPost, "/api/auth/login",
		map[string]string{"username": "ghost", "password": "secret1"})
	require.NoError(t, env.A.Login(cNone))
	require.Equal(t, http.StatusUnauthorized, recNone.Code)
	require.Equal(t, recBad.Body.String(), recNone.Body.String())
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	payload := map[string]string{"username": "alice", "password": "secret1", "email": "a@x.com"}

	_, cReg := env.doJSONRequest(http.MethodPost, "/api/auth/register", payload)
	require.NoError(t, env.A.Register(cReg))

	recLogin, cLogin := env.doJSONRequest(http.MethodPost, "/api/auth/login", payload)
	require.NoError(t, env.A.Login(cLogin))
	require.Equal(t, http.StatusOK, recLogin.Code)
	ck := refreshCookieFrom(t, recLogin)

	// refresh yields a new access token, cookie stays valid
	recRef, cRef := env.doJSONRequest(http.MethodPost, "/api/auth/refresh", nil, ck)
	require.NoError(t, env.A.Refresh(cRef))
	require.Equal(t, http.StatusOK, recRef.Code)
	var refResp map[string]string
	require.NoError(t, json.Unmarshal(recRef.Body.Bytes(), &refResp))
	_, err := env.Issuer.Validate(refResp["token"])
	require.NoError(t, err)

	recRef2, cRef2 := env.doJSONRequest(http.MethodPost, "/api/auth/refresh", nil, ck)
	require.NoError(t, env.A.Refresh(cRef2))
	require.Equal(t, http.StatusOK, recRef2.Code)

	// logout revokes and clears the cookie
	recOut, cOut := env.doJSONRequest(http.MethodPost, "/api/auth/logout", nil, ck)
	require.NoError(t, env.A.Logout(cOut))
	require.Equal(t, http.StatusOK, recOut.Code)
	cleared := refreshCookieFrom(t, recOut)
	require.Empty(t, cleared.Value)

	// the revoked cookie no longer refreshes
	recRef3, cRef3 := env.doJSONRequest(http.MethodPost, "/api/auth/refresh", nil, ck)
	require.NoError(t, env.A.Refresh(cRef3))
	require.Equal(t, http.StatusUnauthorized, recRef3.Code)
}

func TestLogoutAlwaysSucceeds(t *testing.T) {
	env := newTestEnv(t)

	// no cookie at all
	rec, c := env.doJSONRequest(http.MethodPost, "/api/auth/logout", nil)
	require.NoError(t, env.A.Logout(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// never-issued cookie
	rec2, c2 := env.doJSONRequest(http.MethodPost, "/api/auth/logout", nil,
		&http.Cookie{Name: "refreshToken", Value: "never-issued"})
	require.NoError(t, env.A.Logout(c2))
	require.Equal(t, http.StatusOK, rec2.Code)
}

func (env *testEnv) accessTokenFor(t *testing.T, username, role string) string {
	user := models.User{Username: username, Email: username + "@x.com", PasswordHash: "h", Role: role}
	require.NoError(t, env.DB.Create(&user).Error)
	signed, _, err := env.Issuer.Issue(&user)
	require.NoError(t, err)
	return signed
}

func TestCreateAdminRoleGate(t *testing.T) {
	env := newTestEnv(t)
	gated := env.MW.RequireAuth(env.MW.RequireRole(models.RoleSuperAdmin)(env.A.CreateAdmin))
	payload := map[string]string{"username": "newadmin", "password": "secret1", "email": "na@x.com"}

	// non-SuperAdmin roles are rejected before any business logic
	for _, role := range []string{models.RoleUser, models.RoleAdmin} {
		bearer := env.accessTokenFor(t, "caller-"+role, role)
		var before int64
		env.DB.Model(&models.User{}).Count(&before)

		_, c := env.doJSONRequest(http.MethodPost, "/api/auth/create-admin", payload)
		c.Request().Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
		err := gated(c)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok, "expected HTTPError")
		require.Equal(t, http.StatusForbidden, he.Code)

		var after int64
		env.DB.Model(&models.User{}).Count(&after)
		require.Equal(t, before, after)
	}

	// missing token
	_, cAnon := env.doJSONRequest(http.MethodPost, "/api/auth/create-admin", payload)
	err := gated(cAnon)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusUnauthorized, he.Code)

	// SuperAdmin passes
	bearer := env.accessTokenFor(t, "root", models.RoleSuperAdmin)
	rec, c := env.doJSONRequest(http.MethodPost, "/api/auth/create-admin", payload)
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	require.NoError(t, gated(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var created models.User
	require.NoError(t, env.DB.Where("username = ?", "newadmin").First(&created).Error)
	require.Equal(t, models.RoleAdmin, created.Role)
}

func TestCreateAdminCollectsViolations(t *testing.T) {
	env := newTestEnv(t)
	gated := env.MW.RequireAuth(env.MW.RequireRole(models.RoleSuperAdmin)(env.A.CreateAdmin))
	bearer := env.accessTokenFor(t, "root", models.RoleSuperAdmin)

	regPayload := map[string]string{"username": "alice", "password": "secret1", "email": "a@x.com"}
	_, cReg := env.doJSONRequest(http.MethodPost, "/api/auth/register", regPayload)
	require.NoError(t, env.A.Register(cReg))

	rec, c := env.doJSONRequest(http.MethodPost, "/api/auth/create-admin", regPayload)
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	require.NoError(t, gated(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Errors []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Errors, 2)
	require.Contains(t, resp.Errors, "Username already exists")
	require.Contains(t, resp.Errors, "Email already exists")
}
