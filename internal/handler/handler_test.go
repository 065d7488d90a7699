package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mtodo/internal/handler"
	"github.com/xxxsen/mtodo/internal/pkg/jwt"
	"github.com/xxxsen/mtodo/internal/repo"
	"github.com/xxxsen/mtodo/internal/service"
	"github.com/xxxsen/mtodo/internal/testutil"
)

type testEnv struct {
	router http.Handler
	users  *repo.UserRepo
	codec  *jwt.Codec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type tokenBody struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	User         *struct {
		ID    int64   `json:"id"`
		Email string  `json:"email"`
		Name  *string `json:"name"`
	} `json:"user"`
}

type todoBody struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Deadline  *string `json:"deadline"`
	Done      bool    `json:"done"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	conn := testutil.OpenTestDB(t)

	codec, err := jwt.NewCodec([]byte("handler-test-secret"), "HS256", time.Hour, 24*time.Hour)
	require.NoError(t, err)
	users := repo.NewUserRepo(conn)
	todos := repo.NewTodoRepo(conn)
	identity := service.NewIdentityService(users, codec)

	engine := gin.New()
	handler.Register(&engine.RouterGroup, "/api", handler.RouterDeps{
		Auth:     handler.NewAuthHandler(service.NewAuthService(users, codec)),
		Todos:    handler.NewTodoHandler(service.NewTodoService(todos)),
		Health:   handler.NewHealthHandler("TodoApp", conn),
		Identity: identity,
	})
	return &testEnv{router: engine, users: users, codec: codec}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else if raw, ok := body.(string); ok {
		reader = bytes.NewReader([]byte(raw))
	} else {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	var env envelope
	if resp.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	}
	return resp, env
}

func (e *testEnv) register(t *testing.T, email, password string) {
	t.Helper()
	resp, _ := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusCreated, resp.Code)
}

func (e *testEnv) login(t *testing.T, email, password string) tokenBody {
	t.Helper()
	resp, env := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, resp.Code)
	var tokens tokenBody
	require.NoError(t, json.Unmarshal(env.Data, &tokens))
	return tokens
}

func requireError(t *testing.T, resp *httptest.ResponseRecorder, env envelope, status int, code string) {
	t.Helper()
	require.Equal(t, status, resp.Code, resp.Body.String())
	require.NotNil(t, env.Error)
	require.Equal(t, code, env.Error.Code)
}

func TestRootAndHealth(t *testing.T) {
	env := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"ok":true,"name":"TodoApp"}`, resp.Body.String())

	hresp, body := env.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, hresp.Code)
	require.JSONEq(t, `{"status":"ok"}`, string(body.Data))
}

func TestHealth_DatabaseDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	h := handler.NewHealthHandler("TodoApp", failingPinger{})
	engine.GET("/health", h.Health)
	resp := httptest.NewRecorder()
	engine.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

type failingPinger struct{}

func (failingPinger) PingContext(ctx context.Context) error { return errors.New("down") }

func TestAuthFlow(t *testing.T) {
	env := setupRouter(t)

	resp, body := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"email": "alice@example.com", "name": "Alice", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	require.JSONEq(t, `{"id":1,"email":"alice@example.com","name":"Alice"}`, string(body.Data))
	require.NotContains(t, resp.Body.String(), "password")

	tokens := env.login(t, "alice@example.com", "secret1")
	require.Equal(t, "bearer", tokens.TokenType)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)
	require.NotNil(t, tokens.User)
	require.Equal(t, "alice@example.com", tokens.User.Email)

	resp, body = env.do(t, http.MethodGet, "/api/auth/me", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"id":1,"email":"alice@example.com","name":"Alice"}`, string(body.Data))

	resp, body = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": tokens.RefreshToken})
	require.Equal(t, http.StatusOK, resp.Code)
	var refreshed tokenBody
	require.NoError(t, json.Unmarshal(body.Data, &refreshed))
	require.Equal(t, "bearer", refreshed.TokenType)
	require.Nil(t, refreshed.User)
	require.NotEqual(t, tokens.AccessToken, refreshed.AccessToken)

	resp, _ = env.do(t, http.MethodGet, "/api/auth/me", refreshed.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp, body = env.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"ok":true}`, string(body.Data))
}

func TestRegister_Errors(t *testing.T) {
	env := setupRouter(t)
	env.register(t, "alice@example.com", "secret1")

	resp, body := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "alice@example.com", "password": "another1"})
	requireError(t, resp, body, http.StatusConflict, "conflict")

	resp, body = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "bob@example.com", "password": "12345"})
	requireError(t, resp, body, http.StatusUnprocessableEntity, "invalid")

	resp, body = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "bob@example.com", "password": strings.Repeat("x", 73)})
	requireError(t, resp, body, http.StatusUnprocessableEntity, "invalid")

	resp, body = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "bob@example.com", "password": strings.Repeat("é", 40)})
	requireError(t, resp, body, http.StatusUnprocessableEntity, "invalid")

	resp, body = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "bob", "password": "secret1"})
	requireError(t, resp, body, http.StatusUnprocessableEntity, "invalid")

	resp, body = env.do(t, http.MethodPost, "/api/auth/register", "", "{not json")
	requireError(t, resp, body, http.StatusUnprocessableEntity, "invalid")
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	env := setupRouter(t)
	env.register(t, "alice@example.com", "secret1")

	wrongResp, wrong := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@example.com", "password": "nope-nope"})
	unknownResp, unknown := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ghost@example.com", "password": "secret1"})

	requireError(t, wrongResp, wrong, http.StatusBadRequest, "invalid_credentials")
	requireError(t, unknownResp, unknown, http.StatusBadRequest, "invalid_credentials")
	require.Equal(t, wrongResp.Body.String(), unknownResp.Body.String())

	resp, body := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@example.com"})
	requireError(t, resp, body, http.StatusUnprocessableEntity, "invalid")
}

func TestRefresh_Errors(t *testing.T) {
	env := setupRouter(t)
	env.register(t, "alice@example.com", "secret1")
	tokens := env.login(t, "alice@example.com", "secret1")

	resp, body := env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{})
	requireError(t, resp, body, http.StatusUnprocessableEntity, "invalid")

	resp, body = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": tokens.AccessToken})
	requireError(t, resp, body, http.StatusUnauthorized, "unauthenticated")

	resp, body = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": "garbage"})
	requireError(t, resp, body, http.StatusUnauthorized, "unauthenticated")

	require.NoError(t, env.users.Delete(context.Background(), tokens.User.ID))
	resp, body = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": tokens.RefreshToken})
	requireError(t, resp, body, http.StatusUnauthorized, "unauthenticated")
}

func TestProtectedRoutes_RejectBadTokens(t *testing.T) {
	env := setupRouter(t)
	env.register(t, "alice@example.com", "secret1")
	tokens := env.login(t, "alice@example.com", "secret1")

	expired, err := env.codec.Encode(env.codec.NewClaims("1", jwt.TokenTypeAccess, time.Now().Add(-2*time.Hour)))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"missing": "",
		"refresh": tokens.RefreshToken,
		"expired": expired,
		"garbage": "x.y.z",
	} {
		resp, body := env.do(t, http.MethodGet, "/api/auth/me", token, nil)
		requireError(t, resp, body, http.StatusUnauthorized, "unauthenticated")
		require.Equal(t, "Bearer", resp.Header().Get("WWW-Authenticate"), name)

		resp, body = env.do(t, http.MethodGet, "/api/todos", token, nil)
		requireError(t, resp, body, http.StatusUnauthorized, "unauthenticated")
	}

	// deleted subject
	require.NoError(t, env.users.Delete(context.Background(), tokens.User.ID))
	resp, body := env.do(t, http.MethodGet, "/api/auth/me", tokens.AccessToken, nil)
	requireError(t, resp, body, http.StatusUnauthorized, "unauthenticated")
}

func TestTodoCRUD(t *testing.T) {
	env := setupRouter(t)
	env.register(t, "alice@example.com", "secret1")
	token := env.login(t, "alice@example.com", "secret1").AccessToken

	resp, body := env.do(t, http.MethodPost, "/api/todos", token, map[string]interface{}{
		"title": "Buy milk", "deadline": "2030-01-02T03:04:05+02:00",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var created todoBody
	require.NoError(t, json.Unmarshal(body.Data, &created))
	require.NotZero(t, created.ID)
	require.Equal(t, "Buy milk", created.Title)
	require.NotNil(t, created.Deadline)
	require.Equal(t, "2030-01-02T01:04:05Z", *created.Deadline)
	require.False(t, created.Done)
	require.NotEmpty(t, created.CreatedAt)

	resp, body = env.do(t, http.MethodPost, "/api/todos", token, map[string]interface{}{"title": "Call mom"})
	require.Equal(t, http.StatusCreated, resp.Code)

	resp, body = env.do(t, http.MethodPatch, "/api/todos/1", token, map[string]interface{}{"done": true})
	require.Equal(t, http.StatusOK, resp.Code)
	var patched todoBody
	require.NoError(t, json.Unmarshal(body.Data, &patched))
	require.True(t, patched.Done)
	require.Equal(t, "Buy milk", patched.Title)
	require.Equal(t, created.Deadline, patched.Deadline)

	resp, body = env.do(t, http.MethodGet, "/api/todos?status=done", token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var list []todoBody
	require.NoError(t, json.Unmarshal(body.Data, &list))
	require.Len(t, list, 1)
	require.Equal(t, created.ID, list[0].ID)

	resp, body = env.do(t, http.MethodGet, "/api/todos?search=MOM", token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(body.Data, &list))
	require.Len(t, list, 1)
	require.Equal(t, "Call mom", list[0].Title)

	resp, body = env.do(t, http.MethodGet, "/api/todos?order_by=created_at&order=desc&limit=1", token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(body.Data, &list))
	require.Len(t, list, 1)
	require.Equal(t, "Call mom", list[0].Title)

	resp, body = env.do(t, http.MethodDelete, "/api/todos/1", token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"ok":true}`, string(body.Data))

	resp, body = env.do(t, http.MethodDelete, "/api/todos/1", token, nil)
	requireError(t, resp, body, http.StatusNotFound, "not_found")
}

func TestTodoValidation(t *testing.T) {
	env := setupRouter(t)
	env.register(t, "alice@example.com", "secret1")
	token := env.login(t, "alice@example.com", "secret1").AccessToken

	cases := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodPost, "/api/todos", map[string]interface{}{"title": ""}},
		{http.MethodPost, "/api/todos", map[string]interface{}{"title": "x", "deadline": "tomorrow"}},
		{http.MethodPatch, "/api/todos/abc", map[string]interface{}{"done": true}},
		{http.MethodGet, "/api/todos?limit=0", nil},
		{http.MethodGet, "/api/todos?limit=201", nil},
		{http.MethodGet, "/api/todos?offset=-1", nil},
		{http.MethodGet, "/api/todos?status=maybe", nil},
		{http.MethodGet, "/api/todos?order_by=title", nil},
		{http.MethodGet, "/api/todos?order=sideways", nil},
	}
	for _, tc := range cases {
		resp, body := env.do(t, tc.method, tc.path, token, tc.body)
		requireError(t, resp, body, http.StatusUnprocessableEntity, "invalid")
	}
}

func TestTodoOwnerScoping(t *testing.T) {
	env := setupRouter(t)
	env.register(t, "alice@example.com", "secret1")
	env.register(t, "bob@example.com", "secret1")
	alice := env.login(t, "alice@example.com", "secret1").AccessToken
	bob := env.login(t, "bob@example.com", "secret1").AccessToken

	resp, body := env.do(t, http.MethodPost, "/api/todos", alice, map[string]interface{}{"title": "private"})
	require.Equal(t, http.StatusCreated, resp.Code)
	var todo todoBody
	require.NoError(t, json.Unmarshal(body.Data, &todo))

	resp, body = env.do(t, http.MethodGet, "/api/todos", bob, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `[]`, string(body.Data))

	resp, body = env.do(t, http.MethodPatch, "/api/todos/1", bob, map[string]interface{}{"title": "mine now"})
	requireError(t, resp, body, http.StatusNotFound, "not_found")
	resp, body = env.do(t, http.MethodDelete, "/api/todos/1", bob, nil)
	requireError(t, resp, body, http.StatusNotFound, "not_found")

	resp, body = env.do(t, http.MethodGet, "/api/todos", alice, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var list []todoBody
	require.NoError(t, json.Unmarshal(body.Data, &list))
	require.Len(t, list, 1)
	require.Equal(t, "private", list[0].Title)
}
