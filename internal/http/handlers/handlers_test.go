package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/crm-backend/internal/auth"
	"github.com/hongminglow/crm-backend/internal/middleware"
	"github.com/hongminglow/crm-backend/internal/storage/sqlite"
)

type testAPI struct {
	router http.Handler
	store  *sqlite.Store
	tokens *auth.TokenManager
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store, err := sqlite.NewUserStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)

	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	tokens := auth.NewTokenManager("test-secret", "crm-test", time.Hour)
	noThrottle := func(next http.Handler) http.Handler { return next }

	r := chi.NewRouter()
	NewHealthHandler(time.Now(), store).Register(r)
	r.Route("/api/users", func(r chi.Router) {
		NewAuthHandler(store, hasher, tokens).Register(r, noThrottle)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(tokens))
			NewUserHandler(store, hasher).Register(r)
		})
	})
	return &testAPI{router: r, store: store, tokens: tokens}
}

func (a *testAPI) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) register(t *testing.T, name, email, password string) int64 {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/users", "", jsonBody(t, map[string]string{
		"name": name, "email": email, "password": password,
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		User struct {
			ID int64 `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.User.ID
}

func (a *testAPI) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/users/login", "", jsonBody(t, map[string]string{
		"email": email, "password": password,
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func jsonBody(t *testing.T, v any) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(v))
	return buf.String()
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

func TestRegisterAndLogin(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/users", "", `{"name":"Bob","email":"bob@x.com","password":"pw1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t,
		`{"message":"User registered successfully!","user":{"id":1,"name":"Bob","email":"bob@x.com"}}`,
		rec.Body.String())

	token := api.login(t, "bob@x.com", "pw1")
	claims, err := api.tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.UserID)
	assert.Equal(t, "bob@x.com", claims.Email)

	rec = api.do(t, http.MethodGet, "/api/users", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Total      int64            `json:"total"`
		Page       int              `json:"page"`
		TotalPages int64            `json:"totalPages"`
		Users      []map[string]any `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, int64(1), list.Total)
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, int64(1), list.TotalPages)
	require.Len(t, list.Users, 1)
	assert.Equal(t, "Bob", list.Users[0]["name"])
	assert.NotContains(t, list.Users[0], "password")
	assert.NotContains(t, rec.Body.String(), "$2a$")
}

func TestRegister_Failures(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "Bob", "bob@x.com", "pw1")

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"duplicate email", `{"name":"Other","email":"bob@x.com","password":"pw2"}`, "Email is already in use."},
		{"missing password", `{"name":"Ann","email":"ann@x.com"}`, "All fields are required."},
		{"empty name", `{"name":"","email":"ann@x.com","password":"pw"}`, "All fields are required."},
		{"unknown field", `{"name":"Ann","email":"ann@x.com","password":"pw","role":"admin"}`, "Invalid request body."},
		{"wrong type", `{"name":1,"email":"ann@x.com","password":"pw"}`, "Invalid request body."},
		{"not json", `name=Ann`, "Invalid request body."},
		{"trailing data", `{"name":"Ann","email":"ann@x.com","password":"pw"}{}`, "Invalid request body."},
		{"password too long", fmt.Sprintf(`{"name":"Ann","email":"ann@x.com","password":%q}`, strings.Repeat("p", 73)), "Password is too long."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/users", "", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.message, message(t, rec))
		})
	}

	_, err := api.store.FindByEmail(context.Background(), "ann@x.com")
	assert.Error(t, err, "no failed registration may create a row")
}

func TestLogin_Failures(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "Bob", "bob@x.com", "pw1")

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"wrong password", `{"email":"bob@x.com","password":"nope"}`, http.StatusUnauthorized, "Invalid credentials."},
		{"unknown email", `{"email":"nobody@x.com","password":"pw1"}`, http.StatusNotFound, "User not found."},
		{"missing password", `{"email":"bob@x.com"}`, http.StatusBadRequest, "Email and password are required."},
		{"unknown field", `{"email":"bob@x.com","password":"pw1","remember":true}`, http.StatusBadRequest, "Invalid request body."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/users/login", "", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.message, message(t, rec))
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)
	id := api.register(t, "Bob", "bob@x.com", "pw1")

	for _, route := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/users", ""},
		{http.MethodPut, fmt.Sprintf("/api/users/%d", id), `{"name":"Eve"}`},
		{http.MethodDelete, fmt.Sprintf("/api/users/%d", id), ""},
	} {
		rec := api.do(t, route.method, route.path, "", route.body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.method)
		assert.Equal(t, "Access denied. No token provided.", message(t, rec))
	}

	user, err := api.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Bob", user.Name, "rejected requests must not touch the store")
}

func TestListUsers_PaginationAndSearch(t *testing.T) {
	api := newTestAPI(t)
	for i := 1; i <= 12; i++ {
		api.register(t, fmt.Sprintf("User %02d", i), fmt.Sprintf("user%02d@x.com", i), "pw")
	}
	api.register(t, "Alice Smith", "alice@corp.io", "pw")
	token := api.login(t, "alice@corp.io", "pw")

	type listBody struct {
		Total      int64 `json:"total"`
		Page       int   `json:"page"`
		TotalPages int64 `json:"totalPages"`
		Users      []struct {
			ID    int64  `json:"id"`
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"users"`
	}
	list := func(query string) listBody {
		rec := api.do(t, http.MethodGet, "/api/users"+query, token, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out listBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return out
	}

	first := list("")
	assert.Equal(t, int64(13), first.Total)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, int64(2), first.TotalPages)
	assert.Len(t, first.Users, 10)

	second := list("?page=2&limit=10")
	assert.Equal(t, 2, second.Page)
	assert.Len(t, second.Users, 3)
	assert.Greater(t, second.Users[0].ID, first.Users[9].ID, "pages follow id order")

	small := list("?page=3&limit=5")
	assert.Equal(t, int64(3), small.TotalPages)
	assert.Len(t, small.Users, 3)

	beyond := list("?page=9")
	assert.Equal(t, int64(13), beyond.Total)
	assert.Empty(t, beyond.Users)

	fallback := list("?page=abc&limit=-3")
	assert.Equal(t, 1, fallback.Page)
	assert.Len(t, fallback.Users, 10)

	byName := list("?search=alice")
	assert.Equal(t, int64(1), byName.Total)
	require.Len(t, byName.Users, 1)
	assert.Equal(t, "Alice Smith", byName.Users[0].Name)

	byEmail := list("?search=CORP.IO")
	assert.Equal(t, int64(1), byEmail.Total)

	none := list("?search=zzz")
	assert.Equal(t, int64(0), none.Total)
	assert.Equal(t, int64(0), none.TotalPages)
	assert.NotNil(t, none.Users)
	assert.Empty(t, none.Users)

	huge := list("?page=9223372036854775807&limit=100")
	assert.Equal(t, int64(13), huge.Total)
	assert.Empty(t, huge.Users)

	literal := list("?search=%25")
	assert.Equal(t, int64(0), literal.Total, "wildcards in the search term match literally")
}

func TestUpdateUser(t *testing.T) {
	api := newTestAPI(t)
	bob := api.register(t, "Bob", "bob@x.com", "pw1")
	api.register(t, "Carol", "carol@x.com", "pw2")
	token := api.login(t, "bob@x.com", "pw1")
	path := fmt.Sprintf("/api/users/%d", bob)

	t.Run("partial update keeps other fields", func(t *testing.T) {
		rec := api.do(t, http.MethodPut, path, token, `{"name":"Robert"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out struct {
			Message string         `json:"message"`
			User    map[string]any `json:"user"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Equal(t, "User updated successfully.", out.Message)
		assert.Equal(t, "Robert", out.User["name"])
		assert.Equal(t, "bob@x.com", out.User["email"])
		assert.NotContains(t, out.User, "password")

		stored, err := api.store.FindByID(context.Background(), bob)
		require.NoError(t, err)
		assert.Equal(t, "Robert", stored.Name)
	})

	t.Run("password is hashed and usable", func(t *testing.T) {
		rec := api.do(t, http.MethodPut, path, token, `{"password":"new-secret"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		stored, err := api.store.FindByID(context.Background(), bob)
		require.NoError(t, err)
		assert.NotEqual(t, "new-secret", stored.PasswordHash)
		api.login(t, "bob@x.com", "new-secret")

		rec = api.do(t, http.MethodPost, "/api/users/login", "", `{"email":"bob@x.com","password":"pw1"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("email taken by another user", func(t *testing.T) {
		rec := api.do(t, http.MethodPut, path, token, `{"email":"carol@x.com"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Email is already in use.", message(t, rec))
	})

	t.Run("not found", func(t *testing.T) {
		for _, p := range []string{"/api/users/999", "/api/users/abc"} {
			rec := api.do(t, http.MethodPut, p, token, `{"name":"x"}`)
			assert.Equal(t, http.StatusNotFound, rec.Code, p)
			assert.Equal(t, "User not found.", message(t, rec))
		}
	})

	t.Run("empty body changes nothing", func(t *testing.T) {
		before, err := api.store.FindByID(context.Background(), bob)
		require.NoError(t, err)

		rec := api.do(t, http.MethodPut, path, token, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "User updated successfully.", message(t, rec))

		after, err := api.store.FindByID(context.Background(), bob)
		require.NoError(t, err)
		assert.Equal(t, before.Name, after.Name)
		assert.Equal(t, before.Email, after.Email)
		assert.Equal(t, before.PasswordHash, after.PasswordHash)

		rec = api.do(t, http.MethodPut, "/api/users/999", token, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "User not found.", message(t, rec))
	})

	t.Run("invalid body", func(t *testing.T) {
		rec := api.do(t, http.MethodPut, path, token, `{"nickname":"bobby"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid request body.", message(t, rec))
	})
}

func TestDeleteUser(t *testing.T) {
	api := newTestAPI(t)
	bob := api.register(t, "Bob", "bob@x.com", "pw1")
	carol := api.register(t, "Carol", "carol@x.com", "pw2")
	token := api.login(t, "bob@x.com", "pw1")

	rec := api.do(t, http.MethodDelete, fmt.Sprintf("/api/users/%d", carol), token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User deleted successfully.", message(t, rec))

	rec = api.do(t, http.MethodDelete, fmt.Sprintf("/api/users/%d", carol), token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found.", message(t, rec))

	rec = api.do(t, http.MethodDelete, "/api/users/not-a-number", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Tokens are stateless, so a deleted account's token stays valid until it expires.
	rec = api.do(t, http.MethodDelete, fmt.Sprintf("/api/users/%d", bob), token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(t, http.MethodGet, "/api/users", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total":0,"page":1,"totalPages":0,"users":[]}`, rec.Body.String())
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestWelcomeAndHealth(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to the CRM Backend!", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	rec = api.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["uptime"])

	r := chi.NewRouter()
	NewHealthHandler(time.Now(), downPinger{}).Register(r)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body["status"])
}

func TestStoreFailuresReturnGenericError(t *testing.T) {
	api := newTestAPI(t)
	bob := api.register(t, "Bob", "bob@x.com", "pw1")
	token := api.login(t, "bob@x.com", "pw1")
	path := fmt.Sprintf("/api/users/%d", bob)

	var logs bytes.Buffer
	router := middleware.RequestLogger(zerolog.New(&logs))(api.router)
	api.store.Close()

	for _, tc := range []struct{ name, method, path, token, body string }{
		{"list", http.MethodGet, "/api/users", token, ""},
		{"register", http.MethodPost, "/api/users", "", `{"name":"Ann","email":"ann@x.com","password":"pw"}`},
		{"login", http.MethodPost, "/api/users/login", "", `{"email":"bob@x.com","password":"pw1"}`},
		{"update", http.MethodPut, path, token, `{"name":"Robert"}`},
		{"delete", http.MethodDelete, path, token, ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			logs.Reset()
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.JSONEq(t, `{"message":"Internal server error."}`, rec.Body.String())
			assert.Contains(t, logs.String(), "database is closed", "the cause is logged")
			assert.NotContains(t, rec.Body.String(), "closed", "the cause is not echoed")
		})
	}
}
