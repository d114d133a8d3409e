package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"server/internal/domain"
	"server/internal/middleware"
)

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRegisterHappyPath(t *testing.T) {
	env := newTestEnv()
	_, err := env.codes.Create(context.Background(), "WELCOME1", nil)
	require.NoError(t, err)
	h := env.router("")

	rec := doJSON(t, h, http.MethodPost, "/api/auth/register",
		`{"username":"alice","password":"s3cret","registration_code":"welcome1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	user, err := env.users.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret")))

	code, err := env.codes.GetByCode(context.Background(), "WELCOME1")
	require.NoError(t, err)
	require.True(t, code.Used)
	require.NotNil(t, code.UsedBy)
	require.Equal(t, user.ID, *code.UsedBy)
}

func TestRegisterRejectsUnknownCode(t *testing.T) {
	env := newTestEnv()
	rec := doJSON(t, env.router(""), http.MethodPost, "/api/auth/register",
		`{"username":"alice","password":"s3cret","registration_code":"NOPE"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "registration code invalid", decodeBody(t, rec)["message"])
}

func TestRegisterRejectsUsedCode(t *testing.T) {
	env := newTestEnv()
	created, err := env.codes.Create(context.Background(), "WELCOME1", nil)
	require.NoError(t, err)
	require.NoError(t, env.codes.MarkUsed(context.Background(), created.ID, "someone", time.Now()))

	rec := doJSON(t, env.router(""), http.MethodPost, "/api/auth/register",
		`{"username":"alice","password":"s3cret","registration_code":"WELCOME1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "registration code already used", decodeBody(t, rec)["message"])
}

func TestRegisterRejectsExpiredCode(t *testing.T) {
	env := newTestEnv()
	expired := time.Now().Add(-time.Hour)
	_, err := env.codes.Create(context.Background(), "OLDCODE1", &expired)
	require.NoError(t, err)

	rec := doJSON(t, env.router(""), http.MethodPost, "/api/auth/register",
		`{"username":"alice","password":"s3cret","registration_code":"OLDCODE1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "registration code expired", decodeBody(t, rec)["message"])
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	env := newTestEnv()
	_, err := env.users.Create(context.Background(), &domain.User{Username: "alice", PasswordHash: "x"})
	require.NoError(t, err)
	_, err = env.codes.Create(context.Background(), "WELCOME1", nil)
	require.NoError(t, err)

	rec := doJSON(t, env.router(""), http.MethodPost, "/api/auth/register",
		`{"username":"alice","password":"s3cret","registration_code":"WELCOME1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "username already exists", decodeBody(t, rec)["message"])
}

func TestRegisterRequiresFields(t *testing.T) {
	env := newTestEnv()
	h := env.router("")

	rec := doJSON(t, h, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"s3cret"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/auth/register", `{"registration_code":"WELCOME1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func registerUser(t *testing.T, env *testEnv, username, password string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user, err := env.users.Create(context.Background(), &domain.User{Username: username, PasswordHash: string(hash)})
	require.NoError(t, err)
	return user
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	env := newTestEnv()
	user := registerUser(t, env, "alice", "s3cret")

	rec := doJSON(t, env.router(""), http.MethodPost, "/api/auth/login",
		`{"username":"alice","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, user.ID, resp.User.ID)
	require.Equal(t, "alice", resp.User.Username)

	subject, err := middleware.VerifyToken(env.app.JWTSecret, resp.Token)
	require.NoError(t, err)
	require.Equal(t, user.ID, subject)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv()
	registerUser(t, env, "alice", "s3cret")
	h := env.router("")

	wrongPassword := doJSON(t, h, http.MethodPost, "/api/auth/login",
		`{"username":"alice","password":"wrong"}`)
	unknownUser := doJSON(t, h, http.MethodPost, "/api/auth/login",
		`{"username":"bob","password":"s3cret"}`)

	require.Equal(t, http.StatusBadRequest, wrongPassword.Code)
	require.Equal(t, http.StatusBadRequest, unknownUser.Code)
	require.Equal(t, decodeBody(t, wrongPassword)["message"], decodeBody(t, unknownUser)["message"])
}

func TestCreateRegistrationCodeGeneratesWhenAbsent(t *testing.T) {
	env := newTestEnv()
	rec := doJSON(t, env.router(""), http.MethodPost, "/api/auth/admin/registration-codes", `{}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	code, _ := body["code"].(string)
	require.Len(t, code, 16)
	require.Equal(t, strings.ToUpper(code), code)

	stored, err := env.codes.GetByCode(context.Background(), code)
	require.NoError(t, err)
	require.False(t, stored.Used)
}

func TestCreateRegistrationCodeUppercasesInput(t *testing.T) {
	env := newTestEnv()
	rec := doJSON(t, env.router(""), http.MethodPost, "/api/auth/admin/registration-codes",
		`{"code":"welcome2"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "WELCOME2", decodeBody(t, rec)["code"])
}

func TestListRegistrationCodes(t *testing.T) {
	env := newTestEnv()
	_, err := env.codes.Create(context.Background(), "CODE0001", nil)
	require.NoError(t, err)

	rec := doJSON(t, env.router(""), http.MethodGet, "/api/auth/admin/registration-codes", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var items []codeDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	require.Equal(t, "CODE0001", items[0].Code)
}

func TestDeleteRegistrationCodeIsIdempotent(t *testing.T) {
	env := newTestEnv()
	created, err := env.codes.Create(context.Background(), "CODE0001", nil)
	require.NoError(t, err)
	h := env.router("")

	rec := doJSON(t, h, http.MethodDelete, "/api/auth/admin/registration-codes/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Deleting again is not an error.
	rec = doJSON(t, h, http.MethodDelete, "/api/auth/admin/registration-codes/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
}
