package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mouldconnect/apiserver/internal/services"
	"github.com/mouldconnect/apiserver/types"
)

func serve(t *testing.T, api *testAPI, method, target, body, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRegister_Created(t *testing.T) {
	api := newTestAPI()
	api.auth.registerRes = services.RegisterResult{User: types.User{ID: 7, UserCode: "MC-20251"}}

	rec := serve(t, api, http.MethodPost, "/api/auth/register",
		`{"username":"alice_01","email":"A@B.com","name":"Alice A","password":"Abcdefghi1","mobile":9876543210}`, "")

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, msgRegistered, body["message"])
	assert.EqualValues(t, 7, body["userId"])
	assert.NotContains(t, body, "token")

	assert.Equal(t, "alice_01", api.auth.registerIn.Username)
	assert.Equal(t, "A@B.com", api.auth.registerIn.Email)
	assert.Equal(t, "9876543210", api.auth.registerIn.Mobile)
}

func TestRegister_IncludesTokenWhenIssued(t *testing.T) {
	api := newTestAPI()
	api.auth.registerRes = services.RegisterResult{User: types.User{ID: 7}, Token: "tok"}

	rec := serve(t, api, http.MethodPost, "/api/auth/register", `{"username":"alice_01"}`, "")

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "tok", decodeBody(t, rec)["token"])
}

func TestRegister_ValidationListsViolations(t *testing.T) {
	api := newTestAPI()
	api.auth.err = &services.Error{
		Kind:    services.KindValidation,
		Message: "Invalid email format.",
		Violations: []services.Violation{
			{Field: "email", Message: "Invalid email format."},
			{Field: "mobile", Message: "Mobile number must be exactly 10 digits."},
		},
	}

	rec := serve(t, api, http.MethodPost, "/api/auth/register", `{}`, "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid email format.", resp.Message)
	require.Len(t, resp.Errors, 2)
	assert.Equal(t, "mobile", resp.Errors[1].Field)
}

func TestRegister_MalformedBody(t *testing.T) {
	api := newTestAPI()

	rec := serve(t, api, http.MethodPost, "/api/auth/register", `{"username":`, "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgInvalidBody, decodeBody(t, rec)["message"])
}

func TestResendOTP_AcceptsStringUserID(t *testing.T) {
	api := newTestAPI()

	rec := serve(t, api, http.MethodPost, "/api/auth/resend-otp", `{"userId":"12"}`, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, msgOTPResent, decodeBody(t, rec)["message"])
	assert.Equal(t, 12, api.auth.resendID)
}

func TestResendOTP_NonNumericUserIDBecomesZero(t *testing.T) {
	api := newTestAPI()
	api.auth.err = &services.Error{Kind: services.KindNotFound, Message: "User not found."}

	rec := serve(t, api, http.MethodPost, "/api/auth/resend-otp", `{"userId":"abc"}`, "")

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 0, api.auth.resendID)
}

func TestVerifyOTP_ReturnsTokenAndSummary(t *testing.T) {
	api := newTestAPI()
	api.auth.verifyRes = services.VerifyResult{
		User:  types.User{ID: 3, Name: "Alice A", UserCode: "MC-20251", Email: "a@b.com"},
		Token: "signed",
	}

	rec := serve(t, api, http.MethodPost, "/api/auth/verify-otp", `{"userId":3,"otp":"aB3dE"}`, "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, msgVerified, body["message"])
	assert.Equal(t, "signed", body["token"])
	assert.Equal(t, map[string]any{"id": float64(3), "fullName": "Alice A", "userId": "MC-20251"}, body["user"])
	assert.Equal(t, 3, api.auth.verifyID)
	assert.Equal(t, "aB3dE", api.auth.verifyCode)
}

func TestVerifyOTP_WrongCode(t *testing.T) {
	api := newTestAPI()
	api.auth.err = &services.Error{Kind: services.KindValidation, Message: "Invalid OTP."}

	rec := serve(t, api, http.MethodPost, "/api/auth/verify-otp", `{"userId":3,"otp":"zzzzz"}`, "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Invalid OTP.", body["message"])
	assert.NotContains(t, body, "errors")
}

func TestLogin_Unverified(t *testing.T) {
	api := newTestAPI()
	api.auth.err = &services.UnverifiedError{UserID: 9}

	rec := serve(t, api, http.MethodPost, "/api/auth/login", `{"email":"a@b.com","password":"x"}`, "")

	require.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 9, body["userId"])
	assert.Contains(t, body["message"], "not verified")
}

func TestLogin_Success(t *testing.T) {
	api := newTestAPI()
	api.auth.loginRes = services.LoginResult{User: types.User{ID: 3, Name: "Alice A"}, Token: "signed"}

	rec := serve(t, api, http.MethodPost, "/api/auth/login", `{"email":"a@b.com","password":"Abcdefghi1"}`, "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, msgLoggedIn, body["message"])
	assert.Equal(t, "signed", body["token"])
	assert.Equal(t, "a@b.com", api.auth.loginEmail)
}

func TestLogin_InternalErrorIsHidden(t *testing.T) {
	api := newTestAPI()
	api.auth.err = errors.New("pq: connection refused")

	rec := serve(t, api, http.MethodPost, "/api/auth/login", `{"email":"a@b.com","password":"x"}`, "")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, msgInternalError, decodeBody(t, rec)["message"])
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestRequireAuth_RejectsMissingAndInvalidTokens(t *testing.T) {
	api := newTestAPI()

	for name, header := range map[string]string{
		"missing":    "",
		"malformed":  "Bearer not-a-jwt",
		"wrong kind": "Basic YWxpY2U6c2VjcmV0",
	} {
		t.Run(name, func(t *testing.T) {
			rec := serve(t, api, http.MethodGet, "/api/auth/user/3", "", header)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, msgUnauthorized, decodeBody(t, rec)["message"])
		})
	}
	assert.Zero(t, api.users.actorID)
}

func TestGetUser_PassesPathAndCaller(t *testing.T) {
	api := newTestAPI()
	api.users.user = types.User{ID: 3, Name: "Alice A", Email: "a@b.com", Mobile: "9876543210", PasswordHash: "secret"}

	rec := serve(t, api, http.MethodGet, "/api/auth/user/3", "", api.bearer(3, "a@b.com"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, api.users.targetID)
	assert.Equal(t, 3, api.users.actorID)
	assert.Equal(t, map[string]any{
		"id": float64(3), "fullName": "Alice A", "email": "a@b.com", "mobile": "9876543210",
	}, decodeBody(t, rec)["user"])
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestGetUser_NonNumericPathID(t *testing.T) {
	api := newTestAPI()
	api.users.err = &services.Error{Kind: services.KindForbidden, Message: "Forbidden: You can only view your own user data."}

	rec := serve(t, api, http.MethodGet, "/api/auth/user/abc", "", api.bearer(3, "a@b.com"))

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, api.users.targetID)
}

func TestUpdateUser_OptionalFields(t *testing.T) {
	api := newTestAPI()
	api.users.user = types.User{ID: 3, Name: "Alice B", Mobile: "9123456789"}

	rec := serve(t, api, http.MethodPut, "/api/auth/user/3", `{"fullName":"Alice B","mobile":9123456789}`, api.bearer(3, "a@b.com"))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, msgUserUpdated, body["message"])
	require.NotNil(t, api.users.updateIn.FullName)
	assert.Equal(t, "Alice B", *api.users.updateIn.FullName)
	require.NotNil(t, api.users.updateIn.Mobile)
	assert.Equal(t, "9123456789", *api.users.updateIn.Mobile)

	rec = serve(t, api, http.MethodPut, "/api/auth/user/3", `{"fullName":"Alice C"}`, api.bearer(3, "a@b.com"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, api.users.updateIn.Mobile)
}

func TestHealthz(t *testing.T) {
	api := newTestAPI()

	rec := serve(t, api, http.MethodGet, "/healthz", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}
