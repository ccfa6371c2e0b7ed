package handlers

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mouldconnect/apiserver/internal/services"
	"github.com/mouldconnect/apiserver/internal/storage"
	"github.com/mouldconnect/apiserver/internal/token"
	"github.com/mouldconnect/apiserver/types"
)

const testSecret = "handler-test-secret"

type fakeAuth struct {
	registerIn  services.RegisterInput
	registerRes services.RegisterResult
	resendID    int
	verifyID    int
	verifyCode  string
	verifyRes   services.VerifyResult
	loginEmail  string
	loginRes    services.LoginResult
	err         error
}

func (f *fakeAuth) Register(ctx context.Context, in services.RegisterInput) (services.RegisterResult, error) {
	f.registerIn = in
	return f.registerRes, f.err
}

func (f *fakeAuth) ResendOTP(ctx context.Context, userID int) error {
	f.resendID = userID
	return f.err
}

func (f *fakeAuth) VerifyOTP(ctx context.Context, userID int, code string) (services.VerifyResult, error) {
	f.verifyID, f.verifyCode = userID, code
	return f.verifyRes, f.err
}

func (f *fakeAuth) Login(ctx context.Context, email, password string) (services.LoginResult, error) {
	f.loginEmail = email
	return f.loginRes, f.err
}

type fakeUsers struct {
	targetID int
	actorID  int
	updateIn services.UpdateUserInput
	user     types.User
	err      error
}

func (f *fakeUsers) GetDetails(ctx context.Context, targetID, actorID int) (types.User, error) {
	f.targetID, f.actorID = targetID, actorID
	return f.user, f.err
}

func (f *fakeUsers) Update(ctx context.Context, targetID, actorID int, in services.UpdateUserInput) (types.User, error) {
	f.targetID, f.actorID, f.updateIn = targetID, actorID, in
	return f.user, f.err
}

type fakeProfiles struct {
	targetID int
	actorID  int
	profile  *types.Profile
	upsertIn services.UpsertProfileInput
	result   services.UpsertProfileResult
	calls    int
	err      error
}

func (f *fakeProfiles) Get(ctx context.Context, targetUserID, actorUserID int) (*types.Profile, error) {
	f.targetID, f.actorID = targetUserID, actorUserID
	return f.profile, f.err
}

func (f *fakeProfiles) Upsert(ctx context.Context, in services.UpsertProfileInput) (services.UpsertProfileResult, error) {
	f.calls++
	f.upsertIn = in
	return f.result, f.err
}

type fakeObjectReader struct {
	objects map[string][]byte
}

func (f fakeObjectReader) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type testAPI struct {
	router   chi.Router
	tokens   *token.Issuer
	auth     *fakeAuth
	users    *fakeUsers
	profiles *fakeProfiles
}

func newTestAPI() *testAPI {
	api := &testAPI{
		tokens:   token.NewIssuer(testSecret, time.Hour),
		auth:     &fakeAuth{},
		users:    &fakeUsers{},
		profiles: &fakeProfiles{},
	}
	requireAuth := RequireAuth(api.tokens)

	r := chi.NewRouter()
	r.Get("/healthz", Healthz)
	r.Route("/api/auth", func(r chi.Router) {
		AuthRouter(r, NewAuthHandler(api.auth, api.users, nil), requireAuth)
	})
	r.Route("/api/profile", func(r chi.Router) {
		ProfileRouter(r, NewProfileHandler(api.profiles, nil), requireAuth)
	})
	api.router = r
	return api
}

func (a *testAPI) bearer(userID int, email string) string {
	signed, err := a.tokens.Issue(userID, email)
	if err != nil {
		panic(err)
	}
	return "Bearer " + signed
}
