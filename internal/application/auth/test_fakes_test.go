package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

/*
Shared audit capture
*/

type auditEntry struct {
	action string
	fields map[string]string
}

/*
Fakes for ports
*/

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User

	getErr    error
	upsertErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]domain.User{}}
}

func (f *fakeUserRepo) GetByName(_ context.Context, name string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[name]
	if !ok {
		return nil, domain.ErrUserNotFound()
	}
	return &u, nil
}

func (f *fakeUserRepo) Upsert(_ context.Context, u domain.User) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return false, f.upsertErr
	}
	_, exists := f.users[u.Name]
	f.users[u.Name] = u
	return !exists, nil
}

type fakeTokenStore struct {
	mu     sync.Mutex
	tokens map[string]domain.OAuthToken

	getErr    error
	upsertErr error
	upserts   int
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: map[string]domain.OAuthToken{}}
}

func (f *fakeTokenStore) Get(_ context.Context, user string) (*domain.OAuthToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	t, ok := f.tokens[user]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeTokenStore) Upsert(_ context.Context, user string, tok domain.OAuthToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts++
	f.tokens[user] = tok
	return nil
}

// fakeLoginStore writes through to the user and token fakes, like the
// postgres transaction does.
type fakeLoginStore struct {
	users  *fakeUserRepo
	tokens *fakeTokenStore

	err   error
	calls int
}

func (f *fakeLoginStore) SaveLogin(ctx context.Context, u domain.User, tok domain.OAuthToken) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	created, err := f.users.Upsert(ctx, u)
	if err != nil {
		return false, err
	}
	return created, f.tokens.Upsert(ctx, u.Name, tok)
}

type fakeProvider struct {
	exchangeGrant *TokenGrant
	exchangeErr   error
	refreshGrant  *TokenGrant
	refreshErr    error

	exchanged   []string
	refreshed   []string
	redirectURI string
}

func (f *fakeProvider) AuthCodeURL(state, redirectURI string) string {
	q := url.Values{}
	q.Set("state", state)
	q.Set("redirect_uri", redirectURI)
	return "https://idp.example.com/authorize?" + q.Encode()
}

func (f *fakeProvider) Exchange(_ context.Context, code, redirectURI string) (*TokenGrant, error) {
	f.exchanged = append(f.exchanged, code)
	f.redirectURI = redirectURI
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.exchangeGrant, nil
}

func (f *fakeProvider) Refresh(_ context.Context, refreshToken string) (*TokenGrant, error) {
	f.refreshed = append(f.refreshed, refreshToken)
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshGrant, nil
}

type fakeProfiles struct {
	profile *domain.UserProfile
	err     error
	tokens  []string
}

func (f *fakeProfiles) FetchProfile(_ context.Context, accessToken string) (*domain.UserProfile, error) {
	f.tokens = append(f.tokens, accessToken)
	if f.err != nil {
		return nil, f.err
	}
	p := *f.profile
	return &p, nil
}

// fakeStates mirrors the plain codec closely enough for flow tests.
type fakeStates struct {
	encodeErr error
}

func (f fakeStates) Encode(cameFrom string) (string, error) {
	if f.encodeErr != nil {
		return "", f.encodeErr
	}
	b, _ := json.Marshal(map[string]string{"came_from": cameFrom})
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (fakeStates) Decode(token string) string {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "/"
	}
	var m map[string]string
	if json.Unmarshal(b, &m) != nil || m["came_from"] == "" {
		return "/"
	}
	return m["came_from"]
}

type fakeRememberer struct {
	remembered []domain.Identity
	forgotten  []domain.Identity
	err        error
}

func (f *fakeRememberer) Remember(_ context.Context, id domain.Identity) ([]domain.Header, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.remembered = append(f.remembered, id)
	return []domain.Header{
		{Name: "Set-Cookie", Value: "sess=" + id.UserID()},
		{Name: "Set-Cookie", Value: "sess_flag=1"},
	}, nil
}

func (f *fakeRememberer) Forget(_ context.Context, id domain.Identity) ([]domain.Header, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.forgotten = append(f.forgotten, id)
	return []domain.Header{{Name: "Set-Cookie", Value: "sess=; Max-Age=0"}}, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	logins    []LoginSucceededEvent
	refreshes []TokenRefreshedEvent
	ctxErrs   []error
	err       error

	// release, when set, holds every publish until it is closed.
	release chan struct{}
}

func (f *fakePublisher) wait(ctx context.Context) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.mu.Unlock()
}

func (f *fakePublisher) PublishLoginSucceeded(ctx context.Context, evt LoginSucceededEvent) error {
	f.wait(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins = append(f.logins, evt)
	return f.err
}

func (f *fakePublisher) PublishTokenRefreshed(ctx context.Context, evt TokenRefreshedEvent) error {
	f.wait(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes = append(f.refreshes, evt)
	return f.err
}

func (f *fakePublisher) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.logins)
}

/*
Test harness
*/

type testEnv struct {
	svc      *Service
	users    *fakeUserRepo
	tokens   *fakeTokenStore
	logins   *fakeLoginStore
	provider *fakeProvider
	profiles *fakeProfiles
	rem      *fakeRememberer
	pub      *fakePublisher
	audits   *[]auditEntry
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	users := newFakeUserRepo()
	tokens := newFakeTokenStore()
	env := &testEnv{
		users:  users,
		tokens: tokens,
		logins: &fakeLoginStore{users: users, tokens: tokens},
		provider: &fakeProvider{
			exchangeGrant: &TokenGrant{
				Token: domain.OAuthToken{
					AccessToken:  "at-1",
					RefreshToken: "rt-1",
					TokenType:    "Bearer",
					ExpiresIn:    3600,
				},
				RefreshTokenIssued: true,
			},
		},
		profiles: &fakeProfiles{profile: &domain.UserProfile{
			Username: "alice",
			FullName: "Alice Smith",
			Email:    "alice@example.com",
		}},
		rem:    &fakeRememberer{},
		pub:    &fakePublisher{},
		audits: &[]auditEntry{},
	}

	if cfg.RemembererName == "" {
		cfg.RemembererName = "fake"
	}
	reg := NewRegistry()
	reg.Register("fake", env.rem)

	svc, err := NewService(Deps{
		Users:    env.users,
		Tokens:   env.tokens,
		Logins:   env.logins,
		Provider: env.provider,
		Profiles: env.profiles,
		States:   fakeStates{},
		Events:   env.pub,
	}, reg, cfg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	audits := env.audits
	svc.WithAudit(func(action string, fields map[string]string) {
		*audits = append(*audits, auditEntry{action: action, fields: fields})
	})
	env.svc = svc
	return env
}

func (e *testEnv) auditActions() []string {
	out := make([]string, 0, len(*e.audits))
	for _, a := range *e.audits {
		out = append(out, a.action)
	}
	return out
}

var errBoom = errors.New("boom")
