package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mouldconnect/apiserver/internal/otp"
	"github.com/mouldconnect/apiserver/internal/store"
	"github.com/mouldconnect/apiserver/types"
)

type fakeUserRepo struct {
	mu        sync.Mutex
	users     map[int]types.User
	nextID    int
	createErr error
	verifyErr error
	updateErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int]types.User{}, nextID: 1}
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.Deleted {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email && !u.Deleted {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) FindConflicting(ctx context.Context, username, email, mobile string) ([]types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.User
	for id := 1; id < r.nextID; id++ {
		u, ok := r.users[id]
		if !ok || u.Deleted {
			continue
		}
		if u.Username == username || u.Email == email || u.Mobile == mobile {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return types.User{}, r.createErr
	}
	for _, u := range r.users {
		switch {
		case u.Username == user.Username:
			return types.User{}, &store.DuplicateError{Field: "username"}
		case u.Email == user.Email:
			return types.User{}, &store.DuplicateError{Field: "email"}
		case u.Mobile == user.Mobile:
			return types.User{}, &store.DuplicateError{Field: "mobile"}
		}
	}
	user.ID = r.nextID
	r.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) SetOTP(ctx context.Context, id int, code string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.EmailVerified {
		return store.ErrNotFound
	}
	u.OTP = &code
	u.OTPExpiresAt = &expiresAt
	r.users[id] = u
	return nil
}

func (r *fakeUserRepo) MarkVerified(ctx context.Context, id int, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.verifyErr != nil {
		return r.verifyErr
	}
	u, ok := r.users[id]
	if !ok || u.EmailVerified || u.OTP == nil || *u.OTP != code {
		return store.ErrNotFound
	}
	u.EmailVerified = true
	u.OTP = nil
	u.OTPExpiresAt = nil
	r.users[id] = u
	return nil
}

func (r *fakeUserRepo) UpdateDetails(ctx context.Context, id int, name, mobile string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return types.User{}, r.updateErr
	}
	u, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	for otherID, other := range r.users {
		if otherID != id && other.Mobile == mobile {
			return types.User{}, &store.DuplicateError{Field: "mobile"}
		}
	}
	u.Name = name
	u.Mobile = mobile
	r.users[id] = u
	return u, nil
}

func (r *fakeUserRepo) get(id int) types.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

type fakeCounters struct {
	mu     sync.Mutex
	values map[string]int64
}

func (c *fakeCounters) Next(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = map[string]int64{}
	}
	c.values[key]++
	return c.values[key], nil
}

// fakeHasher prefixes instead of hashing and counts Verify calls.
type fakeHasher struct {
	mu          sync.Mutex
	verifyCalls int
}

func (h *fakeHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (h *fakeHasher) Verify(password, encoded string) (bool, error) {
	h.mu.Lock()
	h.verifyCalls++
	h.mu.Unlock()
	if !strings.HasPrefix(encoded, "hashed:") {
		return false, errors.New("malformed hash")
	}
	return encoded == "hashed:"+password, nil
}

// fakeOTPs hands out codes in order, then repeats the last.
type fakeOTPs struct {
	mu    sync.Mutex
	codes []string
	next  int
}

func (o *fakeOTPs) Issue(now time.Time) (otp.Code, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	value := o.codes[len(o.codes)-1]
	if o.next < len(o.codes) {
		value = o.codes[o.next]
		o.next++
	}
	return otp.Code{Value: value, ExpiresAt: now.Add(otp.TTL)}, nil
}

type fakeTokens struct{}

func (fakeTokens) Issue(userID int, email string) (string, error) {
	return fmt.Sprintf("token-%d-%s", userID, email), nil
}

type sentMail struct {
	to, subject, body string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *fakeNotifier) Send(ctx context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (n *fakeNotifier) last() sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type fakeEvents struct {
	mu     sync.Mutex
	events []types.AccountEvent
}

func (e *fakeEvents) Publish(ctx context.Context, event types.AccountEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *fakeEvents) typesSeen() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeProfileRepo struct {
	mu       sync.Mutex
	profiles map[int]types.Profile
	nextID   int
	// raceProfile is inserted right before the next Create to simulate a
	// concurrent request winning the insert.
	raceProfile *types.Profile
	createErr   error
	updateErr   error
	updates     int
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: map[int]types.Profile{}, nextID: 1}
}

func (r *fakeProfileRepo) GetByUserID(ctx context.Context, userID int) (types.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return types.Profile{}, store.ErrNotFound
	}
	return p, nil
}

func (r *fakeProfileRepo) Create(ctx context.Context, p types.Profile) (types.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.raceProfile != nil {
		race := *r.raceProfile
		race.ID = r.nextID
		r.nextID++
		r.profiles[race.UserID] = race
		r.raceProfile = nil
	}
	if r.createErr != nil {
		return types.Profile{}, r.createErr
	}
	if _, ok := r.profiles[p.UserID]; ok {
		return types.Profile{}, &store.DuplicateError{Field: "user_id"}
	}
	p.ID = r.nextID
	r.nextID++
	r.profiles[p.UserID] = p
	return p, nil
}

func (r *fakeProfileRepo) Update(ctx context.Context, p types.Profile) (types.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return types.Profile{}, r.updateErr
	}
	r.updates++
	r.profiles[p.UserID] = p
	return p, nil
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	putErr  error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}}
}

func (o *fakeObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.putErr != nil {
		return o.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	o.objects[key] = buf.Bytes()
	return nil
}

func (o *fakeObjects) Delete(ctx context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deleted = append(o.deleted, key)
	delete(o.objects, key)
	return nil
}

func (o *fakeObjects) keys() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.objects))
	for k := range o.objects {
		out = append(out, k)
	}
	return out
}
