package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"authbase/internal/models"
)

// --- фейковые репозитории (in-memory) ---

type fakeUserRepo struct {
	byID    map[string]*models.User
	byEmail map[string]*models.User

	createErr error
	getErr    error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: map[string]*models.User{}, byEmail: map[string]*models.User{}}
}

func (f *fakeUserRepo) Create(u *models.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byEmail[u.Email]; ok {
		return fmt.Errorf("create user: %w", &pq.Error{Code: "23505"})
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	f.byID[u.ID] = &cp
	f.byEmail[u.Email] = &cp
	return nil
}

func (f *fakeUserRepo) GetByID(id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetByEmail(email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) MarkEmailVerified(userID string) error {
	u, ok := f.byID[userID]
	if !ok {
		return errors.New("no such user")
	}
	u.IsEmailVerified = true
	return nil
}

func (f *fakeUserRepo) UpdatePassword(userID, passwordHash string) error {
	u, ok := f.byID[userID]
	if !ok {
		return errors.New("no such user")
	}
	u.PasswordHash = passwordHash
	return nil
}

type fakeSessionRepo struct {
	byToken map[string]*models.Session

	createErr error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{byToken: map[string]*models.Session{}}
}

func (f *fakeSessionRepo) Create(s *models.Session) error {
	if f.createErr != nil {
		return f.createErr
	}
	s.CreatedAt = time.Now()
	cp := *s
	f.byToken[s.Token] = &cp
	return nil
}

func (f *fakeSessionRepo) GetByToken(token string) (*models.Session, error) {
	s, ok := f.byToken[token]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionRepo) UpdateExpiresAt(id string, expiresAt time.Time) error {
	for _, s := range f.byToken {
		if s.ID == id {
			s.ExpiresAt = expiresAt
			return nil
		}
	}
	return errors.New("no such session")
}

func (f *fakeSessionRepo) DeleteByToken(token string) error {
	delete(f.byToken, token)
	return nil
}

func (f *fakeSessionRepo) DeleteByUserID(userID string) (int64, error) {
	var n int64
	for token, s := range f.byToken {
		if s.UserID == userID {
			delete(f.byToken, token)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	var n int64
	for token, s := range f.byToken {
		if s.IsExpired() {
			delete(f.byToken, token)
			n++
		}
	}
	return n, nil
}

type fakeCodeRepo struct {
	active map[string]*models.VerificationCode // ключ user_id|purpose
	used   []string

	replaceErr error
}

func newFakeCodeRepo() *fakeCodeRepo {
	return &fakeCodeRepo{active: map[string]*models.VerificationCode{}}
}

func codeKey(userID, purpose string) string { return userID + "|" + purpose }

func (f *fakeCodeRepo) Replace(code *models.VerificationCode) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	code.CreatedAt = time.Now()
	cp := *code
	f.active[codeKey(cp.UserID, cp.Purpose)] = &cp
	return nil
}

func (f *fakeCodeRepo) GetActive(userID, purpose string) (*models.VerificationCode, error) {
	c, ok := f.active[codeKey(userID, purpose)]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCodeRepo) MarkUsed(id string) error {
	for k, c := range f.active {
		if c.ID == id {
			delete(f.active, k)
			f.used = append(f.used, id)
			return nil
		}
	}
	return errors.New("no such code")
}

func (f *fakeCodeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	var n int64
	for k, c := range f.active {
		if c.IsExpired() {
			delete(f.active, k)
			n++
		}
	}
	return n, nil
}

type fakeEmailer struct {
	verifyCodes []string
	resetCodes  []string

	sendErr error
}

func (f *fakeEmailer) SendVerificationEmail(email, name, code string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.verifyCodes = append(f.verifyCodes, code)
	return nil
}

func (f *fakeEmailer) SendPasswordResetEmail(email, name, code string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.resetCodes = append(f.resetCodes, code)
	return nil
}

// --- хелперы ---

func newAuthFixture() (*fakeUserRepo, *fakeSessionRepo, AuthService) {
	users := newFakeUserRepo()
	sessions := newFakeSessionRepo()
	return users, sessions, NewAuthService(users, sessions, time.Hour)
}

// seedUser кладёт пользователя напрямую в репозиторий (bcrypt.MinCost, чтобы не тормозить тесты).
func seedUser(t *testing.T, users *fakeUserRepo, email, password string, verified bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	u := &models.User{
		ID:              uuid.NewString(),
		Name:            "Test User",
		Email:           email,
		PasswordHash:    string(hash),
		IsEmailVerified: verified,
	}
	if err := users.Create(u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// --- регистрация ---

func TestRegister_Success(t *testing.T) {
	_, _, auth := newAuthFixture()

	u := &models.User{Name: "Alice", Email: "  Alice@Example.COM  "}
	if err := auth.Register(u, "password123"); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	if u.ID == "" {
		t.Fatal("user id not assigned")
	}
	if u.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", u.Email)
	}
	if u.IsEmailVerified {
		t.Fatal("new user must start unverified")
	}
	cost, err := bcrypt.Cost([]byte(u.PasswordHash))
	if err != nil || cost != 12 {
		t.Fatalf("want bcrypt cost 12, got %d (err=%v)", cost, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("password123")); err != nil {
		t.Fatalf("hash does not match password: %v", err)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	users, _, auth := newAuthFixture()
	seedUser(t, users, "alice@example.com", "password123", false)

	err := auth.Register(&models.User{Name: "Another", Email: "ALICE@example.com"}, "otherpass123")
	if !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("want ErrUserAlreadyExists, got %v", err)
	}
}

func TestRegister_DuplicateRace(t *testing.T) {
	// пользователь появился между проверкой и INSERT: 23505 от БД
	users, _, auth := newAuthFixture()
	users.createErr = fmt.Errorf("create user: %w", &pq.Error{Code: "23505"})

	err := auth.Register(&models.User{Name: "Alice", Email: "alice@example.com"}, "password123")
	if !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("want ErrUserAlreadyExists, got %v", err)
	}
}

func TestRegister_RequiresEmailAndPassword(t *testing.T) {
	_, _, auth := newAuthFixture()

	if err := auth.Register(&models.User{Name: "NoEmail"}, "password123"); err == nil {
		t.Fatal("empty email must be rejected")
	}
	if err := auth.Register(&models.User{Name: "NoPass", Email: "a@b.c"}, "   "); err == nil {
		t.Fatal("blank password must be rejected")
	}
}

// --- вход ---

func TestLogin_Success(t *testing.T) {
	users, _, auth := newAuthFixture()
	seeded := seedUser(t, users, "alice@example.com", "password123", true)

	got, err := auth.Login("  ALICE@example.com ", "password123")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if got.ID != seeded.ID {
		t.Fatalf("want user %s, got %s", seeded.ID, got.ID)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	_, _, auth := newAuthFixture()

	_, err := auth.Login("ghost@example.com", "password123")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	users, _, auth := newAuthFixture()
	seedUser(t, users, "alice@example.com", "password123", true)

	_, err := auth.Login("alice@example.com", "wrong-password")
	if !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("want ErrInvalidPassword, got %v", err)
	}
}

func TestLogin_UnverifiedEmail(t *testing.T) {
	users, _, auth := newAuthFixture()
	seedUser(t, users, "alice@example.com", "password123", false)

	_, err := auth.Login("alice@example.com", "password123")
	if !errors.Is(err, ErrUserNotVerified) {
		t.Fatalf("want ErrUserNotVerified, got %v", err)
	}
}

// --- сессии ---

func TestIssueSession_Additive(t *testing.T) {
	_, _, auth := newAuthFixture()

	s1, err := auth.IssueSession("u-1", "10.0.0.1", "curl/8")
	if err != nil {
		t.Fatalf("IssueSession error: %v", err)
	}
	s2, err := auth.IssueSession("u-1", "", "")
	if err != nil {
		t.Fatalf("IssueSession error: %v", err)
	}

	if s1.Token == s2.Token {
		t.Fatal("tokens must be unique")
	}
	if s1.IPAddress == nil || *s1.IPAddress != "10.0.0.1" {
		t.Fatalf("ip not stored: %+v", s1.IPAddress)
	}
	if s2.IPAddress != nil || s2.UserAgent != nil {
		t.Fatal("empty ip/ua must stay nil")
	}

	// обе живы одновременно
	for _, token := range []string{s1.Token, s2.Token} {
		got, err := auth.GetSession(token)
		if err != nil || got == nil {
			t.Fatalf("session %q not alive: (%+v, %v)", token, got, err)
		}
	}
}

func TestIssueSession_ExpirySetFromLifetime(t *testing.T) {
	_, _, auth := newAuthFixture() // lifetime = 1h

	before := time.Now()
	s, err := auth.IssueSession("u-1", "", "")
	if err != nil {
		t.Fatalf("IssueSession error: %v", err)
	}
	want := before.Add(time.Hour)
	if s.ExpiresAt.Before(want.Add(-time.Minute)) || s.ExpiresAt.After(want.Add(time.Minute)) {
		t.Fatalf("expires_at %s not near %s", s.ExpiresAt, want)
	}
}

func TestGetSession_UnknownAndEmptyToken(t *testing.T) {
	_, _, auth := newAuthFixture()

	if s, err := auth.GetSession("no-such-token"); s != nil || err != nil {
		t.Fatalf("unknown token: want (nil, nil), got (%+v, %v)", s, err)
	}
	if s, err := auth.GetSession("   "); s != nil || err != nil {
		t.Fatalf("blank token: want (nil, nil), got (%+v, %v)", s, err)
	}
}

func TestGetSession_ExpiredIsDeleted(t *testing.T) {
	_, sessions, auth := newAuthFixture()

	expired := &models.Session{
		ID:        "s-old",
		UserID:    "u-1",
		Token:     "stale-token",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	if err := sessions.Create(expired); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	got, err := auth.GetSession("stale-token")
	if got != nil || err != nil {
		t.Fatalf("expired session must read as absent, got (%+v, %v)", got, err)
	}

	// ленивое удаление: записи больше нет
	raw, err := sessions.GetByToken("stale-token")
	if err != nil || raw != nil {
		t.Fatalf("expired session must be deleted, got (%+v, %v)", raw, err)
	}
}

func TestValidateSession_Success(t *testing.T) {
	users, _, auth := newAuthFixture()
	u := seedUser(t, users, "alice@example.com", "password123", true)

	issued, err := auth.IssueSession(u.ID, "10.0.0.1", "curl/8")
	if err != nil {
		t.Fatalf("IssueSession error: %v", err)
	}

	session, got, err := auth.ValidateSession(issued.Token)
	if err != nil {
		t.Fatalf("ValidateSession error: %v", err)
	}
	if session.ID != issued.ID || got.ID != u.ID {
		t.Fatalf("unexpected pair: session=%+v user=%+v", session, got)
	}
}

func TestValidateSession_ExpiredOrMissing(t *testing.T) {
	users, sessions, auth := newAuthFixture()

	if _, _, err := auth.ValidateSession("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("missing token: want ErrSessionNotFound, got %v", err)
	}

	expired := &models.Session{ID: "s-1", UserID: "u-1", Token: "old", ExpiresAt: time.Now().Add(-time.Second)}
	if err := sessions.Create(expired); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if _, _, err := auth.ValidateSession("old"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expired token: want ErrSessionNotFound, got %v", err)
	}

	// сессия есть, владельца уже нет
	orphan := &models.Session{ID: "s-2", UserID: "gone", Token: "orphan", ExpiresAt: time.Now().Add(time.Hour)}
	if err := sessions.Create(orphan); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	_ = users // владелец не создавался
	if _, _, err := auth.ValidateSession("orphan"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("orphan session: want ErrSessionNotFound, got %v", err)
	}
}

func TestResetSessionExpiration_Slides(t *testing.T) {
	_, sessions, auth := newAuthFixture() // lifetime = 1h

	soon := time.Now().Add(2 * time.Minute)
	s := &models.Session{ID: "s-1", UserID: "u-1", Token: "tok", ExpiresAt: soon}
	if err := sessions.Create(s); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	if err := auth.ResetSessionExpiration(s); err != nil {
		t.Fatalf("ResetSessionExpiration error: %v", err)
	}
	if !s.ExpiresAt.After(soon.Add(30 * time.Minute)) {
		t.Fatalf("expiry not extended: %s", s.ExpiresAt)
	}

	stored, err := sessions.GetByToken("tok")
	if err != nil || stored == nil {
		t.Fatalf("session lost: (%+v, %v)", stored, err)
	}
	if !stored.ExpiresAt.Equal(s.ExpiresAt) {
		t.Fatalf("expiry not persisted: stored=%s struct=%s", stored.ExpiresAt, s.ExpiresAt)
	}
}

// --- выход ---

func TestLogout_RevokesAllUserSessions(t *testing.T) {
	_, _, auth := newAuthFixture()

	s1, err := auth.IssueSession("u-1", "", "")
	if err != nil {
		t.Fatalf("IssueSession error: %v", err)
	}
	s2, err := auth.IssueSession("u-1", "", "")
	if err != nil {
		t.Fatalf("IssueSession error: %v", err)
	}

	revoked, err := auth.Logout(s1.Token)
	if err != nil || !revoked {
		t.Fatalf("Logout: want (true, nil), got (%v, %v)", revoked, err)
	}

	// отозваны обе, не только предъявленная
	for _, token := range []string{s1.Token, s2.Token} {
		if got, err := auth.GetSession(token); got != nil || err != nil {
			t.Fatalf("session %q survived logout: (%+v, %v)", token, got, err)
		}
	}

	// повторный выход — уже нечего отзывать
	revoked, err = auth.Logout(s1.Token)
	if err != nil || revoked {
		t.Fatalf("second Logout: want (false, nil), got (%v, %v)", revoked, err)
	}
}

func TestLogout_UnknownOrEmptyToken(t *testing.T) {
	_, _, auth := newAuthFixture()

	if revoked, err := auth.Logout("no-such-token"); revoked || err != nil {
		t.Fatalf("unknown token: want (false, nil), got (%v, %v)", revoked, err)
	}
	if revoked, err := auth.Logout(""); revoked || err != nil {
		t.Fatalf("empty token: want (false, nil), got (%v, %v)", revoked, err)
	}
}

func TestLogout_DoesNotTouchOtherUsers(t *testing.T) {
	_, _, auth := newAuthFixture()

	mine, err := auth.IssueSession("u-1", "", "")
	if err != nil {
		t.Fatalf("IssueSession error: %v", err)
	}
	other, err := auth.IssueSession("u-2", "", "")
	if err != nil {
		t.Fatalf("IssueSession error: %v", err)
	}

	if _, err := auth.Logout(mine.Token); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if got, err := auth.GetSession(other.Token); got == nil || err != nil {
		t.Fatalf("foreign session must survive: (%+v, %v)", got, err)
	}
}

func TestHashPassword_Cost(t *testing.T) {
	_, _, auth := newAuthFixture()

	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil || cost != 12 {
		t.Fatalf("want cost 12, got %d (err=%v)", cost, err)
	}
}
