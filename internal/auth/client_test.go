package auth_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nhle/tasksync/internal/api"
	"github.com/nhle/tasksync/internal/auth"
	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/session"
	"github.com/nhle/tasksync/tests/testutil"
)

type harness struct {
	api     *testutil.FakeAPI
	backend *session.MemoryBackend
	session *session.Session
	client  *auth.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := testutil.NewFakeAPI(t)
	return newHarnessWithURL(t, fake, fake.URL())
}

func newHarnessWithURL(t *testing.T, fake *testutil.FakeAPI, url string) *harness {
	t.Helper()
	backend := session.NewMemoryBackend()
	sess := session.New()
	return &harness{
		api:     fake,
		backend: backend,
		session: sess,
		client:  auth.NewClient(api.NewClient(url), sess, session.NewStore(backend, nil), nil),
	}
}

// restart simulates a new process over the same persisted store.
func (h *harness) restart() *harness {
	sess := session.New()
	return &harness{
		api:     h.api,
		backend: h.backend,
		session: sess,
		client:  auth.NewClient(api.NewClient(h.api.URL()), sess, session.NewStore(h.backend, nil), nil),
	}
}

func TestLoginScenario(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"message":"ok","user":{"id":7,"email":"a@b.com","password_hash":"x"}}`)
	}))
	defer srv.Close()

	backend := session.NewMemoryBackend()
	sess := session.New()
	store := session.NewStore(backend, nil)
	c := auth.NewClient(api.NewClient(srv.URL), sess, store, nil)

	if err := c.Login(context.Background(), model.NewUser("a@b.com", "x")); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if id, err := sess.UserID(); err != nil || id != 7 {
		t.Errorf("session user id = %d, %v", id, err)
	}

	persisted, ok := session.NewStore(backend, nil).Load()
	if !ok {
		t.Fatal("login should persist the session")
	}
	if id, _ := persisted.UserID(); id != 7 || persisted.Email != "a@b.com" {
		t.Errorf("persisted = %+v", persisted)
	}
}

func TestLoginLowercasesEmail(t *testing.T) {
	h := newHarness(t)
	h.api.AddUser("mixed@case.com", "pw")

	if err := h.client.Login(context.Background(), model.NewUser("Mixed@Case.COM", "pw")); err != nil {
		t.Fatalf("Login: %v", err)
	}
	u, ok := h.session.CurrentUser()
	if !ok || u.Email != "mixed@case.com" {
		t.Errorf("current user = %+v, %v", u, ok)
	}
}

func TestLoginFailureLeavesSessionUnchanged(t *testing.T) {
	h := newHarness(t)
	h.api.AddUser("a@b.com", "right")

	err := h.client.Login(context.Background(), model.NewUser("a@b.com", "wrong"))
	if !errors.Is(err, auth.ErrLoginFailed) {
		t.Fatalf("Login error = %v, want ErrLoginFailed", err)
	}
	if !api.IsStatus(err, http.StatusUnauthorized) {
		t.Errorf("expected the 401 to be in the chain: %v", err)
	}
	if h.session.LoggedIn() {
		t.Error("failed login must not populate the session")
	}
	if _, err := h.backend.Get(session.UserKey); !errors.Is(err, session.ErrNotFound) {
		t.Error("failed login must not persist anything")
	}
	if n := h.api.Calls("POST /api/auth/login"); n != 1 {
		t.Errorf("login calls = %d, want exactly 1 (no retry)", n)
	}
}

func TestLoginFailureKeepsPriorSession(t *testing.T) {
	h := newHarness(t)
	h.api.AddUser("first@b.com", "x")

	ctx := context.Background()
	if err := h.client.Login(ctx, model.NewUser("first@b.com", "x")); err != nil {
		t.Fatal(err)
	}
	if err := h.client.Login(ctx, model.NewUser("nobody@b.com", "x")); err == nil {
		t.Fatal("expected failure for unknown user")
	}

	u, ok := h.session.CurrentUser()
	if !ok || u.Email != "first@b.com" {
		t.Errorf("prior session lost: %+v, %v", u, ok)
	}
}

func TestLoginUndecodableResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"ok"}`)
	}))
	defer srv.Close()

	sess := session.New()
	c := auth.NewClient(api.NewClient(srv.URL), sess, session.NewStore(session.NewMemoryBackend(), nil), nil)

	err := c.Login(context.Background(), model.NewUser("a@b.com", "x"))
	if !errors.Is(err, auth.ErrLoginFailed) || !errors.Is(err, api.ErrDecode) {
		t.Fatalf("Login error = %v", err)
	}
	if sess.LoggedIn() {
		t.Error("session must stay empty")
	}
}

func TestLoginRejectsIncompleteUser(t *testing.T) {
	tests := map[string]string{
		"no password": `{"message":"ok","user":{"id":7,"email":"a@b.com"}}`,
		"no email":    `{"message":"ok","user":{"id":7,"password_hash":"x"}}`,
		"no id":       `{"message":"ok","user":{"email":"a@b.com","password_hash":"x"}}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, body)
			}))
			defer srv.Close()

			backend := session.NewMemoryBackend()
			sess := session.New()
			c := auth.NewClient(api.NewClient(srv.URL), sess, session.NewStore(backend, nil), nil)

			err := c.Login(context.Background(), model.NewUser("a@b.com", "x"))
			if !errors.Is(err, auth.ErrLoginFailed) || !errors.Is(err, api.ErrDecode) {
				t.Fatalf("Login error = %v", err)
			}
			if sess.LoggedIn() {
				t.Error("session must stay empty")
			}
			if _, err := backend.Get(session.UserKey); !errors.Is(err, session.ErrNotFound) {
				t.Errorf("nothing should be persisted, Get = %v", err)
			}
		})
	}
}

func TestLoginTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	sess := session.New()
	c := auth.NewClient(api.NewClient(url), sess, session.NewStore(session.NewMemoryBackend(), nil), nil)

	if err := c.Login(context.Background(), model.NewUser("a@b.com", "x")); !errors.Is(err, auth.ErrLoginFailed) {
		t.Fatalf("Login error = %v", err)
	}
	if sess.LoggedIn() {
		t.Error("session must stay empty")
	}
}

func TestLoginRejectsEmptyFieldsWithoutNetwork(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.client.Login(ctx, model.NewUser("", "x")); !errors.Is(err, model.ErrEmptyEmail) {
		t.Errorf("empty email: %v", err)
	}
	if err := h.client.Login(ctx, model.NewUser("a@b.com", "")); !errors.Is(err, model.ErrEmptyPassword) {
		t.Errorf("empty password: %v", err)
	}
	if n := h.api.TotalCalls(); n != 0 {
		t.Errorf("server saw %d calls, want 0", n)
	}
}

func TestCheckExistingSessionAfterRestart(t *testing.T) {
	h := newHarness(t)
	id := h.api.AddUser("a@b.com", "x")

	if err := h.client.Login(context.Background(), model.NewUser("a@b.com", "x")); err != nil {
		t.Fatal(err)
	}

	restarted := h.restart()
	if restarted.session.LoggedIn() {
		t.Fatal("a fresh process starts logged out")
	}
	if !restarted.client.CheckExistingSession() {
		t.Fatal("expected persisted session to be restored")
	}
	u, _ := restarted.session.CurrentUser()
	if got, _ := u.UserID(); got != id || u.Email != "a@b.com" {
		t.Errorf("restored = %+v", u)
	}
}

func TestCheckExistingSessionCorruptRecord(t *testing.T) {
	h := newHarness(t)
	if err := h.backend.Set(session.UserKey, []byte("garbage")); err != nil {
		t.Fatal(err)
	}
	if h.client.CheckExistingSession() {
		t.Error("corrupt record must not restore a session")
	}
	if h.session.LoggedIn() {
		t.Error("session must stay empty")
	}
}

func TestLogoutThenCheckExistingSession(t *testing.T) {
	h := newHarness(t)
	h.api.AddUser("a@b.com", "x")

	if err := h.client.Login(context.Background(), model.NewUser("a@b.com", "x")); err != nil {
		t.Fatal(err)
	}
	if err := h.client.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if h.session.LoggedIn() {
		t.Error("session should be empty after logout")
	}

	restarted := h.restart()
	if restarted.client.CheckExistingSession() {
		t.Error("no record should survive logout")
	}

	// Logging out twice is harmless.
	if err := h.client.Logout(); err != nil {
		t.Errorf("second Logout: %v", err)
	}
}

func TestRegisterSuccessDoesNotLogIn(t *testing.T) {
	h := newHarness(t)

	if err := h.client.Register(context.Background(), model.NewUser("New@b.com", "pw")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if h.session.LoggedIn() {
		t.Error("registration must not establish a session")
	}
	if _, err := h.backend.Get(session.UserKey); !errors.Is(err, session.ErrNotFound) {
		t.Error("registration must not persist a session")
	}

	// The account exists under the lowercased email.
	if err := h.client.Login(context.Background(), model.NewUser("new@b.com", "pw")); err != nil {
		t.Errorf("login after register: %v", err)
	}
}

func TestRegisterSurfacesServerMessage(t *testing.T) {
	h := newHarness(t)
	h.api.AddUser("taken@b.com", "x")

	err := h.client.Register(context.Background(), model.NewUser("taken@b.com", "y"))

	var regErr *auth.RegisterError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected *RegisterError, got %v", err)
	}
	if regErr.Reason != "User already exists" {
		t.Errorf("Reason = %q", regErr.Reason)
	}
	if regErr.StatusCode != http.StatusConflict {
		t.Errorf("StatusCode = %d", regErr.StatusCode)
	}
}

func TestRegisterGenericReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "<html>bad gateway</html>")
	}))
	defer srv.Close()

	c := auth.NewClient(api.NewClient(srv.URL), session.New(), session.NewStore(session.NewMemoryBackend(), nil), nil)
	err := c.Register(context.Background(), model.NewUser("a@b.com", "x"))

	var regErr *auth.RegisterError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected *RegisterError, got %v", err)
	}
	if regErr.Reason != "Registration failed with status code 502" {
		t.Errorf("Reason = %q", regErr.Reason)
	}
}

func TestRegisterTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := auth.NewClient(api.NewClient(url), session.New(), session.NewStore(session.NewMemoryBackend(), nil), nil)
	err := c.Register(context.Background(), model.NewUser("a@b.com", "x"))

	var regErr *auth.RegisterError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected *RegisterError, got %v", err)
	}
	if regErr.StatusCode != 0 || regErr.Err == nil {
		t.Errorf("unexpected error details: %+v", regErr)
	}
}

func TestRegisterPasswordMismatchNeverReachesNetwork(t *testing.T) {
	h := newHarness(t)

	err := h.client.RegisterWithConfirmation(context.Background(), "a@b.com", "one", "two")
	if !errors.Is(err, auth.ErrPasswordMismatch) {
		t.Fatalf("error = %v, want ErrPasswordMismatch", err)
	}
	if err.Error() != "Passwords do not match" {
		t.Errorf("message = %q", err.Error())
	}
	if n := h.api.TotalCalls(); n != 0 {
		t.Errorf("server saw %d calls, want 0", n)
	}
	if h.session.LoggedIn() {
		t.Error("session must not change")
	}
	if _, err := h.backend.Get(session.UserKey); !errors.Is(err, session.ErrNotFound) {
		t.Error("session store must not change")
	}
}

func TestRegisterWithConfirmationSuccess(t *testing.T) {
	h := newHarness(t)

	if err := h.client.RegisterWithConfirmation(context.Background(), "A@B.com", "pw", "pw"); err != nil {
		t.Fatalf("RegisterWithConfirmation: %v", err)
	}
	if n := h.api.Calls("POST /api/auth/register"); n != 1 {
		t.Errorf("register calls = %d", n)
	}
}
