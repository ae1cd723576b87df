package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// testStore returns a session store backed by an in-process Valkey double.
func testStore(t *testing.T, secure bool) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewStore(client, secure), mr
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestSessionCreateAndGet(t *testing.T) {
	store, mr := testStore(t, false)
	ctx := context.Background()
	w := httptest.NewRecorder()

	data := &Data{
		OperatorID:  uuid.New(),
		Email:       "ops@session.local",
		DisplayName: "Ops",
	}

	id, err := store.Create(ctx, w, data)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(id) != 2*idLength {
		t.Errorf("session id length = %d, want %d", len(id), 2*idLength)
	}
	if !mr.Exists(Key(id)) {
		t.Errorf("expected key %s in Valkey", Key(id))
	}
	if ttl := mr.TTL(Key(id)); ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", ttl, DefaultTTL)
	}

	c := sessionCookie(t, w)
	if !c.HttpOnly {
		t.Error("expected HttpOnly cookie")
	}
	if c.Secure {
		t.Error("expected Secure=false for non-secure store")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)

	got, err := store.Get(ctx, req)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected session data, got nil")
	}
	if got.OperatorID != data.OperatorID || got.Email != data.Email {
		t.Errorf("session = %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be stamped")
	}
}

func TestSessionGetMissing(t *testing.T) {
	store, _ := testStore(t, false)
	ctx := context.Background()

	t.Run("no cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		data, err := store.Get(ctx, req)
		if err != nil || data != nil {
			t.Errorf("Get = %v, %v; want nil, nil", data, err)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: "nonexistent"})
		data, err := store.Get(ctx, req)
		if err != nil || data != nil {
			t.Errorf("Get = %v, %v; want nil, nil", data, err)
		}
	})
}

func TestSessionExpires(t *testing.T) {
	store, mr := testStore(t, false)
	ctx := context.Background()
	w := httptest.NewRecorder()

	if _, err := store.Create(ctx, w, &Data{Email: "ttl@session.local"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(sessionCookie(t, w))

	mr.FastForward(DefaultTTL + time.Second)

	data, err := store.Get(ctx, req)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if data != nil {
		t.Error("expected session to expire")
	}
}

func TestSessionUpdate(t *testing.T) {
	store, _ := testStore(t, false)
	ctx := context.Background()
	w := httptest.NewRecorder()

	data := &Data{OperatorID: uuid.New(), Email: "update@session.local"}
	if _, err := store.Create(ctx, w, data); err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(sessionCookie(t, w))

	data.TwoFADone = true
	if err := store.Update(ctx, req, data); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := store.Get(ctx, req)
	if got == nil || !got.TwoFADone {
		t.Errorf("expected TwoFADone after update, got %+v", got)
	}

	if err := store.Update(ctx, httptest.NewRequest(http.MethodGet, "/", nil), data); err == nil {
		t.Error("expected error when updating without cookie")
	}
}

func TestSessionDestroy(t *testing.T) {
	store, mr := testStore(t, false)
	ctx := context.Background()
	w := httptest.NewRecorder()

	id, err := store.Create(ctx, w, &Data{Email: "destroy@session.local"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	w2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(sessionCookie(t, w))

	if err := store.Destroy(ctx, w2, req); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if c := sessionCookie(t, w2); c.MaxAge != -1 {
		t.Errorf("MaxAge = %d, want -1", c.MaxAge)
	}
	if mr.Exists(Key(id)) {
		t.Error("expected session key to be deleted")
	}

	if err := store.Destroy(ctx, httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)); err != nil {
		t.Errorf("Destroy without cookie: %v", err)
	}
}

func TestSessionSecureCookie(t *testing.T) {
	store, _ := testStore(t, true)
	w := httptest.NewRecorder()

	if _, err := store.Create(context.Background(), w, &Data{Email: "secure@session.local"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !sessionCookie(t, w).Secure {
		t.Error("expected Secure=true for secure store")
	}
}
