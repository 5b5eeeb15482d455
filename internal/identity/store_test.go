package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/publicsuffix"
)

type failingKV struct{ *MemoryKV }

func (f *failingKV) Set(context.Context, string, string) error {
	return errors.New("disk full")
}

func newJar(t *testing.T, rawURL string) (*JarCookie, *url.URL) {
	t.Helper()
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	require.NoError(t, err)
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return NewJarCookie(jar, u), u
}

func TestStoreResolvePrecedence(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	cookies, u := newJar(t, "http://chat.example.com/")
	cookies.Jar.SetCookies(u, []*http.Cookie{{Name: SessionCookieName, Value: "from-cookie", Path: "/"}})

	s := NewStore(kv, cookies, zerolog.Nop())

	id, ok := s.Resolve(ctx)
	require.True(t, ok)
	require.Equal(t, "from-cookie", id)

	require.NoError(t, kv.Set(ctx, SessionKey, "from-kv"))
	id, _ = s.Resolve(ctx)
	require.Equal(t, "from-cookie", id, "memory wins once populated")

	fresh := NewStore(kv, cookies, zerolog.Nop())
	id, _ = fresh.Resolve(ctx)
	require.Equal(t, "from-kv", id)

	fresh.Persist(ctx, "from-memory")
	id, _ = fresh.Resolve(ctx)
	require.Equal(t, "from-memory", id)
}

func TestStoreResolveAbsent(t *testing.T) {
	s := NewStore(nil, nil, zerolog.Nop())
	_, ok := s.Resolve(context.Background())
	require.False(t, ok)
}

func TestStorePersistWriteFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	s := NewStore(&failingKV{MemoryKV: NewMemoryKV()}, nil, zerolog.Nop())

	s.Persist(ctx, "abc")
	id, ok := s.Resolve(ctx)
	require.True(t, ok)
	require.Equal(t, "abc", id)
}

func TestStoreClearRemovesEverySource(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	cookies, u := newJar(t, "http://chat.example.com/")
	cookies.Jar.SetCookies(u, []*http.Cookie{{Name: SessionCookieName, Value: "c", Path: "/"}})

	s := NewStore(kv, cookies, zerolog.Nop())
	s.Persist(ctx, "abc")
	s.Clear(ctx)

	_, ok := s.Resolve(ctx)
	require.False(t, ok)
	_, err := kv.Get(ctx, SessionKey)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStorePersonaID(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryKV(), nil, zerolog.Nop())

	_, ok := s.PersonaID(ctx)
	require.False(t, ok)

	s.SetPersonaID(ctx, "traveler")
	id, ok := s.PersonaID(ctx)
	require.True(t, ok)
	require.Equal(t, "traveler", id)

	s.Clear(ctx)
	id, _ = s.PersonaID(ctx)
	require.Equal(t, "traveler", id, "clearing the session keeps the persona choice")
}

func TestSQLiteKVSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "identity.db")

	kv, err := OpenSQLiteKV(ctx, path)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, SessionKey, "s1"))
	require.NoError(t, kv.Set(ctx, SessionKey, "s2"))
	require.NoError(t, kv.Close())

	kv, err = OpenSQLiteKV(ctx, path)
	require.NoError(t, err)
	defer kv.Close()

	v, err := kv.Get(ctx, SessionKey)
	require.NoError(t, err)
	require.Equal(t, "s2", v)

	require.NoError(t, kv.Delete(ctx, SessionKey))
	_, err = kv.Get(ctx, SessionKey)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisKV(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()

	kv, err := NewRedisKV(ctx, RedisOptions{Addr: addr, Prefix: "cardchat-test:"})
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, kv.Set(ctx, SessionKey, "r1"))
	v, err := kv.Get(ctx, SessionKey)
	require.NoError(t, err)
	require.Equal(t, "r1", v)

	require.NoError(t, kv.Delete(ctx, SessionKey))
	_, err = kv.Get(ctx, SessionKey)
	require.ErrorIs(t, err, ErrNotFound)
}
