package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "github.com/SproutLearn/sprout-core/pkg/errors"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// authTestGenerateRSAKey generates a 2048-bit RSA key pair for testing.
func authTestGenerateRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "failed to generate RSA key pair")
	return key
}

// authTestJWKSDocument builds a JWKS JSON document publishing the given
// RSA public keys by kid.
func authTestJWKSDocument(t *testing.T, keys map[string]*rsa.PublicKey) []byte {
	t.Helper()

	type jwkEntry struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		Alg string `json:"alg"`
		Use string `json:"use"`
		N   string `json:"n"`
		E   string `json:"e"`
	}

	var entries []jwkEntry
	for kid, pub := range keys {
		entries = append(entries, jwkEntry{
			Kty: "RSA",
			Kid: kid,
			Alg: "RS256",
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}

	doc, err := json.Marshal(map[string]any{"keys": entries})
	require.NoError(t, err, "failed to marshal JWKS")
	return doc
}

// authTestServeJWKS starts an httptest.Server serving the given keys and
// counting fetches.
func authTestServeJWKS(t *testing.T, keys map[string]*rsa.PublicKey, fetches *atomic.Int64) *httptest.Server {
	t.Helper()
	doc := authTestJWKSDocument(t, keys)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fetches != nil {
			fetches.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// ---------------------------------------------------------------------------
// KeySetCache tests
// ---------------------------------------------------------------------------

func TestKeySetCache_Key_SurvivesConcurrentClear(t *testing.T) {
	t.Parallel()

	key := authTestGenerateRSAKey(t)
	srv := authTestServeJWKS(t, map[string]*rsa.PublicKey{"kid-1": &key.PublicKey}, nil)

	// Every Key call refreshes (1ns TTL) while Clear spins; the lookup must
	// always run against the snapshot its own refresh produced.
	cache := NewKeySetCache(srv.URL, nil, time.Nanosecond)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				cache.Clear()
			}
		}
	}()

	for i := 0; i < 200; i++ {
		pub, err := cache.Key(ctx, "kid-1")
		require.NoError(t, err)
		require.NotNil(t, pub)
	}
	close(done)
}

func TestKeySetCache_Key_FetchesOnceWithinTTL(t *testing.T) {
	t.Parallel()

	key := authTestGenerateRSAKey(t)
	var fetches atomic.Int64
	srv := authTestServeJWKS(t, map[string]*rsa.PublicKey{"kid-1": &key.PublicKey}, &fetches)

	cache := NewKeySetCache(srv.URL, nil, time.Hour)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		pub, err := cache.Key(ctx, "kid-1")
		require.NoError(t, err)
		assert.Equal(t, 0, pub.N.Cmp(key.PublicKey.N))
	}

	assert.Equal(t, int64(1), fetches.Load(),
		"repeated lookups within the TTL must reuse the cached snapshot")
}

func TestKeySetCache_Key_RefetchesAfterClear(t *testing.T) {
	t.Parallel()

	key := authTestGenerateRSAKey(t)
	var fetches atomic.Int64
	srv := authTestServeJWKS(t, map[string]*rsa.PublicKey{"kid-1": &key.PublicKey}, &fetches)

	cache := NewKeySetCache(srv.URL, nil, time.Hour)
	ctx := context.Background()

	_, err := cache.Key(ctx, "kid-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), fetches.Load())

	cache.Clear()

	_, err = cache.Key(ctx, "kid-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), fetches.Load(),
		"a cleared cache must fetch again on the next lookup")
}

func TestKeySetCache_Key_RefetchesAfterTTLExpiry(t *testing.T) {
	t.Parallel()

	key := authTestGenerateRSAKey(t)
	var fetches atomic.Int64
	srv := authTestServeJWKS(t, map[string]*rsa.PublicKey{"kid-1": &key.PublicKey}, &fetches)

	cache := NewKeySetCache(srv.URL, nil, time.Nanosecond)
	ctx := context.Background()

	_, err := cache.Key(ctx, "kid-1")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = cache.Key(ctx, "kid-1")
	require.NoError(t, err)

	assert.Equal(t, int64(2), fetches.Load(),
		"a stale snapshot must be refetched")
}

func TestKeySetCache_Key_UnknownKidOnFreshSnapshot(t *testing.T) {
	t.Parallel()

	key := authTestGenerateRSAKey(t)
	var fetches atomic.Int64
	srv := authTestServeJWKS(t, map[string]*rsa.PublicKey{"kid-1": &key.PublicKey}, &fetches)

	cache := NewKeySetCache(srv.URL, nil, time.Hour)
	ctx := context.Background()

	_, err := cache.Key(ctx, "kid-unknown")
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeUnknownKey))
	assert.Equal(t, int64(1), fetches.Load(),
		"a kid missing from a fresh snapshot must not trigger another fetch")
}

func TestKeySetCache_Key_EndpointDownYieldsUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	cache := NewKeySetCache(srv.URL, nil, time.Hour)

	_, err := cache.Key(context.Background(), "kid-1")
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeKeySetUnavailable))
}

func TestKeySetCache_Refresh_FailureKeepsPreviousSnapshot(t *testing.T) {
	t.Parallel()

	key := authTestGenerateRSAKey(t)
	doc := authTestJWKSDocument(t, map[string]*rsa.PublicKey{"kid-1": &key.PublicKey})

	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(doc)
	}))
	t.Cleanup(srv.Close)

	cache := NewKeySetCache(srv.URL, nil, time.Hour)
	ctx := context.Background()

	_, err := cache.Key(ctx, "kid-1")
	require.NoError(t, err)

	failing.Store(true)
	err = cache.Refresh(ctx)
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeKeySetUnavailable))

	// The earlier snapshot is still served.
	pub, err := cache.Key(ctx, "kid-1")
	require.NoError(t, err)
	assert.Equal(t, 0, pub.N.Cmp(key.PublicKey.N))
}

func TestKeySetCache_Refresh_PicksUpRotatedKeys(t *testing.T) {
	t.Parallel()

	oldKey := authTestGenerateRSAKey(t)
	newKey := authTestGenerateRSAKey(t)

	var rotated atomic.Bool
	oldDoc := authTestJWKSDocument(t, map[string]*rsa.PublicKey{"kid-old": &oldKey.PublicKey})
	newDoc := authTestJWKSDocument(t, map[string]*rsa.PublicKey{"kid-new": &newKey.PublicKey})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rotated.Load() {
			_, _ = w.Write(newDoc)
			return
		}
		_, _ = w.Write(oldDoc)
	}))
	t.Cleanup(srv.Close)

	cache := NewKeySetCache(srv.URL, nil, time.Hour)
	ctx := context.Background()

	_, err := cache.Key(ctx, "kid-old")
	require.NoError(t, err)

	rotated.Store(true)
	require.NoError(t, cache.Refresh(ctx))

	_, err = cache.Key(ctx, "kid-new")
	assert.NoError(t, err)
	_, err = cache.Key(ctx, "kid-old")
	testErrHasCode(t, err, sserr.CodeUnknownKey)
}

func TestKeySetCache_Fetch_SkipsNonRSAKeys(t *testing.T) {
	t.Parallel()

	key := authTestGenerateRSAKey(t)
	rsaEntryDoc := authTestJWKSDocument(t, map[string]*rsa.PublicKey{"kid-rsa": &key.PublicKey})

	// Splice an EC entry into the document alongside the RSA one.
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rsaEntryDoc, &doc))
	doc["keys"] = append(doc["keys"].([]any), map[string]any{
		"kty": "EC", "kid": "kid-ec", "crv": "P-256",
	})
	mixed, err := json.Marshal(doc)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(mixed)
	}))
	t.Cleanup(srv.Close)

	cache := NewKeySetCache(srv.URL, nil, time.Hour)
	ctx := context.Background()

	_, err = cache.Key(ctx, "kid-rsa")
	assert.NoError(t, err)
	_, err = cache.Key(ctx, "kid-ec")
	testErrHasCode(t, err, sserr.CodeUnknownKey)
}

// testErrHasCode asserts err carries the given code.
func testErrHasCode(t *testing.T, err error, code sserr.Code) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, code),
		"expected code %s, got %v", code, err)
}
