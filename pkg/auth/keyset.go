package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	sserr "github.com/SproutLearn/sprout-core/pkg/errors"
)

// DefaultKeySetTTL is the freshness window for a fetched key set. A cached
// set is reused only while now - fetchedAt < TTL; afterwards the next
// verification refetches.
const DefaultKeySetTTL = 10 * time.Minute

// maxJWKSResponseSize caps the JWKS response body at 1 MB.
const maxJWKSResponseSize = 1 << 20

// keySet is one immutable snapshot of the provider's verification keys.
// Snapshots are replaced wholesale; they are never mutated after creation.
type keySet struct {
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// KeySetCache holds the verification keys fetched from the identity
// provider's JWKS endpoint, with time-boxed freshness. The current snapshot
// is held behind an atomic pointer: readers load it without locking, and a
// refresh stores a complete replacement, so a concurrent refresh can never
// expose a partially updated key list.
//
// One KeySetCache instance is shared process-wide and injected into the
// [Verifier]; it is not a hidden package-level singleton, so tests can swap
// or clear it deterministically.
type KeySetCache struct {
	jwksURL string
	ttl     time.Duration
	client  HTTPClient
	current atomic.Pointer[keySet]
}

// NewKeySetCache creates a KeySetCache for the given JWKS URL. If client is
// nil a default [http.Client] with a 10-second timeout is used; if ttl is
// zero, [DefaultKeySetTTL] applies.
func NewKeySetCache(jwksURL string, client HTTPClient, ttl time.Duration) *KeySetCache {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if ttl <= 0 {
		ttl = DefaultKeySetTTL
	}
	return &KeySetCache{
		jwksURL: jwksURL,
		ttl:     ttl,
		client:  client,
	}
}

// Key returns the RSA public key for the given key id. A fresh cached
// snapshot is used when available; otherwise the key set is fetched from
// the JWKS endpoint first. A kid missing from a fresh snapshot yields
// CodeUnknownKey without refetching: explicit key rotation is handled by
// [KeySetCache.Refresh] or [KeySetCache.Clear], not by per-request retries.
func (c *KeySetCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	set := c.current.Load()
	if set == nil || time.Since(set.fetchedAt) >= c.ttl {
		// Use the snapshot the refresh produced rather than re-loading,
		// so a concurrent Clear cannot leave set nil here.
		fresh, err := c.refresh(ctx)
		if err != nil {
			return nil, err
		}
		set = fresh
	}

	key, ok := set.keys[kid]
	if !ok {
		return nil, sserr.Newf(sserr.CodeUnknownKey,
			"auth: verification key %q not found in key set", kid)
	}
	return key, nil
}

// Refresh fetches the key set from the JWKS endpoint and replaces the
// cached snapshot wholesale. It is the forced-refresh entry point used by
// tests and by explicit key-rotation handling. The fetch is a single
// best-effort call with no internal retry; a failure surfaces as
// CodeKeySetUnavailable and leaves the previous snapshot in place.
func (c *KeySetCache) Refresh(ctx context.Context) error {
	_, err := c.refresh(ctx)
	return err
}

// refresh fetches, stores, and returns the new snapshot.
func (c *KeySetCache) refresh(ctx context.Context) (*keySet, error) {
	keys, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	set := &keySet{
		keys:      keys,
		fetchedAt: time.Now(),
	}
	c.current.Store(set)
	return set, nil
}

// Clear discards the cached snapshot so that the next verification fetches
// a new key set. Used by tests and forced-rotation handling.
func (c *KeySetCache) Clear() {
	c.current.Store(nil)
}

// jwksDocument is the JSON structure served by the JWKS endpoint.
type jwksDocument struct {
	Keys []jwksKey `json:"keys"`
}

// jwksKey is a single published key. Only the RSA fields are used; the
// identity provider signs platform tokens with RS256.
type jwksKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// fetch performs the JWKS GET and parses the response into a kid-indexed
// key map. Non-2xx responses and transport errors both map to
// CodeKeySetUnavailable so that callers fail closed uniformly.
func (c *KeySetCache) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeKeySetUnavailable,
			"auth: failed to build JWKS request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeKeySetUnavailable,
			"auth: JWKS request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, sserr.Newf(sserr.CodeKeySetUnavailable,
			"auth: JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSResponseSize))
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeKeySetUnavailable,
			"auth: failed to read JWKS response")
	}

	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeKeySetUnavailable,
			"auth: failed to parse JWKS JSON")
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kid == "" || k.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAPublicKey(k.N, k.E)
		if err != nil {
			continue // Skip malformed keys.
		}
		keys[k.Kid] = pub
	}
	return keys, nil
}

// parseRSAPublicKey constructs an *rsa.PublicKey from base64url-encoded
// modulus and exponent values.
func parseRSAPublicKey(nBase64, eBase64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode RSA modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode RSA exponent: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
