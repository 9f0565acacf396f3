package transport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/oxyledger/oxyregistry/internal/repository"
	gocache "github.com/patrickmn/go-cache"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

const (
	resolvedTTL     = 5 * time.Minute
	rejectedTTL     = 30 * time.Second
	cleanupInterval = 10 * time.Minute
)

type callerKey struct{}

// CallerResolver resolves a caller name from a bearer token.
type CallerResolver interface {
	ResolveCaller(ctx context.Context, token string) (string, error)
}

// CallerFromContext returns the authenticated caller, if present.
func CallerFromContext(ctx context.Context) (string, bool) {
	caller, ok := ctx.Value(callerKey{}).(string)
	return caller, ok
}

// WithCaller returns a context carrying caller.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// AuthMiddleware enforces bearer token authentication.
func AuthMiddleware(resolver CallerResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			caller, err := resolver.ResolveCaller(r.Context(), token)
			switch {
			case err == nil && caller != "":
			case err == nil, IsRejection(err):
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			default:
				http.Error(w, "credential store unavailable", http.StatusServiceUnavailable)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// NoAuthMiddleware injects a fixed caller when auth is disabled.
func NoAuthMiddleware(caller string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// IsRejection reports whether a resolver error means the token is not valid,
// as opposed to the resolver failing to answer.
func IsRejection(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, repository.ErrNotFound)
}

// CachedResolver memoizes a CallerResolver. Rejections are cached briefly so
// a client retrying a bad token does not hit the database on every request.
// Resolver failures are never cached.
type CachedResolver struct {
	next  CallerResolver
	cache *gocache.Cache
}

// NewCachedResolver wraps next with an in-memory cache keyed by token hash.
func NewCachedResolver(next CallerResolver) *CachedResolver {
	return &CachedResolver{
		next:  next,
		cache: gocache.New(resolvedTTL, cleanupInterval),
	}
}

// ResolveCaller implements CallerResolver.
func (c *CachedResolver) ResolveCaller(ctx context.Context, token string) (string, error) {
	key := cacheKey(token)
	if v, found := c.cache.Get(key); found {
		if caller, ok := v.(string); ok && caller != "" {
			return caller, nil
		}
		return "", ErrUnauthorized
	}

	caller, err := c.next.ResolveCaller(ctx, token)
	if err != nil && !IsRejection(err) {
		return "", fmt.Errorf("resolving caller: %w", err)
	}
	if err != nil || caller == "" {
		c.cache.Set(key, "", rejectedTTL)
		return "", ErrUnauthorized
	}
	c.cache.Set(key, caller, gocache.DefaultExpiration)
	return caller, nil
}

// Forget drops a cached token, e.g. after revocation.
func (c *CachedResolver) Forget(token string) {
	c.cache.Delete(cacheKey(token))
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
