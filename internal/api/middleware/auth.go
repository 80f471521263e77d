package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

// BotFrameworkIssuer is the issuer of tokens the channel service sends us.
const BotFrameworkIssuer = "https://api.botframework.com"

const (
	contextServiceURL  = "botServiceURL"
	metadataRetryEvery = 30 * time.Second
)

var ErrSigningKeysUnavailable = errors.New("signing keys unavailable")

// ============================================
// Signing keys
// ============================================

// KeyProvider hands jwt a key lookup bound to the request context.
// keyfunc.Keyfunc satisfies it.
type KeyProvider interface {
	KeyfuncCtx(ctx context.Context) jwt.Keyfunc
}

// OpenIDKeys reads the OpenID metadata document once to find its jwks_uri and
// hands the key set to keyfunc. The set is refreshed hourly, and an unknown
// kid triggers at most one extra fetch per UnknownKIDEvery.
type OpenIDKeys struct {
	MetadataURL     string
	HTTPClient      *http.Client
	UnknownKIDEvery time.Duration

	ctx      context.Context
	kf       atomic.Value // keyfunc.Keyfunc
	mu       sync.Mutex
	failedAt time.Time
}

// NewOpenIDKeys returns a lazy key provider. ctx ends the background refresh.
func NewOpenIDKeys(ctx context.Context, metadataURL string) *OpenIDKeys {
	return &OpenIDKeys{
		MetadataURL:     metadataURL,
		HTTPClient:      &http.Client{Timeout: 10 * time.Second},
		UnknownKIDEvery: 5 * time.Minute,
		ctx:             ctx,
	}
}

func (k *OpenIDKeys) KeyfuncCtx(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		kf, err := k.resolve(ctx)
		if err != nil {
			return nil, err
		}
		return kf.KeyfuncCtx(ctx)(token)
	}
}

func (k *OpenIDKeys) resolve(ctx context.Context) (keyfunc.Keyfunc, error) {
	if kf, ok := k.kf.Load().(keyfunc.Keyfunc); ok {
		return kf, nil
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if kf, ok := k.kf.Load().(keyfunc.Keyfunc); ok {
		return kf, nil
	}
	if !k.failedAt.IsZero() && time.Since(k.failedAt) < metadataRetryEvery {
		return nil, ErrSigningKeysUnavailable
	}

	jwksURI, err := k.fetchJWKSURI(ctx)
	if err != nil {
		k.failedAt = time.Now()
		return nil, fmt.Errorf("%w: %v", ErrSigningKeysUnavailable, err)
	}

	kf, err := keyfunc.NewDefaultOverrideCtx(k.ctx, []string{jwksURI}, keyfunc.Override{
		Client:            k.HTTPClient,
		RateLimitWaitMax:  time.Second,
		RefreshInterval:   time.Hour,
		RefreshUnknownKID: rate.NewLimiter(rate.Every(k.UnknownKIDEvery), 1),
		RefreshErrorHandlerFunc: func(u string) func(context.Context, error) {
			return func(_ context.Context, err error) {
				log.Printf("[BotAuth] ⚠️ Key refresh from %s failed: %v", u, err)
			}
		},
	})
	if err != nil {
		k.failedAt = time.Now()
		return nil, fmt.Errorf("%w: %v", ErrSigningKeysUnavailable, err)
	}

	k.kf.Store(kf)
	log.Printf("[BotAuth] Signing keys served from %s", jwksURI)
	return kf, nil
}

func (k *OpenIDKeys) fetchJWKSURI(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.MetadataURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := k.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch openid metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch openid metadata: status %d", resp.StatusCode)
	}

	var meta struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return "", fmt.Errorf("decode openid metadata: %w", err)
	}
	if meta.JWKSURI == "" {
		return "", errors.New("openid metadata has no jwks_uri")
	}
	return meta.JWKSURI, nil
}

// ============================================
// Bot Framework auth
// ============================================

type BotAuthConfig struct {
	AppID    string
	Disabled bool
	Keys     KeyProvider
}

// BotAuth validates the bearer token the channel service attaches to every
// webhook call and stores its serviceurl claim for the handler.
func BotAuth(cfg BotAuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Disabled {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			log.Printf("❌ [BotAuth] Missing or malformed Authorization header - Path: %s", c.Request.URL.Path)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		claims, err := ValidateBotToken(c.Request.Context(), parts[1], cfg.AppID, cfg.Keys)
		if err != nil {
			log.Printf("❌ [BotAuth] Invalid token - Path: %s, Error: %v", c.Request.URL.Path, err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		if serviceURL, ok := claims["serviceurl"].(string); ok {
			c.Set(contextServiceURL, serviceURL)
		}
		c.Next()
	}
}

// ValidateBotToken checks signature, issuer, audience and expiry.
func ValidateBotToken(ctx context.Context, tokenString, appID string, keys KeyProvider) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	lookup := keys.KeyfuncCtx(ctx)
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if kid, _ := token.Header["kid"].(string); kid == "" {
			return nil, errors.New("token has no kid")
		}
		return lookup(token)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(BotFrameworkIssuer),
		jwt.WithAudience(appID),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5*time.Minute),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// TrustedServiceURL returns the serviceurl claim of the validated token, or
// "" when auth is disabled or the token carried none.
func TrustedServiceURL(c *gin.Context) string {
	v, ok := c.Get(contextServiceURL)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// SameServiceURL compares service URLs ignoring case and a trailing slash.
func SameServiceURL(a, b string) bool {
	return strings.EqualFold(strings.TrimRight(a, "/"), strings.TrimRight(b, "/"))
}

// ============================================
// Admin key
// ============================================

// VerifyAdminKey reports whether key matches the bcrypt hash. An empty hash
// disables the admin surface.
func VerifyAdminKey(hash, key string) bool {
	if hash == "" || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

// AdminKey guards the admin API with the X-Admin-Key header.
func AdminKey(hash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hash == "" {
			log.Printf("❌ [Admin] Admin API disabled - Path: %s", c.Request.URL.Path)
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin API is disabled"})
			c.Abort()
			return
		}
		if !VerifyAdminKey(hash, c.GetHeader("X-Admin-Key")) {
			log.Printf("❌ [Admin] Invalid admin key - Path: %s", c.Request.URL.Path)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid admin key"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// ============================================
// Logging
// ============================================

// RequestLogger logs all incoming requests with details
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		statusEmoji := "✅"
		if status >= 400 && status < 500 {
			statusEmoji = "⚠️"
		} else if status >= 500 {
			statusEmoji = "❌"
		}

		log.Printf("%s [%s] %s %d - %v", statusEmoji, method, path, status, duration)

		for _, e := range c.Errors {
			log.Printf("❌ [Error] %v", e.Err)
		}
	}
}
