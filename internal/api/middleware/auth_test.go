package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testAppID = "app-123"

func jwks(keys map[string]*rsa.PublicKey) []byte {
	set := make([]map[string]string, 0, len(keys))
	for kid, key := range keys {
		set = append(set, map[string]string{
			"kty": "RSA",
			"kid": kid,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		})
	}
	raw, _ := json.Marshal(map[string]interface{}{"keys": set})
	return raw
}

func staticKeys(t *testing.T, keys map[string]*rsa.PublicKey) keyfunc.Keyfunc {
	t.Helper()
	kf, err := keyfunc.NewJWKSetJSON(jwks(keys))
	require.NoError(t, err)
	return kf
}

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":        BotFrameworkIssuer,
		"aud":        testAppID,
		"exp":        time.Now().Add(time.Hour).Unix(),
		"nbf":        time.Now().Add(-time.Minute).Unix(),
		"serviceurl": "https://smba.example/",
	}
}

func botRouter(cfg BotAuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/messages", BotAuth(cfg), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"serviceUrl": TrustedServiceURL(c)})
	})
	return r
}

func post(r http.Handler, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/messages", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBotAuth(t *testing.T) {
	key := newKey(t)
	other := newKey(t)
	keys := staticKeys(t, map[string]*rsa.PublicKey{"k1": &key.PublicKey})

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()
	wrongAud := validClaims()
	wrongAud["aud"] = "someone-else"
	wrongIss := validClaims()
	wrongIss["iss"] = "https://evil.example"

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + signToken(t, key, "k1", validClaims()), http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, key, "k1", expired), http.StatusUnauthorized},
		{"wrong audience", "Bearer " + signToken(t, key, "k1", wrongAud), http.StatusUnauthorized},
		{"wrong issuer", "Bearer " + signToken(t, key, "k1", wrongIss), http.StatusUnauthorized},
		{"unknown kid", "Bearer " + signToken(t, key, "k2", validClaims()), http.StatusUnauthorized},
		{"wrong signer", "Bearer " + signToken(t, other, "k1", validClaims()), http.StatusUnauthorized},
	}

	r := botRouter(BotAuthConfig{AppID: testAppID, Keys: keys})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(r, "Authorization", tt.header)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestBotAuthExposesServiceURL(t *testing.T) {
	key := newKey(t)
	r := botRouter(BotAuthConfig{AppID: testAppID, Keys: staticKeys(t, map[string]*rsa.PublicKey{"k1": &key.PublicKey})})

	w := post(r, "Authorization", "Bearer "+signToken(t, key, "k1", validClaims()))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "https://smba.example/", body["serviceUrl"])
}

func TestBotAuthDisabled(t *testing.T) {
	r := botRouter(BotAuthConfig{Disabled: true})
	assert.Equal(t, http.StatusOK, post(r, "", "").Code)
}

func TestRejectsHMACTokens(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	token.Header["kid"] = "k1"
	s, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ValidateBotToken(context.Background(), s, testAppID, staticKeys(t, map[string]*rsa.PublicKey{}))
	assert.Error(t, err)
}

func TestSameServiceURL(t *testing.T) {
	assert.True(t, SameServiceURL("https://smba.example/", "https://SMBA.example"))
	assert.False(t, SameServiceURL("https://smba.example", "https://evil.example"))
}

type keyServer struct {
	*httptest.Server
	metadataHits atomic.Int32
	keyHits      atomic.Int32
}

func newKeyServer(t *testing.T, keys map[string]*rsa.PublicKey) *keyServer {
	t.Helper()
	ks := &keyServer{}
	ks.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/metadata":
			ks.metadataHits.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]string{"jwks_uri": ks.URL + "/keys"})
		case "/keys":
			ks.keyHits.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(jwks(keys))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ks.Close)
	return ks
}

func TestOpenIDKeysFetchesJWKS(t *testing.T) {
	key := newKey(t)
	ks := newKeyServer(t, map[string]*rsa.PublicKey{"k1": &key.PublicKey})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	keys := NewOpenIDKeys(ctx, ks.URL+"/metadata")

	claims, err := ValidateBotToken(ctx, signToken(t, key, "k1", validClaims()), testAppID, keys)
	require.NoError(t, err)
	assert.Equal(t, "https://smba.example/", claims["serviceurl"])

	_, err = ValidateBotToken(ctx, signToken(t, key, "missing", validClaims()), testAppID, keys)
	assert.Error(t, err)
}

func TestOpenIDKeysBoundsUnknownKidRefreshes(t *testing.T) {
	key := newKey(t)
	ks := newKeyServer(t, map[string]*rsa.PublicKey{"k1": &key.PublicKey})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	keys := NewOpenIDKeys(ctx, ks.URL+"/metadata")

	stale := signToken(t, key, "rotated-away", validClaims())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ValidateBotToken(ctx, stale, testAppID, keys)
			assert.Error(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ks.metadataHits.Load())
	assert.LessOrEqual(t, ks.keyHits.Load(), int32(2))

	_, err := ValidateBotToken(ctx, signToken(t, key, "k1", validClaims()), testAppID, keys)
	assert.NoError(t, err)
}

func TestOpenIDKeysBacksOffAfterMetadataFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	token := signToken(t, newKey(t), "k1", validClaims())
	keys := NewOpenIDKeys(context.Background(), srv.URL)
	for i := 0; i < 5; i++ {
		_, err := ValidateBotToken(context.Background(), token, testAppID, keys)
		assert.ErrorIs(t, err, ErrSigningKeysUnavailable)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestAdminKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", AdminKey(string(hash)), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	get := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if key != "" {
			req.Header.Set("X-Admin-Key", key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, get("s3cret"))
	assert.Equal(t, http.StatusUnauthorized, get("wrong"))
	assert.Equal(t, http.StatusUnauthorized, get(""))

	assert.True(t, VerifyAdminKey(string(hash), "s3cret"))
	assert.False(t, VerifyAdminKey("", "s3cret"))
}

func TestAdminKeyDisabledWithoutHash(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", AdminKey(""), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-Admin-Key", "anything")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
