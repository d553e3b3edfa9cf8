package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"todohub/internal/pkg/tokenblock"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

const jwtTestSecret = "jwt-test-secret"

func signToken(t *testing.T, userID uint, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Hour)),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtTestSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newAuthProbe(t *testing.T, blocklist *tokenblock.Blocklist) (*gin.Engine, *struct {
	userID uint
	token  string
	expiry time.Time
}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	seen := &struct {
		userID uint
		token  string
		expiry time.Time
	}{}
	r := gin.New()
	r.GET("/probe", AuthMiddleware(jwtTestSecret, blocklist), func(c *gin.Context) {
		seen.userID = UserID(c)
		seen.token = Token(c)
		seen.expiry = TokenExpiry(c)
		c.Status(http.StatusNoContent)
	})
	return r, seen
}

func probe(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func newTestBlocklist(t *testing.T) (*tokenblock.Blocklist, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return tokenblock.New(rdb), mr
}

func responseMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body.Message
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	blocklist, _ := newTestBlocklist(t)
	router, seen := newAuthProbe(t, blocklist)

	token := signToken(t, 42, time.Hour)
	w := probe(router, "Bearer "+token)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected pass-through, got %d (%s)", w.Code, w.Body.String())
	}
	if seen.userID != 42 {
		t.Fatalf("expected userID 42 in context, got %d", seen.userID)
	}
	if seen.token != token {
		t.Fatalf("expected raw token in context")
	}
	if seen.expiry.IsZero() || time.Until(seen.expiry) > time.Hour {
		t.Fatalf("unexpected expiry %v", seen.expiry)
	}
}

func TestAuthMiddleware_MissingAndMalformedHeader(t *testing.T) {
	blocklist, _ := newTestBlocklist(t)
	router, _ := newAuthProbe(t, blocklist)

	if w := probe(router, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: expected 401, got %d", w.Code)
	}
	if w := probe(router, "Basic abc123"); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong scheme: expected 401, got %d", w.Code)
	}
	if w := probe(router, "BearerNoSpace"); w.Code != http.StatusUnauthorized {
		t.Fatalf("unsplittable header: expected 401, got %d", w.Code)
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	blocklist, _ := newTestBlocklist(t)
	router, _ := newAuthProbe(t, blocklist)

	w := probe(router, "Bearer "+signToken(t, 1, -time.Minute))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if msg := responseMessage(t, w); msg != "Token expired. Please log in again." {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestAuthMiddleware_WrongSignature(t *testing.T) {
	blocklist, _ := newTestBlocklist(t)
	router, _ := newAuthProbe(t, blocklist)

	claims := jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	w := probe(router, "Bearer "+forged)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthMiddleware_BlockedToken(t *testing.T) {
	blocklist, _ := newTestBlocklist(t)
	router, _ := newAuthProbe(t, blocklist)

	token := signToken(t, 7, time.Hour)
	if w := probe(router, "Bearer "+token); w.Code != http.StatusNoContent {
		t.Fatalf("token should pass before revocation, got %d", w.Code)
	}

	if err := blocklist.Block(context.Background(), token, time.Hour); err != nil {
		t.Fatalf("block: %v", err)
	}
	if w := probe(router, "Bearer "+token); w.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token should be rejected, got %d", w.Code)
	}
}

func TestAuthMiddleware_FailsOpenWhenRedisDown(t *testing.T) {
	blocklist, mr := newTestBlocklist(t)
	router, _ := newAuthProbe(t, blocklist)
	mr.Close()

	w := probe(router, "Bearer "+signToken(t, 3, time.Hour))
	if w.Code != http.StatusNoContent {
		t.Fatalf("blocklist outage must not lock users out, got %d", w.Code)
	}
}
