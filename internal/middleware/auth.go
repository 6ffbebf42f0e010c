// Package middleware содержит HTTP middleware сервиса расчётов.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type contextKey string

const ownerIDKey contextKey = "ownerID"

const (
	authCookieName = "auth_token"
	authTokenTTL   = 30 * 24 * time.Hour
	bearerPrefix   = "Bearer "
)

// AuthMiddleware проверяет подписанный токен владельца заказов.
// Токен выпускает витрина с тем же секретом и передаёт в cookie auth_token
// или в заголовке Authorization: Bearer. Формат: <ownerID>.<expiresUnix>.<hmac>.
type AuthMiddleware struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewAuthMiddleware создаёт AuthMiddleware с указанным секретом.
// Пустой секрет заменяется случайным ключом процесса.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
		ttl:       authTokenTTL,
		now:       time.Now,
	}
}

// Middleware проверяет токен и добавляет идентификатор владельца в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := a.parseToken(tokenFromRequest(r))
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ownerIDKey, ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}
	if cookie, err := r.Cookie(authCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// Token возвращает подписанный токен владельца со сроком действия authTokenTTL.
func (a *AuthMiddleware) Token(ownerID int64) string {
	expires := a.now().Add(a.ttl).Unix()
	payload := strconv.FormatInt(ownerID, 10) + "." + strconv.FormatInt(expires, 10)
	return payload + "." + a.signature(payload)
}

func (a *AuthMiddleware) signature(payload string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *AuthMiddleware) parseToken(token string) (int64, bool) {
	i := strings.LastIndexByte(token, '.')
	if i < 0 {
		return 0, false
	}
	payload, sig := token[:i], token[i+1:]
	if !hmac.Equal([]byte(sig), []byte(a.signature(payload))) {
		return 0, false
	}

	idStr, expStr, found := strings.Cut(payload, ".")
	if !found {
		return 0, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	expires, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil || a.now().Unix() >= expires {
		return 0, false
	}

	return id, true
}

// GetOwnerIDFromContext извлекает идентификатор владельца из контекста запроса.
func GetOwnerIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ownerIDKey).(int64)
	return id, ok
}
