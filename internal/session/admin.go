package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Admin session cookies carry "exp.sig" where exp is a unix timestamp and
// sig is hex(HMAC-SHA256(secret, exp)). The value is self-contained: no
// server-side session record exists, but without the secret the marker
// cannot be forged and an expired one fails verification on its face.

// SignAdminToken mints an admin session value expiring at now+AdminCookieMaxAge.
func SignAdminToken(secret []byte, now time.Time) string {
	exp := strconv.FormatInt(now.Add(AdminCookieMaxAge).Unix(), 10)
	return exp + "." + signExpiry(secret, exp)
}

// VerifyAdminToken reports whether value is a well-formed, unexpired,
// correctly signed admin session marker.
func VerifyAdminToken(secret []byte, value string, now time.Time) bool {
	exp, sig, ok := strings.Cut(value, ".")
	if !ok {
		return false
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return false
	}
	if now.Unix() >= expUnix {
		return false
	}
	want := signExpiry(secret, exp)
	return hmac.Equal([]byte(sig), []byte(want))
}

func signExpiry(secret []byte, exp string) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprint(mac, exp)
	return hex.EncodeToString(mac.Sum(nil))
}

// AdminCookie builds the admin session cookie carrying token.
func AdminCookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     AdminCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(AdminCookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   secure,
	}
}

// AdminFromRequest extracts the inbound admin token, or "" when absent.
func AdminFromRequest(r *http.Request) string {
	c, err := r.Cookie(AdminCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
