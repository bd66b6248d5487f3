// Package session provides session identity for chat conversations and the
// signed admin session marker.
//
// A chat session is identified by an opaque token carried in a cookie. The
// token itself has no server-side record; it only correlates requests with
// a history entry in the key-value store. Tokens are UUIDv4 (122 bits of
// randomness) minted by a single generator, so every caller shares one
// scheme.
package session

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// CookieName is the chat session correlation cookie.
	CookieName = "chat_session_id"

	// CookieMaxAge is the client-side lifetime of the session cookie.
	// The history record expires on its own server-side TTL.
	CookieMaxAge = 30 * 24 * time.Hour

	// AdminCookieName marks an authenticated admin session.
	AdminCookieName = "chatpad_admin"

	// AdminCookieMaxAge is the admin session lifetime.
	AdminCookieMaxAge = time.Hour
)

// Resolve derives the session identity from an inbound token.
// A valid-looking token is reused as-is; otherwise a fresh one is minted
// and minted=true tells the caller to set it on the response.
func Resolve(inboundToken string) (id string, minted bool) {
	if _, err := uuid.Parse(inboundToken); err == nil {
		return inboundToken, false
	}
	return uuid.NewString(), true
}

// Cookie builds the session cookie for id.
// HttpOnly and SameSite=Strict always; Secure when the request came in
// over TLS.
func Cookie(id string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(CookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   secure,
	}
}

// ExpiredCookie builds the deletion form of the session cookie
// (Max-Age=0), used by the new-conversation endpoint.
func ExpiredCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "deleted",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   secure,
	}
}

// FromRequest extracts the inbound session token, or "" when absent.
func FromRequest(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
