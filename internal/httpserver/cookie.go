package httpserver

import (
	"net/http"
	"time"
)

// CookieSettings describes the refresh cookie. The cookie is always
// HttpOnly, scoped to "/", and SameSite=Lax.
type CookieSettings struct {
	Name   string
	Secure bool
}

func (s CookieSettings) Create(value string, exp time.Time, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     s.Name,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Delete renders as Max-Age=0, which tells the client to drop the cookie now.
func (s CookieSettings) Delete() *http.Cookie {
	return &http.Cookie{
		Name:     s.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
