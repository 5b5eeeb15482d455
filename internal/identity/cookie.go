package identity

import (
	"net/http"
	"net/url"
)

// SessionCookieName is the cookie a backend may use to carry the session.
const SessionCookieName = "session_id"

// JarCookie reads the session cookie from a jar shared with the REST client.
type JarCookie struct {
	Jar  http.CookieJar
	URL  *url.URL
	Name string
}

// NewJarCookie watches the default session cookie for u.
func NewJarCookie(jar http.CookieJar, u *url.URL) *JarCookie {
	return &JarCookie{Jar: jar, URL: u, Name: SessionCookieName}
}

func (c *JarCookie) SessionCookie() (string, bool) {
	if c == nil || c.Jar == nil || c.URL == nil {
		return "", false
	}
	for _, ck := range c.Jar.Cookies(c.URL) {
		if ck.Name == c.name() && ck.Value != "" {
			return ck.Value, true
		}
	}
	return "", false
}

func (c *JarCookie) ClearSessionCookie() {
	if c == nil || c.Jar == nil || c.URL == nil {
		return
	}
	c.Jar.SetCookies(c.URL, []*http.Cookie{{Name: c.name(), Value: "", Path: "/", MaxAge: -1}})
}

func (c *JarCookie) name() string {
	if c.Name == "" {
		return SessionCookieName
	}
	return c.Name
}
