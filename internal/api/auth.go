package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/kalambet/sonarchat/internal/session"
)

const (
	// BrowserCookie names the storage scope; it outlives UI sessions.
	BrowserCookie = "sonarchat_browser"
	// SessionCookie names the in-memory UI session.
	SessionCookie = "sonarchat_session"

	browserCookieMaxAge = 400 * 24 * 60 * 60
)

type sessionKey struct{}

// withSession resolves the scope and session cookies, minting either when
// missing or not a UUID, and attaches the session to the request context.
func withSession(deps Deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := cookieToken(w, r, BrowserCookie, browserCookieMaxAge, deps.SecureCookies)
			sid := cookieToken(w, r, SessionCookie, 0, deps.SecureCookies)

			sess := deps.Sessions.Get(r.Context(), sid, scope)
			ctx := context.WithValue(r.Context(), sessionKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func cookieToken(w http.ResponseWriter, r *http.Request, name string, maxAge int, secure bool) string {
	if c, err := r.Cookie(name); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	token := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

func sessionFrom(r *http.Request) *session.Session {
	return r.Context().Value(sessionKey{}).(*session.Session)
}

func requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ok bool
		sessionFrom(r).Do(func(st *session.State) error {
			ok = st.Authenticated
			return nil
		})
		if !ok {
			httpError(w, http.StatusUnauthorized, "authentication_error", "not logged in")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loginRequest struct {
	Credential string `json:"credential"`
}

func handleLogin(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decodeBody(w, r, &req) {
			return
		}

		var view sessionView
		err := sessionFrom(r).Do(func(st *session.State) error {
			if err := deps.Sessions.Controller().Login(st, req.Credential); err != nil {
				return err
			}
			view = newSessionView(st)
			return nil
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleLogout(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		sess.Do(func(st *session.State) error {
			deps.Sessions.Controller().Logout(st)
			return nil
		})
		deps.Sessions.Drop(sess.ID)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
