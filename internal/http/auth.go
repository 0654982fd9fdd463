package http

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"spendbook/internal/core"
	applog "spendbook/internal/log"
	"spendbook/internal/services"
)

// SessionCookie holds the signed session token.
const SessionCookie = "session"

type userKey struct{}

// currentUser returns the authenticated account name set by requireUser.
func currentUser(ctx context.Context) string {
	name, _ := ctx.Value(userKey{}).(string)
	return name
}

// sessionClaims reads the token from the session cookie, or from a bearer
// Authorization header for API clients.
func (s *Server) sessionClaims(r *http.Request) (*services.SessionClaims, error) {
	token := ""
	if c, err := r.Cookie(SessionCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		if h := r.Header.Get("Authorization"); h != "" {
			if scheme, rest, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
				token = strings.TrimSpace(rest)
			}
		}
	}
	if token == "" {
		return nil, services.ErrInvalidToken
	}
	return s.accounts.ParseToken(token)
}

// requireUser rejects requests without a valid session: API and websocket
// calls get 401, pages are sent to the login form.
func (s *Server) requireUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.sessionClaims(r)
		if err != nil {
			if wantsJSON(r) || r.URL.Path == "/ws" {
				writeJSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			redirect(w, r, "/login")
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, claims.Name)
		ctx = applog.NewContext(ctx, applog.FromContext(ctx).With(applog.FieldUsername, claims.Name))
		next(w, r.WithContext(ctx))
	})
}

// guestOnly sends users who are already logged in to their expenses.
func (s *Server) guestOnly(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.sessionClaims(r); err == nil {
			redirect(w, r, "/expenses")
			return
		}
		next(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if _, err := s.sessionClaims(r); err == nil {
		http.Redirect(w, r, "/expenses", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "Login"}
	if name := strings.TrimSpace(r.URL.Query().Get("bye")); name != "" {
		data.Notice = name + " logged out"
	}
	if r.URL.Query().Get("registered") == "1" {
		data.Notice = "Account created, please log in."
	}
	s.render(w, r, http.StatusOK, "login.html", data)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	email := sanitizeInput(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")

	u, err := s.accounts.Login(r.Context(), email, password)
	if err != nil {
		s.authFailed(w, r, "login.html", "Login", err, pageData{Email: email})
		return
	}
	if err := s.startSession(w, r, u); err != nil {
		s.authFailed(w, r, "login.html", "Login", err, pageData{Email: email})
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "User logged in",
		applog.FieldUsername, u.Name,
		applog.FieldOperation, applog.OpLogin)
	redirect(w, r, "/expenses")
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register.html", pageData{Title: "Register"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	name := sanitizeInput(r.PostForm.Get("name"))
	email := sanitizeInput(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")

	if _, err := s.accounts.Register(r.Context(), name, email, password); err != nil {
		s.authFailed(w, r, "register.html", "Register", err, pageData{Name: name, Email: email})
		return
	}
	redirect(w, r, "/login?registered=1")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	target := "/login"
	if claims, err := s.sessionClaims(r); err == nil {
		target += "?" + url.Values{"bye": {claims.Name}}.Encode()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   isSecure(r),
	})
	redirect(w, r, target)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, u core.User) error {
	token, err := s.accounts.IssueToken(u)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.accounts.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   isSecure(r),
	})
	return nil
}

// authFailed re-renders the form with the error and the status it maps to.
func (s *Server) authFailed(w http.ResponseWriter, r *http.Request, page, title string, err error, data pageData) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Authentication failed",
			applog.FieldError, err.Error(),
			applog.FieldPath, r.URL.Path)
	}
	data.Title = title
	data.Error = userMessage(err)
	if isHTMX(r) {
		ErrorResponse(status, data.Error).Write(w)
		return
	}
	s.render(w, r, status, page, data)
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
