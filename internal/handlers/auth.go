package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-hq/apiserver/internal/apperr"
	"github.com/gatehouse-hq/apiserver/internal/services"
	"github.com/gatehouse-hq/apiserver/types"
)

const (
	accessCookieName  = "SESSION_ACCESS_TOKEN"
	refreshCookieName = "SESSION_REFRESH_TOKEN"
)

// cookieWriter emits and clears the auth cookie pair. The pair always
// moves together; clearing uses the same attributes with MaxAge<0 so
// browsers actually drop both.
type cookieWriter struct {
	secure     bool
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func (c cookieWriter) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c cookieWriter) set(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, c.cookie(accessCookieName, access, int(c.accessTTL.Seconds())))
	http.SetCookie(w, c.cookie(refreshCookieName, refresh, int(c.refreshTTL.Seconds())))
}

func (c cookieWriter) clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(accessCookieName, "", -1))
	http.SetCookie(w, c.cookie(refreshCookieName, "", -1))
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// AuthHandler serves registration, sign-in and session endpoints.
type AuthHandler struct {
	accounts *services.AccountService
	sessions *services.SessionService
	auth     *services.AuthService
	cookies  cookieWriter
}

// NewAuthHandler constructs an AuthHandler. secureCookies should be true
// in production so the pair is https-only.
func NewAuthHandler(
	accounts *services.AccountService,
	sessions *services.SessionService,
	auth *services.AuthService,
	secureCookies bool,
	accessTTL, refreshTTL time.Duration,
) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		sessions: sessions,
		auth:     auth,
		cookies: cookieWriter{
			secure:     secureCookies,
			accessTTL:  accessTTL,
			refreshTTL: refreshTTL,
		},
	}
}

// RegisterRouter mounts the per-role register and sign routes on a role
// subtree such as /admins.
func RegisterRouter(r chi.Router, handler *AuthHandler, role types.Role) {
	r.Post("/register", handler.register(role))
	r.Post("/sign", handler.sign(role))
}

// AuthRouter mounts the session endpoints under /auth.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Get("/status/{role}", handler.Status)
	r.With(handler.RequireAny).Get("/sessions", handler.Sessions)
	r.Get("/logout", handler.Logout)
}

// RequireRole resolves the cookie pair, enforces the role and injects the
// principal into the request context. A rotated pair is emitted before the
// wrapped handler runs.
func (h *AuthHandler) RequireRole(role types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := h.auth.Authorize(
				r.Context(),
				cookieValue(r, accessCookieName),
				cookieValue(r, refreshCookieName),
				clientIP(r),
				r.UserAgent(),
				role,
			)
			if err != nil {
				h.reject(w, err)
				return
			}
			h.admit(w, r, next, principal)
		})
	}
}

// RequireAny resolves the cookie pair without a role check.
func (h *AuthHandler) RequireAny(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := h.auth.Resolve(
			r.Context(),
			cookieValue(r, accessCookieName),
			cookieValue(r, refreshCookieName),
			clientIP(r),
			r.UserAgent(),
		)
		if err != nil {
			h.reject(w, err)
			return
		}
		h.admit(w, r, next, principal)
	})
}

// reject clears the pair on unauthorized outcomes so stale tokens never
// wedge a client. Forbidden keeps the cookies: the identity is valid, the
// role is not.
func (h *AuthHandler) reject(w http.ResponseWriter, err error) {
	if appErr, ok := apperr.As(err); ok && appErr.Kind == apperr.KindUnauthorized {
		h.cookies.clear(w)
	}
	writeAppError(w, err)
}

func (h *AuthHandler) admit(w http.ResponseWriter, r *http.Request, next http.Handler, principal services.Principal) {
	if principal.RotatedAccess != "" {
		h.cookies.set(w, principal.RotatedAccess, principal.RotatedRefresh)
	}
	ctx := context.WithValue(r.Context(), contextPrincipalKey, principal)
	next.ServeHTTP(w, r.WithContext(ctx))
}

type registerRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"fullName"`
	EmployeeID string `json:"employeeId"`
	Department string `json:"department"`
	Title      string `json:"title"`
	Phone      string `json:"phone"`
}

func (h *AuthHandler) register(role types.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request")
			return
		}

		req.Email = strings.TrimSpace(req.Email)
		req.FullName = strings.TrimSpace(req.FullName)
		if req.Email == "" || req.Password == "" || req.FullName == "" {
			writeError(w, http.StatusBadRequest, "email, password and fullName are required")
			return
		}

		var profile any
		var err error
		switch role {
		case types.RoleAdmin:
			profile, err = h.accounts.RegisterAdmin(r.Context(), req.Email, req.Password, req.FullName)
		case types.RoleEmployee:
			profile, err = h.accounts.RegisterEmployee(r.Context(), req.Email, req.Password, req.FullName, req.EmployeeID, req.Department, req.Title)
		case types.RoleVisitor:
			profile, err = h.accounts.RegisterVisitor(r.Context(), req.Email, req.Password, req.FullName, req.Phone)
		default:
			writeError(w, http.StatusBadRequest, "unknown role")
			return
		}
		if err != nil {
			writeAppError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{string(role): profile})
	}
}

type signRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) sign(role types.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request")
			return
		}
		if strings.TrimSpace(req.Email) == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		account, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password, role)
		if err != nil {
			writeAppError(w, err)
			return
		}

		profile, err := h.accounts.Profile(r.Context(), account.ID, role)
		if err != nil {
			writeAppError(w, err)
			return
		}

		access, refresh, err := h.sessions.Issue(r.Context(), account, clientIP(r), r.UserAgent())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to create session")
			return
		}

		h.cookies.set(w, access, refresh)
		writeJSON(w, http.StatusOK, map[string]any{
			"isAuthenticated": true,
			"session":         account,
			string(role):      profile,
		})
	}
}

// Status reports the authenticated state for the role named in the path.
// Resolution may rotate the cookie pair; failures clear it.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	role, err := types.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown role")
		return
	}

	principal, err := h.auth.Authorize(
		r.Context(),
		cookieValue(r, accessCookieName),
		cookieValue(r, refreshCookieName),
		clientIP(r),
		r.UserAgent(),
		role,
	)
	if err != nil {
		h.reject(w, err)
		return
	}
	if principal.RotatedAccess != "" {
		h.cookies.set(w, principal.RotatedAccess, principal.RotatedRefresh)
	}

	response := map[string]any{
		"isAuthenticated": true,
		"session":         principal.Account,
	}
	switch role {
	case types.RoleAdmin:
		response[string(role)] = principal.Admin
	case types.RoleEmployee:
		response[string(role)] = principal.Employee
	case types.RoleVisitor:
		response[string(role)] = principal.Visitor
	}
	writeJSON(w, http.StatusOK, response)
}

// Sessions lists the account's active sessions across devices.
func (h *AuthHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessions, err := h.sessions.ListByAccount(r.Context(), principal.Account.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// Logout clears the cookie pair and revokes the session row for this
// user agent. It succeeds even without a resolvable session so a stuck
// client can always reset.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	principal, err := h.auth.Resolve(
		r.Context(),
		cookieValue(r, accessCookieName),
		cookieValue(r, refreshCookieName),
		clientIP(r),
		r.UserAgent(),
	)
	if err == nil {
		_ = h.sessions.Revoke(r.Context(), principal.Account.ID, r.UserAgent())
	}

	h.cookies.clear(w)
	writeJSON(w, http.StatusOK, map[string]any{"isAuthenticated": false})
}
