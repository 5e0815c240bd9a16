package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/tourkit/go-auth/middleware/jwtware"
)

const (
	// TemplateUserKey is the locals key where the route middleware
	// stores the loaded *User so templates can render account state.
	TemplateUserKey = "current_user"

	// SentinelLoggedOut is the cookie value written on logout. The JWT
	// middleware treats it the same as a missing token, so a client that
	// keeps replaying the old cookie stays anonymous.
	SentinelLoggedOut = "loggedout"

	// logoutCookieTTL keeps the sentinel cookie around just long enough
	// to overwrite the real one in every client.
	logoutCookieTTL = 10 * time.Second
)

// Middleware builds route guards around the JWT middleware.
type Middleware interface {
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
	OptionalRoute(cfg Config) router.MiddlewareFunc
}

var _ HTTPAuthenticator = (*RouteAuthenticator)(nil)

type RouteAuthenticator struct {
	auth                   Authenticator
	cfg                    Config
	cookieDuration         time.Duration
	extendedCookieDuration time.Duration
	Logger                 Logger
	AuthErrorHandler       func(c router.Context, err error) error
	ErrorHandler           func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	extendedCookieDuration := cookieDuration
	if cfg.GetExtendedTokenDuration() > 0 {
		extendedCookieDuration = time.Duration(cfg.GetExtendedTokenDuration()) * time.Hour
	}

	a := &RouteAuthenticator{
		cfg:                    cfg,
		auth:                   auther,
		Logger:                 defLogger{},
		cookieDuration:         cookieDuration,
		extendedCookieDuration: extendedCookieDuration,
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

func (a RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

func (a RouteAuthenticator) GetExtendedCookieDuration() time.Duration {
	return a.extendedCookieDuration
}

// ProtectedRoute rejects anonymous requests. After the token checks out
// we load the backing user and verify the password was not rotated after
// the token was issued, so revoked sessions die even before expiry.
func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return jwtware.New(a.jwtConfig(cfg, errorHandler))(hf)
	}
}

// OptionalRoute never rejects: it attaches the current user when a valid
// token rides along and lets the request through anonymously otherwise.
// Page templates use it to decide between login and account menus.
func (a *RouteAuthenticator) OptionalRoute(cfg Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return jwtware.New(a.jwtConfig(cfg, a.MakeClientRouteAuthErrorHandler(true)))(hf)
	}
}

func (a *RouteAuthenticator) jwtConfig(cfg Config, errorHandler func(router.Context, error) error) jwtware.Config {
	return jwtware.Config{
		ErrorHandler: errorHandler,
		SigningKey: jwtware.SigningKey{
			Key:    []byte(cfg.GetSigningKey()),
			JWTAlg: cfg.GetSigningMethod(),
		},
		AuthScheme:     cfg.GetAuthScheme(),
		ContextKey:     cfg.GetContextKey(),
		TokenLookup:    cfg.GetTokenLookup(),
		LogoutSentinel: SentinelLoggedOut,
		ContextEnricher: func(c context.Context, claims jwtware.AuthClaims) context.Context {
			return WithClaimsContext(c, claims)
		},
		ValidationListeners: []jwtware.ValidationListener{
			a.attachCurrentUser,
		},
	}
}

// attachCurrentUser resolves the token subject against the user store
// and fails the request if the account is gone or the password changed
// after the token was minted.
func (a *RouteAuthenticator) attachCurrentUser(ctx router.Context, claims jwtware.AuthClaims) error {
	user, err := a.auth.CurrentUser(ctx.Context(), claims)
	if err != nil {
		return err
	}

	ctx.Locals(TemplateUserKey, user)
	ctx.SetContext(WithContext(ctx.Context(), user))

	return nil
}

func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) error {
	token, err := a.auth.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return err
	}

	duration := a.cookieDuration
	if payload.GetExtendedSession() {
		duration = a.extendedCookieDuration
	}

	a.setCookieToken(ctx, token, duration)
	return nil
}

// IssueSession writes an already minted token as the session cookie.
// Flows that generate their own token after a credential change (reset
// redemption, password update) use it for the auto-login step.
func (a *RouteAuthenticator) IssueSession(ctx router.Context, token string, extended ...bool) {
	duration := a.cookieDuration
	if len(extended) > 0 && extended[0] {
		duration = a.extendedCookieDuration
	}
	a.setCookieToken(ctx, token, duration)
}

// Logout overwrites the session cookie with the logged-out sentinel
// rather than deleting it, which survives clients that ignore deletions.
func (a *RouteAuthenticator) Logout(ctx router.Context) {
	ctx.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    SentinelLoggedOut,
		Expires:  time.Now().Add(logoutCookieTTL),
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

// MakeClientRouteAuthErrorHandler normalizes middleware failures into
// rich errors. With optional set, any failure downgrades the request to
// anonymous instead of rejecting it.
func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsAuthRequiredError(err) {
			richErr = ErrAuthRequired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else if !errors.As(err, &richErr) {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Debug("Optional auth failed, proceeding: %s", richErr.Message)
			return ctx.Next()
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) GetRedirect(ctx router.Context, def ...string) string {
	rejectedRoute := a.cfg.GetRejectedRouteKey()
	r := ctx.Cookies(rejectedRoute)
	if r == "" {
		if len(def) > 0 {
			return def[0]
		}
		return a.cfg.GetRejectedRouteDefault()
	}
	a.cookieDel(ctx, rejectedRoute)
	return r
}

func (a *RouteAuthenticator) GetRedirectOrDefault(ctx router.Context) string {
	rejectedRoute := a.cfg.GetRejectedRouteKey()
	refererHeader := string(ctx.Referer())

	r := ctx.Cookies(rejectedRoute, refererHeader)
	if r == "" {
		r = a.cfg.GetRejectedRouteDefault()
	}
	a.cookieDel(ctx, rejectedRoute)
	return r
}

func (a *RouteAuthenticator) SetRedirect(ctx router.Context) {
	rejectedRoute := a.cfg.GetRejectedRouteKey()

	a.Logger.Info("Setting redirect cookie", "key", rejectedRoute, "path", ctx.OriginalURL())

	ctx.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   a.cfg.GetEnvironment() == EnvProduction,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	a.Logger.Info(
		"Authentication error, redirecting to login",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	a.SetRedirect(c)

	statusCode := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return c.Redirect("/login", statusCode)
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return a.AuthErrorHandler(c, richErr)
	default:
		return c.Status(richErr.Code).Render("errors/500", router.ViewContext{
			"error": richErr,
		})
	}
}
