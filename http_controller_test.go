package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tourkit/go-auth"
	"github.com/uptrace/bun"
)

// fakeHTTPAuth records the session cookie calls the controller makes.
type fakeHTTPAuth struct {
	issuedToken    string
	issuedExtended bool
	loggedOut      bool
}

func (f *fakeHTTPAuth) ProtectedRoute(cfg auth.Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc { return hf }
}

func (f *fakeHTTPAuth) OptionalRoute(cfg auth.Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc { return hf }
}

func (f *fakeHTTPAuth) Login(c router.Context, payload auth.LoginPayload) error { return nil }

func (f *fakeHTTPAuth) Logout(c router.Context) { f.loggedOut = true }

func (f *fakeHTTPAuth) IssueSession(c router.Context, token string, extended ...bool) {
	f.issuedToken = token
	f.issuedExtended = len(extended) > 0 && extended[0]
}

// tokenServiceStub mints a fixed token for sendToken paths.
type tokenServiceStub struct {
	token string
	err   error
}

func (s tokenServiceStub) Generate(identity auth.Identity) (string, error) {
	return s.token, s.err
}

func (s tokenServiceStub) SignClaims(claims *auth.JWTClaims) (string, error) {
	return s.token, s.err
}

func (s tokenServiceStub) Validate(tokenString string) (auth.AuthClaims, error) {
	return nil, s.err
}

type controllerDeps struct {
	users    *fakeUsers
	auth     *MockAuthenticator
	httpAuth *fakeHTTPAuth
	tokens   tokenServiceStub
	mails    []string
	bodies   []string
}

func newTestController(t *testing.T, deps *controllerDeps, opts ...auth.AuthControllerOption) *auth.AuthController {
	t.Helper()

	if deps.users == nil {
		deps.users = &fakeUsers{}
	}
	if deps.auth == nil {
		deps.auth = new(MockAuthenticator)
	}
	if deps.httpAuth == nil {
		deps.httpAuth = &fakeHTTPAuth{}
	}
	if deps.tokens.token == "" {
		deps.tokens.token = "minted-token"
	}

	base := []auth.AuthControllerOption{
		auth.WithControllerRepo(&fakeRepo{users: deps.users}),
		auth.WithControllerAuthenticator(deps.auth),
		auth.WithControllerHTTPAuthenticator(deps.httpAuth),
		auth.WithControllerTokenService(deps.tokens),
		auth.WithControllerLogger(testLogger{}),
		auth.WithControllerMailer(auth.MailerFunc(func(ctx context.Context, recipient, subject, body string) error {
			deps.mails = append(deps.mails, recipient)
			deps.bodies = append(deps.bodies, body)
			return nil
		})),
	}

	return auth.NewAuthController(append(base, opts...)...)
}

func TestNewAuthController(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		ctrl := newTestController(t, &controllerDeps{})

		assert.Equal(t, "/login", ctrl.Routes.Login)
		assert.Equal(t, "/logout", ctrl.Routes.Logout)
		assert.Equal(t, "/signup", ctrl.Routes.Signup)
		assert.Equal(t, "/forgot-password", ctrl.Routes.ForgotPassword)
		assert.Equal(t, "/reset-password", ctrl.Routes.ResetPassword)
		assert.Equal(t, "/update-my-password", ctrl.Routes.UpdatePassword)
		assert.Equal(t, "login", ctrl.Views.Login)
		assert.Equal(t, "signup", ctrl.Views.Signup)
	})

	t.Run("panics without required collaborators", func(t *testing.T) {
		assert.Panics(t, func() {
			auth.NewAuthController()
		})
	})
}

func TestAuthControllerLoginPost(t *testing.T) {
	t.Run("API clients get the token back", func(t *testing.T) {
		deps := &controllerDeps{}
		ctrl := newTestController(t, deps)

		deps.auth.On("Login", mock.Anything, "ada@example.com", "secret-123").
			Return("session-token", nil)

		ctx := new(MockContext)
		ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
			payload := args.Get(0).(*auth.LoginRequest)
			payload.Identifier = "ada@example.com"
			payload.Password = "secret-123"
		}).Return(nil)
		ctx.On("Context").Return(context.Background())
		ctx.On("OriginalURL").Return("/api/auth/login")
		ctx.On("JSON", router.StatusOK, mock.MatchedBy(func(v map[string]any) bool {
			return v["status"] == "success" && v["token"] == "session-token"
		})).Return(nil)

		require.NoError(t, ctrl.LoginPost(ctx))
		assert.Equal(t, "session-token", deps.httpAuth.issuedToken)
		ctx.AssertExpectations(t)
	})

	t.Run("remember me issues an extended session", func(t *testing.T) {
		deps := &controllerDeps{}
		ctrl := newTestController(t, deps)

		deps.auth.On("Login", mock.Anything, "ada@example.com", "secret-123").
			Return("session-token", nil)

		ctx := new(MockContext)
		ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
			payload := args.Get(0).(*auth.LoginRequest)
			payload.Identifier = "ada@example.com"
			payload.Password = "secret-123"
			payload.RememberMe = true
		}).Return(nil)
		ctx.On("Context").Return(context.Background())
		ctx.On("OriginalURL").Return("/login")
		ctx.On("Redirect", "/", []int{router.StatusSeeOther}).Return(nil)

		require.NoError(t, ctrl.LoginPost(ctx))
		assert.True(t, deps.httpAuth.issuedExtended)
	})

	t.Run("invalid payload goes to the error handler", func(t *testing.T) {
		deps := &controllerDeps{}
		var handled error
		ctrl := newTestController(t, deps, auth.WithControllerErrorHandler(func(c router.Context, err error) error {
			handled = err
			return nil
		}))

		ctx := new(MockContext)
		ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
			payload := args.Get(0).(*auth.LoginRequest)
			payload.Identifier = "not-an-email"
			payload.Password = "secret-123"
		}).Return(nil)

		require.NoError(t, ctrl.LoginPost(ctx))
		require.Error(t, handled)
		assert.Contains(t, auth.FormatValidationErrorToMap(handled), "identifier")
		assert.Empty(t, deps.httpAuth.issuedToken)
	})

	t.Run("bad credentials go to the error handler", func(t *testing.T) {
		deps := &controllerDeps{}
		var handled error
		ctrl := newTestController(t, deps, auth.WithControllerErrorHandler(func(c router.Context, err error) error {
			handled = err
			return nil
		}))

		deps.auth.On("Login", mock.Anything, "ada@example.com", "wrong").
			Return("", auth.ErrInvalidCredentials)

		ctx := new(MockContext)
		ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
			payload := args.Get(0).(*auth.LoginRequest)
			payload.Identifier = "ada@example.com"
			payload.Password = "wrong"
		}).Return(nil)
		ctx.On("Context").Return(context.Background())

		require.NoError(t, ctrl.LoginPost(ctx))
		assert.ErrorIs(t, handled, auth.ErrInvalidCredentials)
	})
}

func TestAuthControllerLogOut(t *testing.T) {
	t.Run("API clients get a JSON body", func(t *testing.T) {
		deps := &controllerDeps{}
		ctrl := newTestController(t, deps)

		ctx := new(MockContext)
		ctx.On("OriginalURL").Return("/api/auth/logout")
		ctx.On("JSON", router.StatusOK, mock.Anything).Return(nil)

		require.NoError(t, ctrl.LogOut(ctx))
		assert.True(t, deps.httpAuth.loggedOut)
		ctx.AssertExpectations(t)
	})

	t.Run("page clients get redirected home", func(t *testing.T) {
		deps := &controllerDeps{}
		ctrl := newTestController(t, deps)

		ctx := new(MockContext)
		ctx.On("OriginalURL").Return("/logout")
		ctx.On("Redirect", "/", []int{router.StatusTemporaryRedirect}).Return(nil)

		require.NoError(t, ctrl.LogOut(ctx))
		assert.True(t, deps.httpAuth.loggedOut)
	})
}

func TestAuthControllerSignupPost(t *testing.T) {
	t.Run("registers and logs the new account in", func(t *testing.T) {
		var created *auth.User
		users := &fakeUsers{
			registerTx: func(ctx context.Context, tx bun.IDB, user *auth.User) (*auth.User, error) {
				user.ID = uuid.New()
				created = user
				return user, nil
			},
		}
		deps := &controllerDeps{users: users, tokens: tokenServiceStub{token: "fresh-token"}}
		ctrl := newTestController(t, deps)

		ctx := new(MockContext)
		ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
			payload := args.Get(0).(*auth.SignupPayload)
			payload.FirstName = "Ada"
			payload.LastName = "Lovelace"
			payload.Email = "ada@example.com"
			payload.Password = "secret-123"
			payload.ConfirmPassword = "secret-123"
		}).Return(nil)
		ctx.On("Context").Return(context.Background())
		ctx.On("OriginalURL").Return("/api/signup")
		ctx.On("JSON", 201, mock.MatchedBy(func(v map[string]any) bool {
			return v["token"] == "fresh-token"
		})).Return(nil)

		require.NoError(t, ctrl.SignupPost(ctx))

		require.NotNil(t, created)
		assert.Equal(t, "ada@example.com", created.Email)
		assert.Equal(t, "fresh-token", deps.httpAuth.issuedToken)
		assert.Contains(t, deps.mails, "ada@example.com")
	})

	t.Run("mismatched confirmation is rejected", func(t *testing.T) {
		deps := &controllerDeps{}
		var handled error
		ctrl := newTestController(t, deps, auth.WithControllerErrorHandler(func(c router.Context, err error) error {
			handled = err
			return nil
		}))

		ctx := new(MockContext)
		ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
			payload := args.Get(0).(*auth.SignupPayload)
			payload.FirstName = "Ada"
			payload.LastName = "Lovelace"
			payload.Email = "ada@example.com"
			payload.Password = "secret-123"
			payload.ConfirmPassword = "different-123"
		}).Return(nil)
		ctx.On("OriginalURL").Return("/api/signup")

		require.NoError(t, ctrl.SignupPost(ctx))
		require.Error(t, handled)
		assert.Contains(t, auth.FormatValidationErrorToMap(handled), "confirm_password")
	})
}

func TestAuthControllerPasswordForgotPost(t *testing.T) {
	userID := uuid.New()

	t.Run("sends the reset link", func(t *testing.T) {
		var stored *auth.User
		users := &fakeUsers{
			getByIdentifierTx: func(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*auth.User, error) {
				return &auth.User{ID: userID, Email: "ada@example.com"}, nil
			},
			saveResetFieldsTx: func(ctx context.Context, tx bun.IDB, user *auth.User) error {
				stored = user
				return nil
			},
		}
		deps := &controllerDeps{users: users}
		ctrl := newTestController(t, deps)

		ctx := new(MockContext)
		ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
			payload := args.Get(0).(*auth.PasswordForgotPayload)
			payload.Email = "ada@example.com"
		}).Return(nil)
		ctx.On("Context").Return(context.Background())
		ctx.On("JSON", router.StatusOK, mock.MatchedBy(func(v map[string]any) bool {
			return v["message"] == "Token sent to email!"
		})).Return(nil)

		require.NoError(t, ctrl.PasswordForgotPost(ctx))

		require.NotNil(t, stored)
		assert.NotEmpty(t, stored.PasswordResetToken)
		require.Len(t, deps.bodies, 1)
		assert.Contains(t, deps.bodies[0], ctrl.Routes.ResetPassword+"/")
	})
}

func TestAuthControllerPasswordResetExecute(t *testing.T) {
	userID := uuid.New()
	plaintext := "2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e7f8091a"

	var rotated bool
	users := &fakeUsers{
		getByResetTokenHashTx: func(ctx context.Context, tx bun.IDB, hash string) (*auth.User, error) {
			assert.Equal(t, auth.HashResetToken(plaintext), hash)
			expires := time.Now().Add(5 * time.Minute)
			return &auth.User{
				ID:                    userID,
				Email:                 "ada@example.com",
				PasswordResetToken:   hash,
				PasswordResetExpires: &expires,
			}, nil
		},
		rotatePasswordTx: func(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string, changedAt time.Time) error {
			rotated = true
			return nil
		},
	}
	deps := &controllerDeps{users: users, tokens: tokenServiceStub{token: "fresh-token"}}
	ctrl := newTestController(t, deps)

	ctx := new(MockContext)
	ctx.On("Param", "token").Return(plaintext)
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*auth.PasswordResetPayload)
		payload.Password = "brand-new-pass"
		payload.ConfirmPassword = "brand-new-pass"
	}).Return(nil)
	ctx.On("Context").Return(context.Background())
	ctx.On("OriginalURL").Return("/api/reset-password/" + plaintext)
	ctx.On("JSON", router.StatusOK, mock.MatchedBy(func(v map[string]any) bool {
		return v["token"] == "fresh-token"
	})).Return(nil)

	require.NoError(t, ctrl.PasswordResetExecute(ctx))
	assert.True(t, rotated)
	assert.Equal(t, "fresh-token", deps.httpAuth.issuedToken)
}

func TestAuthControllerPasswordUpdateExecute(t *testing.T) {
	userID := uuid.New()
	currentHash, err := auth.HashPassword("current-secret")
	require.NoError(t, err)

	t.Run("rotates the password for the session user", func(t *testing.T) {
		var rotated bool
		users := &fakeUsers{
			getByIdentifierTx: func(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*auth.User, error) {
				assert.Equal(t, userID.String(), identifier)
				return &auth.User{ID: userID, Email: "ada@example.com", PasswordHash: currentHash}, nil
			},
			rotatePasswordTx: func(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string, changedAt time.Time) error {
				rotated = true
				return nil
			},
		}
		deps := &controllerDeps{users: users, tokens: tokenServiceStub{token: "fresh-token"}}
		ctrl := newTestController(t, deps)

		claims := &auth.JWTClaims{UID: userID.String(), UserRole: string(auth.RoleUser)}

		ctx := new(MockContext)
		ctx.On("Locals", "jwt").Return(claims)
		ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
			payload := args.Get(0).(*auth.PasswordUpdatePayload)
			payload.CurrentPassword = "current-secret"
			payload.Password = "brand-new-pass"
			payload.ConfirmPassword = "brand-new-pass"
		}).Return(nil)
		ctx.On("Context").Return(context.Background())
		ctx.On("OriginalURL").Return("/api/update-my-password")
		ctx.On("JSON", router.StatusOK, mock.Anything).Return(nil)

		require.NoError(t, ctrl.PasswordUpdateExecute(ctx))
		assert.True(t, rotated)
		assert.Equal(t, "fresh-token", deps.httpAuth.issuedToken)
	})

	t.Run("requires an authenticated session", func(t *testing.T) {
		deps := &controllerDeps{}
		var handled error
		ctrl := newTestController(t, deps, auth.WithControllerErrorHandler(func(c router.Context, err error) error {
			handled = err
			return nil
		}))

		ctx := new(MockContext)
		ctx.On("Locals", "jwt").Return(nil)

		require.NoError(t, ctrl.PasswordUpdateExecute(ctx))
		assert.ErrorIs(t, handled, auth.ErrAuthRequired)
	})
}

func TestGetRouterSession(t *testing.T) {
	t.Run("builds a session from stored claims", func(t *testing.T) {
		userID := uuid.New()
		claims := &auth.JWTClaims{UID: userID.String(), UserRole: string(auth.RoleAdmin)}

		ctx := new(MockContext)
		ctx.On("Locals", "jwt").Return(claims)

		session, err := auth.GetRouterSession(ctx, "jwt")
		require.NoError(t, err)
		assert.Equal(t, userID.String(), session.GetUserID())
	})

	t.Run("missing claims", func(t *testing.T) {
		ctx := new(MockContext)
		ctx.On("Locals", "jwt").Return(nil)

		_, err := auth.GetRouterSession(ctx, "jwt")
		assert.ErrorIs(t, err, auth.ErrUnableToFindSession)
	})

	t.Run("foreign payload under the key", func(t *testing.T) {
		ctx := new(MockContext)
		ctx.On("Locals", "jwt").Return("not-claims")

		_, err := auth.GetRouterSession(ctx, "jwt")
		assert.ErrorIs(t, err, auth.ErrUnableToDecodeSession)
	})
}

func TestValidateStringEquals(t *testing.T) {
	rule := auth.ValidateStringEquals("expected")

	assert.NoError(t, rule("expected"))
	assert.Error(t, rule("different"))
	assert.Error(t, rule(42))
}

func TestFormatValidationErrorToMap(t *testing.T) {
	t.Run("flattens field errors", func(t *testing.T) {
		payload := auth.LoginRequest{Identifier: "nope", Password: ""}
		err := payload.Validate()
		require.Error(t, err)

		out := auth.FormatValidationErrorToMap(err)
		assert.Contains(t, out, "identifier")
		assert.Contains(t, out, "password")
	})

	t.Run("nil error", func(t *testing.T) {
		assert.Empty(t, auth.FormatValidationErrorToMap(nil))
	})

	t.Run("plain error", func(t *testing.T) {
		out := auth.FormatValidationErrorToMap(errors.New("boom"))
		assert.Equal(t, "boom", out["error"])
	})
}
