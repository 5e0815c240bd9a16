package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type InitializePasswordResetMessage struct {
	Email string `json:"email"`
	// ResetURLBase is the absolute URL prefix the plaintext token gets
	// appended to, e.g. "https://example.com/reset-password/".
	ResetURLBase string `json:"reset_url_base"`
	OnResponse   func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

type InitializePasswordResetResponse struct {
	User    *User
	Success bool
}

// InitializePasswordResetHandler starts the reset flow: it stores the
// hash of a fresh one-time token on the account and mails the plaintext
// to the address on file. Only the hash ever touches the database.
type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	mailer   Mailer
	activity ActivitySink
	logger   Logger
}

func NewInitializePasswordResetHandler(repo RepositoryManager) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		mailer:   normalizeMailer(nil, nil),
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithMailer sets the transport used to deliver the reset link.
func (h *InitializePasswordResetHandler) WithMailer(mailer Mailer) *InitializePasswordResetHandler {
	h.mailer = normalizeMailer(mailer, h.logger)
	return h
}

// WithActivitySink sets the sink used to emit reset-requested events.
func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	user := &User{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var err error
	var plaintext string

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err = h.repo.Users().GetByIdentifierTx(ctx, tx, strings.TrimSpace(event.Email))
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return goerrors.New("There is no user with that email address", goerrors.CategoryNotFound).
					WithCode(goerrors.CodeNotFound)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
		}

		var hash string
		plaintext, hash, err = GenerateResetToken()
		if err != nil {
			return err
		}

		expires := time.Now().Add(ResetTokenTTL)
		user.PasswordResetToken = hash
		user.PasswordResetExpires = &expires

		if err := h.repo.Users().SaveResetFieldsTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store password reset token")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	if err := h.deliverResetLink(ctx, user, event.ResetURLBase+plaintext); err != nil {
		return err
	}

	h.recordActivity(ctx, user)

	if event.OnResponse != nil {
		event.OnResponse(&InitializePasswordResetResponse{
			User:    user,
			Success: true,
		})
	}

	return nil
}

// deliverResetLink mails the plaintext token. If delivery fails the
// stored reset state is cleared before the error surfaces: a token the
// user never received must not stay redeemable.
func (h *InitializePasswordResetHandler) deliverResetLink(ctx context.Context, user *User, resetURL string) error {
	body := "Forgot your password? Submit a new password using: " + resetURL +
		"\nIf you didn't forget your password, please ignore this email. The link is valid for 10 minutes."

	if err := h.mailer.Send(ctx, user.Email, "Your password reset token", body); err != nil {
		h.logger.Error("reset email delivery failed: %v", err)

		user.ClearResetToken()
		if clearErr := h.repo.Users().SaveResetFields(ctx, user); clearErr != nil {
			h.logger.Error("failed to clear undelivered reset token: %v", clearErr)
		}

		return ErrResetDeliveryFailed.Clone().
			WithMetadata(map[string]any{"user_id": user.ID.String()})
	}

	return nil
}

func (h *InitializePasswordResetHandler) recordActivity(ctx context.Context, user *User) {
	event := ActivityEvent{
		EventType:  ActivityEventPasswordResetRequested,
		Actor:      ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:     user.ID.String(),
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password reset request: %v", err)
	}
}
