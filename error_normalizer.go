package auth

import (
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// StatusClass labels a response the way API clients expect: client
// faults report "fail", server faults report "error".
func StatusClass(httpCode int) string {
	if httpCode >= 400 && httpCode < 500 {
		return "fail"
	}
	return "error"
}

// IsOperational reports whether an error is a known, user-facing
// condition whose message is safe to surface verbatim.
func IsOperational(err *goerrors.Error) bool {
	return err.Category != goerrors.CategoryInternal
}

// ErrorNormalizer is the terminal error stage. Every failure that
// escapes a handler lands here and gets translated into a uniform
// client payload. What the client sees depends on the environment:
// development leaks everything, production only operational messages.
type ErrorNormalizer struct {
	env       Environment
	logger    Logger
	apiPrefix string
}

type NormalizerOption func(*ErrorNormalizer)

func WithNormalizerLogger(logger Logger) NormalizerOption {
	return func(n *ErrorNormalizer) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithAPIPrefix overrides the path prefix that marks a request as a
// JSON API call rather than a rendered page.
func WithAPIPrefix(prefix string) NormalizerOption {
	return func(n *ErrorNormalizer) {
		if prefix != "" {
			n.apiPrefix = prefix
		}
	}
}

func NewErrorNormalizer(env Environment, opts ...NormalizerOption) *ErrorNormalizer {
	n := &ErrorNormalizer{
		env:       env,
		logger:    defLogger{},
		apiPrefix: "/api",
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Handler adapts the normalizer to the router's error handler slot.
func (n *ErrorNormalizer) Handler() router.ErrorHandler {
	return n.Handle
}

func (n *ErrorNormalizer) Handle(c router.Context, err error) error {
	richErr := n.Normalize(err)

	if n.env == EnvDevelopment {
		return n.sendDevelopment(c, richErr)
	}
	return n.sendProduction(c, richErr)
}

// Normalize classifies a raw failure into an operational error. Known
// store and token failures get rewritten into 4xx conditions with safe
// messages; anything unrecognized becomes an internal error.
func (n *ErrorNormalizer) Normalize(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var verrs validation.Errors
	if goerrors.As(err, &verrs) {
		return normalizeValidationErrors(verrs)
	}

	if IsTokenExpiredError(err) {
		return ErrTokenExpired
	}

	if IsAuthRequiredError(err) {
		return ErrAuthRequired
	}

	if IsMalformedError(err) {
		return ErrTokenMalformed
	}

	if IsDuplicateValueError(err) {
		return normalizeDuplicateValue(err)
	}

	if IsInvalidIdentifierError(err) {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "Invalid value supplied for lookup").
			WithCode(goerrors.CodeBadRequest).
			WithTextCode(TextCodeInvalidFieldValue)
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.Code == 0 {
			richErr = richErr.Clone().WithCode(goerrors.CodeInternal)
		}
		return richErr
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, "Something went very wrong!").
		WithCode(goerrors.CodeInternal)
}

// NotFoundHandler is the catch-all route for paths nothing matched.
func (n *ErrorNormalizer) NotFoundHandler() router.HandlerFunc {
	return func(c router.Context) error {
		err := goerrors.New("Can't find "+c.OriginalURL()+" on this server!", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound).
			WithTextCode(TextCodeRouteNotFound)
		return n.Handle(c, err)
	}
}

func (n *ErrorNormalizer) isAPIRequest(c router.Context) bool {
	return strings.HasPrefix(c.OriginalURL(), n.apiPrefix)
}

func (n *ErrorNormalizer) sendDevelopment(c router.Context, err *goerrors.Error) error {
	n.logger.Error("Request failed: %s", print.MaybePrettyJSON(err))

	if n.isAPIRequest(c) {
		return c.JSON(err.Code, map[string]any{
			"status":    StatusClass(err.Code),
			"message":   err.Message,
			"category":  err.Category,
			"text_code": err.TextCode,
			"error":     err.Error(),
			"metadata":  err.Metadata,
		})
	}

	return c.Status(err.Code).Render("errors/error", router.ViewContext{
		"title":   "Something went wrong!",
		"message": err.Message,
	})
}

func (n *ErrorNormalizer) sendProduction(c router.Context, err *goerrors.Error) error {
	if !IsOperational(err) {
		// programming or unknown failure: full detail stays server-side
		n.logger.Error("Unexpected error: %s", print.MaybePrettyJSON(err))

		if n.isAPIRequest(c) {
			return c.JSON(err.Code, map[string]any{
				"status":  StatusClass(err.Code),
				"message": "Something went very wrong!",
			})
		}

		return c.Status(err.Code).Render("errors/error", router.ViewContext{
			"title":   "Something went wrong!",
			"message": "Please try again later!",
		})
	}

	if n.isAPIRequest(c) {
		return c.JSON(err.Code, map[string]any{
			"status":  StatusClass(err.Code),
			"message": err.Message,
		})
	}

	return c.Status(err.Code).Render("errors/error", router.ViewContext{
		"title":   "Something went wrong!",
		"message": err.Message,
	})
}

func normalizeValidationErrors(verrs validation.Errors) *goerrors.Error {
	fields := make([]string, 0, len(verrs))
	for field := range verrs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	metadata := make(map[string]any, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+verrs[field].Error())
		metadata[field] = verrs[field].Error()
	}

	return goerrors.New("Invalid input data. "+strings.Join(parts, ". "), goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeValidationFailed).
		WithMetadata(metadata)
}

// normalizeDuplicateValue rewrites a unique constraint violation into a
// 400 client error naming the offending column, without echoing driver
// internals back to the caller.
func normalizeDuplicateValue(err error) *goerrors.Error {
	value := duplicateValueFrom(err)
	msg := "Duplicate field value"
	if value != "" {
		msg = "Duplicate field value: " + value + ". Please use another value"
	}

	return goerrors.New(msg, goerrors.CategoryConflict).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeDuplicateValue)
}

// duplicateValueFrom digs the offending field out of a driver message.
// sqlite reports "UNIQUE constraint failed: users.email", postgres
// reports the constraint name instead.
func duplicateValueFrom(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if v, ok := richErr.Metadata["value"].(string); ok && v != "" {
			return v
		}
	}

	msg := err.Error()
	if idx := strings.Index(msg, "UNIQUE constraint failed:"); idx >= 0 {
		field := strings.TrimSpace(msg[idx+len("UNIQUE constraint failed:"):])
		if dot := strings.LastIndex(field, "."); dot >= 0 {
			field = field[dot+1:]
		}
		if end := strings.IndexAny(field, " ,;"); end >= 0 {
			field = field[:end]
		}
		return field
	}

	if idx := strings.Index(msg, `unique constraint "`); idx >= 0 {
		rest := msg[idx+len(`unique constraint "`):]
		if end := strings.Index(rest, `"`); end >= 0 {
			return rest[:end]
		}
	}

	return ""
}
