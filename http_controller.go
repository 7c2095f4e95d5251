package users

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Patch(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// Debug echoes request payloads and error chains to the logger
	Debug bool

	// ErrorHandler handles errors (optional); defaults to a JSON
	// error response derived from the error category.
	ErrorHandler func(ctx router.Context, err error) error
}

// HTTPController exposes the account operations as a JSON API.
type HTTPController struct {
	auther   *Auther
	repo     RepositoryManager
	register *RegisterUserHandler
	verify   *VerifyEmailHandler
	unlock   *UnlockUserHandler
	update   *UpdateProfileHandler
	assign   *AssignRoleHandler
	logger   Logger
	config   HTTPConfig
}

// NewHTTPController creates a JSON controller over the authenticator
// and repository manager. Command handlers are built with defaults;
// use the With* methods to customize them before registering routes.
func NewHTTPController(auther *Auther, repo RepositoryManager, cfg HTTPConfig) *HTTPController {
	machine := NewAccountStateMachine(repo.Users())
	return &HTTPController{
		auther:   auther,
		repo:     repo,
		register: NewRegisterUserHandler(repo),
		verify:   NewVerifyEmailHandler(repo, machine),
		unlock:   NewUnlockUserHandler(repo, machine),
		update:   NewUpdateProfileHandler(repo),
		assign:   NewAssignRoleHandler(repo),
		logger:   defLogger{},
		config:   cfg,
	}
}

func (c *HTTPController) WithLogger(l Logger) *HTTPController {
	if l != nil {
		c.logger = l
	}
	return c
}

func (c *HTTPController) WithRegisterHandler(h *RegisterUserHandler) *HTTPController {
	if h != nil {
		c.register = h
	}
	return c
}

func (c *HTTPController) WithVerifyEmailHandler(h *VerifyEmailHandler) *HTTPController {
	if h != nil {
		c.verify = h
	}
	return c
}

func (c *HTTPController) WithUnlockHandler(h *UnlockUserHandler) *HTTPController {
	if h != nil {
		c.unlock = h
	}
	return c
}

func (c *HTTPController) WithUpdateProfileHandler(h *UpdateProfileHandler) *HTTPController {
	if h != nil {
		c.update = h
	}
	return c
}

func (c *HTTPController) WithAssignRoleHandler(h *AssignRoleHandler) *HTTPController {
	if h != nil {
		c.assign = h
	}
	return c
}

// RegisterRoutes registers the account routes.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Post("/login", c.Login)
	group.Post("/register", c.Register)
	group.Post("/token/introspect", c.IntrospectToken)
	group.Post("/:id/verify-email", c.VerifyEmail)
	group.Post("/:id/unlock", c.Unlock)
	group.Post("/:id/role", c.AssignRole)
	group.Patch("/:id/profile", c.UpdateProfile)
}

// Login exchanges credentials for a signed token.
func (c *HTTPController) Login(ctx router.Context) error {
	payload := LoginRequest{}
	if err := ctx.Bind(&payload); err != nil {
		return c.handleError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid login payload").
			WithTextCode("INVALID_PAYLOAD").
			WithCode(goerrors.CodeBadRequest))
	}

	if c.config.Debug {
		c.logger.Debug("login request: %s", print.MaybePrettyJSON(map[string]string{
			"identifier": payload.Identifier,
		}))
	}

	if err := payload.Validate(); err != nil {
		return c.handleError(ctx, AsValidationError(err))
	}

	token, err := c.auther.Login(ctx.Context(), payload.Identifier, payload.Password)
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"token": token,
	})
}

// Register creates a new unverified account.
func (c *HTTPController) Register(ctx router.Context) error {
	payload := CreateUserPayload{}
	if err := ctx.Bind(&payload); err != nil {
		return c.handleError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid registration payload").
			WithTextCode("INVALID_PAYLOAD").
			WithCode(goerrors.CodeBadRequest))
	}

	var created *User
	msg := RegisterUserMessage{
		CreateUserPayload: payload,
		OnResponse: func(u *User) {
			created = u
		},
	}

	if err := c.register.Execute(ctx.Context(), msg); err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, created)
}

// IntrospectToken validates a token and returns its session claims.
func (c *HTTPController) IntrospectToken(ctx router.Context) error {
	payload := struct {
		Token string `json:"token"`
	}{}
	if err := ctx.Bind(&payload); err != nil {
		return c.handleError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid introspection payload").
			WithTextCode("INVALID_PAYLOAD").
			WithCode(goerrors.CodeBadRequest))
	}

	session, err := c.auther.SessionFromToken(payload.Token)
	if err != nil {
		return ctx.JSON(router.StatusOK, map[string]any{
			"active": false,
		})
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"active":    true,
		"sub":       session.GetUserID(),
		"role":      session.GetRole(),
		"iss":       session.GetIssuer(),
		"aud":       session.GetAudience(),
		"issued_at": session.GetIssuedAt(),
	})
}

// VerifyEmail marks the account's email address as verified.
func (c *HTTPController) VerifyEmail(ctx router.Context) error {
	userID, err := c.paramUserID(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	var updated *User
	msg := VerifyEmailMessage{
		UserID: userID,
		Actor:  c.actorFromSession(ctx),
		OnResponse: func(u *User) {
			updated = u
		},
	}

	if err := c.verify.Execute(ctx.Context(), msg); err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, updated)
}

// Unlock clears the account lock and resets the failure counter.
func (c *HTTPController) Unlock(ctx router.Context) error {
	userID, err := c.paramUserID(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	payload := struct {
		Reason string `json:"reason"`
	}{}
	// body is optional for unlock
	_ = ctx.Bind(&payload)

	var updated *User
	msg := UnlockUserMessage{
		UserID: userID,
		Actor:  c.actorFromSession(ctx),
		Reason: payload.Reason,
		OnResponse: func(u *User) {
			updated = u
		},
	}

	if err := c.unlock.Execute(ctx.Context(), msg); err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, updated)
}

// AssignRole changes the account's role.
func (c *HTTPController) AssignRole(ctx router.Context) error {
	userID, err := c.paramUserID(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	payload := struct {
		Role string `json:"role"`
	}{}
	if err := ctx.Bind(&payload); err != nil {
		return c.handleError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid role payload").
			WithTextCode("INVALID_PAYLOAD").
			WithCode(goerrors.CodeBadRequest))
	}

	var updated *User
	msg := AssignRoleMessage{
		UserID: userID,
		Role:   UserRole(payload.Role),
		Actor:  c.actorFromSession(ctx),
		OnResponse: func(u *User) {
			updated = u
		},
	}

	if err := c.assign.Execute(ctx.Context(), msg); err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, updated)
}

// UpdateProfile applies a partial profile edit.
func (c *HTTPController) UpdateProfile(ctx router.Context) error {
	userID, err := c.paramUserID(ctx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	payload := UpdateProfilePayload{}
	if err := ctx.Bind(&payload); err != nil {
		return c.handleError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid profile payload").
			WithTextCode("INVALID_PAYLOAD").
			WithCode(goerrors.CodeBadRequest))
	}

	var updated *User
	msg := UpdateProfileMessage{
		UserID:  userID,
		Payload: payload,
		OnResponse: func(u *User) {
			updated = u
		},
	}

	if err := c.update.Execute(ctx.Context(), msg); err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, updated)
}

func (c *HTTPController) paramUserID(ctx router.Context) (uuid.UUID, error) {
	raw := ctx.Param("id", "")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, goerrors.New("invalid user id", goerrors.CategoryBadInput).
			WithTextCode("INVALID_USER_ID").
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"id": raw})
	}
	return id, nil
}

func (c *HTTPController) actorFromSession(ctx router.Context) ActorRef {
	claims, ok := GetRouterClaims(ctx, c.auther.SessionKey())
	if !ok {
		return ActorRef{Type: "unknown"}
	}
	return ActorRef{
		ID:   claims.UserID(),
		Type: "user",
		Role: claims.Role(),
	}
}

func (c *HTTPController) handleError(ctx router.Context, err error) error {
	if c.config.ErrorHandler != nil {
		return c.config.ErrorHandler(ctx, err)
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if c.config.Debug {
			c.logger.Debug("request error %s: %s", richErr.TextCode, print.MaybePrettyJSON(richErr.Metadata))
		}
		status := httpStatusFor(richErr)
		return ctx.JSON(status, map[string]any{
			"error":    richErr.Message,
			"code":     richErr.TextCode,
			"metadata": richErr.Metadata,
		})
	}

	return ctx.JSON(router.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func httpStatusFor(err *goerrors.Error) int {
	switch err.Category {
	case goerrors.CategoryAuth:
		return router.StatusUnauthorized
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return router.StatusBadRequest
	case goerrors.CategoryConflict:
		return router.StatusConflict
	case goerrors.CategoryNotFound:
		return router.StatusNotFound
	default:
		return router.StatusInternalServerError
	}
}
