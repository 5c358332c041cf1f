// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

// # HTTP Delivery
//
// The handler is a thin mediation layer between the web and [Service]:
//   - Protocol: JSON bodies in, respond envelopes out.
//   - Security: refresh tokens travel only in an HttpOnly cookie scoped to the auth path.
//   - Verification: input is validated before it reaches the service.

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/keygate/internal/platform/constants"
	"github.com/taibuivan/keygate/internal/platform/middleware"
	requestutil "github.com/taibuivan/keygate/internal/platform/request"
	"github.com/taibuivan/keygate/internal/platform/respond"
	"github.com/taibuivan/keygate/internal/platform/sec"
	"github.com/taibuivan/keygate/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements authentication-related HTTP endpoints.
type Handler struct {
	authService   *Service
	secureCookies bool
}

// NewHandler constructs a new [Handler]. secureCookies sets the Secure flag on
// the refresh cookie and should only be false for plain-HTTP local runs.
func NewHandler(service *Service, secureCookies bool) *Handler {
	return &Handler{authService: service, secureCookies: secureCookies}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /register    : Creates an unactivated account.
//   - POST /activate    : Confirms an account with its code.
//   - POST /resend-code : Issues a replacement activation code.
//   - POST /login       : Authenticates and sets the refresh cookie.
//   - POST /refresh     : Rotates the refresh cookie.
//   - POST /logout      : Revokes the refresh cookie.
//   - POST /logout-all  : Revokes every session of the caller (bearer).
//   - GET  /me          : Returns the caller's account (bearer).
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/register", handler.register)
	router.Post("/activate", handler.activate)
	router.Post("/resend-code", handler.resendCode)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Post("/logout", handler.logout)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/logout-all", handler.logoutAll)
		r.Get("/me", handler.me)
	})

	return router
}

// # Request Payloads

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type activateRequest struct {
	UserID string `json:"user_id"`
	Code   string `json:"code"`
}

type resendCodeRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

/*
Register handles the creation of a new user account.

POST /api/v1/auth/register

Request:
  - Body: registerRequest (Email, Password, Name)

Response:
  - 201: User: Created account, status unactivated
  - 400: Validation failure
  - 409: DUPLICATE_EMAIL
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, MinPasswordLength).
		MaxBytes(FieldPassword, input.Password, sec.MaxPasswordBytes).
		MaxLen(FieldName, input.Name, 100)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.Register(request.Context(), RegisterInput{
		Email:    input.Email,
		Password: input.Password,
		Name:     input.Name,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, user)
}

/*
Activate confirms an account.

POST /api/v1/auth/activate

Response:
  - 200: Account active
  - 400: CODE_MISMATCH, CODE_EXPIRED or validation failure
  - 404: USER_NOT_FOUND
*/
func (handler *Handler) activate(writer http.ResponseWriter, request *http.Request) {
	var input activateRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldUserID, input.UserID).
		UUID(FieldUserID, input.UserID).
		Required(FieldCode, input.Code)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.Activate(request.Context(), input.UserID, input.Code); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		constants.FieldMessage: "Account activated",
		constants.FieldStatus:  string(StatusActive),
	})
}

/*
ResendCode issues a replacement activation code and mails it.

POST /api/v1/auth/resend-code

Description: The code itself is never returned; only its expiry.

Response:
  - 200: Code sent
  - 404: USER_NOT_FOUND
  - 409: ALREADY_ACTIVATED
  - 429: RATE_LIMITED
*/
func (handler *Handler) resendCode(writer http.ResponseWriter, request *http.Request) {
	var input resendCodeRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldUserID, input.UserID).
		UUID(FieldUserID, input.UserID).
		Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	code, err := handler.authService.ResendVerificationCode(request.Context(), input.UserID, input.Email)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		constants.FieldMessage: "A new activation code has been sent",
		"expires_at":           code.ExpiresAt,
	})
}

/*
Login authenticates a user and establishes a session.

POST /api/v1/auth/login

Response:
  - 200: Access token and user; refresh token in the cookie
  - 401: INVALID_CREDENTIALS
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Login(request.Context(), LoginInput{
		Email:    input.Email,
		Password: input.Password,
		Meta:     clientMeta(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.writeSession(writer, session)
}

/*
Refresh rotates the refresh cookie into a new session.

POST /api/v1/auth/refresh

Response:
  - 200: New access token; rotated refresh cookie
  - 401: INVALID_REFRESH_TOKEN
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	cookie, err := request.Cookie(constants.RefreshTokenCookieName)
	if err != nil || cookie.Value == "" {
		respond.Error(writer, request, ErrInvalidRefreshToken)
		return
	}

	session, err := handler.authService.Refresh(request.Context(), cookie.Value, clientMeta(request))
	if err != nil {
		handler.clearCookie(writer)
		respond.Error(writer, request, err)
		return
	}

	handler.writeSession(writer, session)
}

/*
Logout terminates the current session.

POST /api/v1/auth/logout

Response:
  - 204: Session terminated (also when there was none)
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil && cookie.Value != "" {
		if err := handler.authService.Logout(request.Context(), cookie.Value); err != nil {
			respond.Error(writer, request, err)
			return
		}
	}

	handler.clearCookie(writer)
	respond.NoContent(writer)
}

/*
LogoutAll revokes every session of the authenticated user.

POST /api/v1/auth/logout-all

Response:
  - 204: All sessions revoked
  - 401: Authentication required
*/
func (handler *Handler) logoutAll(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.LogoutAll(request.Context(), userID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.clearCookie(writer)
	respond.NoContent(writer)
}

/*
Me returns the account behind the bearer token.

GET /api/v1/auth/me

Response:
  - 200: User
  - 401: Authentication required
  - 404: USER_NOT_FOUND
*/
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.CurrentUser(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// # Helpers

func (handler *Handler) writeSession(writer http.ResponseWriter, session *Session) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    session.RefreshToken,
		Path:     constants.RefreshTokenCookiePath,
		Expires:  session.RefreshExpiresAt,
		Secure:   handler.secureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	respond.OK(writer, map[string]any{
		FieldAccessToken: session.AccessToken,
		FieldTokenType:   "Bearer",
		FieldExpiresIn:   int64(handler.authService.AccessTTL() / time.Second),
		FieldUser:        session.User,
	})
}

func (handler *Handler) clearCookie(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    "",
		Path:     constants.RefreshTokenCookiePath,
		MaxAge:   -1,
		Secure:   handler.secureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clientMeta(request *http.Request) ClientMeta {
	return ClientMeta{
		IPAddress: middleware.RealIP(request),
		UserAgent: request.UserAgent(),
	}
}
