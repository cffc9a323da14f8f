package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/accounts/internal/core/domain"
	"github.com/99minutos/accounts/internal/core/ports"
	"github.com/99minutos/accounts/internal/metrics"
)

// AccountHandler exposes registration and credential checks over HTTP.
type AccountHandler struct {
	accounts ports.AccountService
}

func NewAccountHandler(accounts ports.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// --- Request / Response types ---

type createUserRequest struct {
	Name                 string `json:"name"                  validate:"max=100"`
	Email                string `json:"email"                 validate:"max=254"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	User *domain.User `json:"user"`
}

type violationResponse struct {
	Field   domain.Field         `json:"field"`
	Kind    domain.ViolationKind `json:"kind"`
	Message string               `json:"message"`
}

type validationErrorResponse struct {
	Error      string              `json:"error"`
	Violations []violationResponse `json:"violations"`
}

type authenticationResponse struct {
	Authenticated bool `json:"authenticated"`
}

// CreateUser handles POST /users.
//
// @Summary      Register a new user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      createUserRequest  true  "Registration details"
// @Success      201   {object}  userResponse
// @Failure      400   {object}  map[string]string
// @Failure      422   {object}  validationErrorResponse
// @Failure      500   {object}  map[string]string
// @Router       /users [post]
func (h *AccountHandler) CreateUser(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	user, err := h.accounts.CreateUser(c.Request().Context(), domain.NewUserInput{
		Name:                 req.Name,
		Email:                req.Email,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		var verrs *domain.ValidationErrors
		if errors.As(err, &verrs) {
			metrics.UsersCreatedTotal.WithLabelValues("invalid").Inc()
			return c.JSON(http.StatusUnprocessableEntity, toValidationResponse(verrs))
		}
		metrics.UsersCreatedTotal.WithLabelValues("error").Inc()
		return err
	}

	metrics.UsersCreatedTotal.WithLabelValues("created").Inc()
	return c.JSON(http.StatusCreated, userResponse{User: user})
}

// Authenticate handles POST /auth/credentials.
//
// @Summary      Check a user's credentials
// @Description  Unknown emails and wrong passwords are indistinguishable: both return 401.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      credentialsRequest  true  "Email and password"
// @Success      200   {object}  authenticationResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  authenticationResponse
// @Failure      500   {object}  map[string]string
// @Router       /auth/credentials [post]
func (h *AccountHandler) Authenticate(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	ok, err := h.accounts.AuthenticateWithCredentials(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		metrics.AuthenticationsTotal.WithLabelValues("error").Inc()
		return err
	}
	if !ok {
		metrics.AuthenticationsTotal.WithLabelValues("failure").Inc()
		return c.JSON(http.StatusUnauthorized, authenticationResponse{Authenticated: false})
	}

	metrics.AuthenticationsTotal.WithLabelValues("success").Inc()
	return c.JSON(http.StatusOK, authenticationResponse{Authenticated: true})
}

func toValidationResponse(verrs *domain.ValidationErrors) validationErrorResponse {
	resp := validationErrorResponse{
		Error:      "validation failed",
		Violations: make([]violationResponse, 0, len(verrs.Violations)),
	}
	for _, v := range verrs.Violations {
		metrics.ValidationFailuresTotal.WithLabelValues(string(v.Field), string(v.Kind)).Inc()
		resp.Violations = append(resp.Violations, violationResponse{
			Field:   v.Field,
			Kind:    v.Kind,
			Message: v.Message(),
		})
	}
	return resp
}
