package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"jwt-auth-demo/internal/logging"
	"jwt-auth-demo/internal/mykafka"
	"jwt-auth-demo/internal/service"
)

type AuthHandler struct {
	Svc      *service.AuthService
	Producer *mykafka.Producer
}

func (h *AuthHandler) publish(c echo.Context, key string, event map[string]interface{}) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka_publish_failed", "error", err)
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if errs := req.validate(); len(errs) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": errs})
	}

	if err := h.Svc.Register(ctx, req.Username, req.Password, req.Email); err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Username already exists"})
		}
		l.Error("register_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	h.publish(c, req.Username, map[string]interface{}{
		"type":     "user_registered",
		"username": req.Username,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "Registered successfully"})
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid username or password"})
		}
		l.Error("login_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	c.SetCookie(CreateCookie(refreshCookieName, res.RefreshToken, "/", res.RefreshExp))

	h.publish(c, req.Username, map[string]interface{}{
		"type":     "user_logged_in",
		"username": req.Username,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"token": res.AccessToken,
		"role":  res.Role,
	})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	cookie, err := c.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid refresh token"})
	}

	accessToken, err := h.Svc.Refresh(ctx, cookie.Value)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid refresh token"})
		}
		logging.FromContext(ctx).Error("refresh_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, echo.Map{"token": accessToken})
}

// Logout always answers 200. A revoke failure is logged, not surfaced; the
// cookie is cleared either way.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	if cookie, err := c.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		if err := h.Svc.Logout(ctx, cookie.Value); err != nil {
			l.Error("logout_revoke_failed", "error", err)
		}
	}

	c.SetCookie(DeleteCookie(refreshCookieName, "/"))
	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out successfully"})
}

// CreateAdmin runs behind RequireAuth + RequireRole(SuperAdmin); by the time
// it executes the caller's role has already been checked.
func (h *AuthHandler) CreateAdmin(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_create_admin")

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if errs := req.validate(); len(errs) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": errs})
	}

	if err := h.Svc.CreateAdmin(ctx, req.Username, req.Password, req.Email); err != nil {
		var conflict *service.ConflictError
		if errors.As(err, &conflict) {
			return c.JSON(http.StatusBadRequest, echo.Map{"errors": conflict.Errors})
		}
		l.Error("create_admin_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	h.publish(c, req.Username, map[string]interface{}{
		"type":       "admin_created",
		"username":   req.Username,
		"created_by": fmt.Sprint(c.Get("username")),
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "Admin created successfully"})
}
