package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/KangDroid/CLMasterServer/internal/service"
)

// AuthHandler bundles dependencies for the client auth endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(a *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: a}
}

// ----- DTOs -----

type registerReq struct {
	UserName     string `json:"userName"`
	UserPassword string `json:"userPassword"`
}
type registerResp struct {
	RegisteredID string `json:"registeredId"`
}
type loginReq struct {
	UserName     string `json:"userName"`
	UserPassword string `json:"userPassword"`
}
type loginResp struct {
	Token string `json:"token"`
}

// Register creates a user account with the default role.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.UserName = strings.TrimSpace(req.UserName)
	if req.UserName == "" || req.UserPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "userName/userPassword required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Auth.Register(ctx, req.UserName, req.UserPassword)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, registerResp{RegisteredID: id})
}

// Login verifies credentials and returns a session token bound to the
// caller's address.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.UserName) == "" || req.UserPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "userName/userPassword required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	token, err := h.Auth.Login(ctx, req.UserName, req.UserPassword, c.RealIP())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, loginResp{Token: token})
}
