package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/KangDroid/CLMasterServer/internal/service"
)

// authTokenHeader carries the session token on container endpoints.
const authTokenHeader = "X-AUTH-TOKEN"

// ContainerHandler serves the client container lifecycle endpoints. The
// token rides in the X-AUTH-TOKEN header and is resolved inside the
// orchestrator, after region routing, so an unknown region reports
// NotFound without an outbound call regardless of token state.
type ContainerHandler struct {
	Orchestrator *service.Orchestrator
}

func NewContainerHandler(o *service.Orchestrator) *ContainerHandler {
	return &ContainerHandler{Orchestrator: o}
}

type containerCreateReq struct {
	ComputeRegion string `json:"computeRegion"`
}
type containerCreateResp struct {
	TargetIPAddress string `json:"targetIpAddress"`
	TargetPort      string `json:"targetPort"`
	ContainerID     string `json:"containerId"`
	RegionLocation  string `json:"regionLocation"`
}
type containerListResp struct {
	UserName      string `json:"userName"`
	ContainerID   string `json:"containerId"`
	ComputeRegion string `json:"computeRegion"`
}
type restartReq struct {
	ContainerID string `json:"containerId"`
}

// Create relays a container creation to the requested region's node and
// records the container under the caller's account.
func (h *ContainerHandler) Create(c echo.Context) error {
	var req containerCreateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	placement, err := h.Orchestrator.CreateContainer(ctx, c.Request().Header.Get(authTokenHeader), req.ComputeRegion)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, containerCreateResp{
		TargetIPAddress: placement.TargetIPAddress,
		TargetPort:      placement.TargetPort,
		ContainerID:     placement.ContainerID,
		RegionLocation:  placement.RegionName,
	})
}

// List returns the caller's containers in creation order. An account
// with no containers gets an empty array, not an error.
func (h *ContainerHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	containers, err := h.Orchestrator.ListContainers(ctx, c.Request().Header.Get(authTokenHeader))
	if err != nil {
		return writeError(c, err)
	}
	out := make([]containerListResp, 0, len(containers))
	for _, ct := range containers {
		out = append(out, containerListResp{
			UserName:      ct.UserName,
			ContainerID:   ct.ContainerID,
			ComputeRegion: ct.RegionName,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// Restart restarts one of the caller's own containers.
func (h *ContainerHandler) Restart(c echo.Context) error {
	var req restartReq
	if err := c.Bind(&req); err != nil || req.ContainerID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "containerId required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	if err := h.Orchestrator.RestartContainer(ctx, c.Request().Header.Get(authTokenHeader), req.ContainerID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusOK)
}
