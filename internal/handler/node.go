package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/KangDroid/CLMasterServer/internal/service"
)

// NodeHandler serves the admin node-registration endpoint and the node
// load listing.
type NodeHandler struct {
	Orchestrator *service.Orchestrator
}

func NewNodeHandler(o *service.Orchestrator) *NodeHandler {
	return &NodeHandler{Orchestrator: o}
}

type nodeSaveReq struct {
	HostName  string `json:"hostName"`
	HostPort  string `json:"hostPort"`
	IPAddress string `json:"ipAddress"`
}
type nodeSaveResp struct {
	IPAddress  string `json:"ipAddress"`
	HostPort   string `json:"hostPort"`
	RegionName string `json:"regionName"`
}
type nodeLoadResp struct {
	RegionName         string `json:"regionName"`
	NodeLoadPercentage string `json:"nodeLoadPercentage"`
}

// RegisterNode verifies the candidate node is alive and persists it with
// a generated region label.
func (h *NodeHandler) RegisterNode(c echo.Context) error {
	var req nodeSaveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.IPAddress = strings.TrimSpace(req.IPAddress)
	req.HostPort = strings.TrimSpace(req.HostPort)
	if req.IPAddress == "" || req.HostPort == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ipAddress/hostPort required"})
	}

	// The liveness probe runs inside this budget too.
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	node, err := h.Orchestrator.RegisterNode(ctx, service.RegisterNodeRequest{
		HostName:  req.HostName,
		HostPort:  req.HostPort,
		IPAddress: req.IPAddress,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, nodeSaveResp{
		IPAddress:  node.IPAddress,
		HostPort:   node.HostPort,
		RegionName: node.RegionName,
	})
}

// NodeLoad lists every registered region with its current load figure.
// One sequential probe per node; budget accordingly.
func (h *NodeHandler) NodeLoad(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	loads, err := h.Orchestrator.ListNodeLoad(ctx)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]nodeLoadResp, 0, len(loads))
	for _, l := range loads {
		out = append(out, nodeLoadResp{RegionName: l.RegionName, NodeLoadPercentage: l.LoadPercentage})
	}
	return c.JSON(http.StatusOK, out)
}
