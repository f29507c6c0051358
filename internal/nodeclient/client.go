// Package nodeclient is the HTTP boundary to the compute nodes. Every
// call is a single synchronous request with a bounded timeout and no
// automatic retry; a failed call surfaces immediately as ErrUnreachable
// so the caller decides what to do with it.
package nodeclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUnreachable wraps any transport failure or non-success status from a
// compute node.
var ErrUnreachable = errors.New("cannot communicate with compute node")

// AliveStatus is the node's answer to the liveness probe.
type AliveStatus struct {
	Running bool   `json:"isDockerServerRunning"`
	Detail  string `json:"errorMessage"`
}

// ContainerInfo describes a freshly created container as reported by the
// node that hosts it.
type ContainerInfo struct {
	TargetIPAddress string `json:"targetIpAddress"`
	TargetPort      string `json:"targetPort"`
	ContainerID     string `json:"containerId"`
	RegionLocation  string `json:"regionLocation"`
	Detail          string `json:"errorMessage"`
}

// RestartError carries the node's own failure message for a restart,
// forwarded verbatim. The node protocol signals restart failure with a
// non-empty plain-text body; modelling that as an error type keeps the
// "empty string means success" convention out of the callers.
type RestartError struct{ Detail string }

func (e *RestartError) Error() string { return e.Detail }

type Client struct {
	http *http.Client
}

// New builds a client whose calls are bounded by the given timeout.
func New(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// CheckAlive probes GET /api/alive on the node.
func (c *Client) CheckAlive(ctx context.Context, ip, port string) (AliveStatus, error) {
	var status AliveStatus
	if err := c.getJSON(ctx, nodeURL(ip, port, "/api/alive"), &status); err != nil {
		return AliveStatus{}, err
	}
	return status, nil
}

// CreateContainer asks the node to spin up a fresh container via
// POST /api/node/image.
func (c *Client) CreateContainer(ctx context.Context, ip, port string) (ContainerInfo, error) {
	url := nodeURL(ip, port, "/api/node/image")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return ContainerInfo{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return ContainerInfo{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return ContainerInfo{}, fmt.Errorf("%w: http %d from %s", ErrUnreachable, resp.StatusCode, url)
	}
	var info ContainerInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return ContainerInfo{}, fmt.Errorf("%w: decode response: %v", ErrUnreachable, err)
	}
	return info, nil
}

// RestartContainer restarts the identified container via
// POST /api/node/restart. A nil return means the node confirmed the
// restart; a *RestartError carries the node's failure message verbatim.
func (c *Client) RestartContainer(ctx context.Context, ip, port, containerID string) error {
	body, err := json.Marshal(map[string]string{"containerId": containerID})
	if err != nil {
		return err
	}
	url := nodeURL(ip, port, "/api/node/restart")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: http %d from %s", ErrUnreachable, resp.StatusCode, url)
	}
	detail, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnreachable, err)
	}
	if msg := strings.TrimSpace(string(detail)); msg != "" {
		return &RestartError{Detail: msg}
	}
	return nil
}

// ReportLoad fetches the node's plain-text load figure from
// GET /api/node/load.
func (c *Client) ReportLoad(ctx context.Context, ip, port string) (string, error) {
	url := nodeURL(ip, port, "/api/node/load")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: http %d from %s", ErrUnreachable, resp.StatusCode, url)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrUnreachable, err)
	}
	return strings.TrimSpace(string(body)), nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: http %d from %s", ErrUnreachable, resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnreachable, err)
	}
	return nil
}

func nodeURL(ip, port, path string) string {
	return fmt.Sprintf("http://%s:%s%s", ip, port, path)
}
