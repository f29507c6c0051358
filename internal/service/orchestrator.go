package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/KangDroid/CLMasterServer/internal/nodeclient"
	"github.com/KangDroid/CLMasterServer/internal/queue"
	"github.com/KangDroid/CLMasterServer/internal/repository"
)

// NodeStore is the slice of the node repository the orchestrator needs.
type NodeStore interface {
	Create(ctx context.Context, n *repository.Node) error
	Count(ctx context.Context) (int64, error)
	FindByRegion(ctx context.Context, region string) (repository.Node, error)
	FindByIPAddress(ctx context.Context, ip string) (repository.Node, error)
	List(ctx context.Context, sortByContainers bool) ([]repository.Node, error)
}

// ContainerStore is the slice of the container repository the
// orchestrator needs.
type ContainerStore interface {
	Create(ctx context.Context, c *repository.Container) error
	ListByUser(ctx context.Context, userID uint64) ([]repository.Container, error)
	FindByUserAndContainerID(ctx context.Context, userID uint64, containerID string) (repository.Container, error)
}

// NodeCaller abstracts the HTTP boundary to compute nodes, implemented
// by nodeclient.Client.
type NodeCaller interface {
	CheckAlive(ctx context.Context, ip, port string) (nodeclient.AliveStatus, error)
	CreateContainer(ctx context.Context, ip, port string) (nodeclient.ContainerInfo, error)
	RestartContainer(ctx context.Context, ip, port, containerID string) error
	ReportLoad(ctx context.Context, ip, port string) (string, error)
}

// EventSink receives lifecycle events. Implementations must be
// best-effort: a broker outage never fails the request that produced the
// event.
type EventSink interface {
	NodeRegistered(ctx context.Context, ev queue.NodeRegisteredEvent)
	ContainerCreated(ctx context.Context, ev queue.ContainerCreatedEvent)
}

// RegisterNodeRequest carries a node registration from the admin API.
type RegisterNodeRequest struct {
	HostName  string
	HostPort  string
	IPAddress string
}

// Placement describes where a freshly created container ended up.
type Placement struct {
	ContainerID     string
	TargetIPAddress string
	TargetPort      string
	RegionName      string
}

// ContainerSummary is one entry of a user's container listing.
type ContainerSummary struct {
	UserName    string
	ContainerID string
	RegionName  string
}

// NodeLoad pairs a region with its current load figure.
type NodeLoad struct {
	RegionName     string
	LoadPercentage string
}

// loadUnavailable is the sentinel figure reported for a node whose load
// endpoint could not be reached.
const loadUnavailable = "Server is down"

// Orchestrator is the central service: it registers compute nodes,
// routes container operations to the node owning a region, and keeps the
// per-user container bookkeeping.
type Orchestrator struct {
	nodes      NodeStore
	containers ContainerStore
	tokens     *TokenService
	client     NodeCaller
	events     EventSink
	regionSeq  atomic.Int64
}

// NewOrchestrator wires the orchestrator and seeds the region sequence
// from the stored node count. Labels are handed out by the atomic
// counter afterwards, so concurrent registrations never mint the same
// region from a racy count() read.
func NewOrchestrator(ctx context.Context, nodes NodeStore, containers ContainerStore, tokens *TokenService, client NodeCaller, events EventSink) (*Orchestrator, error) {
	count, err := nodes.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed region sequence: %w", err)
	}
	o := &Orchestrator{
		nodes:      nodes,
		containers: containers,
		tokens:     tokens,
		client:     client,
		events:     events,
	}
	o.regionSeq.Store(count)
	return o, nil
}

// RegisterNode verifies the candidate node is alive, assigns it a region
// label and persists it. The early duplicate lookup gives a clean error
// message; the unique index on the address is what actually guards the
// race between two concurrent registrations.
func (o *Orchestrator) RegisterNode(ctx context.Context, req RegisterNodeRequest) (repository.Node, error) {
	_, err := o.nodes.FindByIPAddress(ctx, req.IPAddress)
	switch {
	case err == nil:
		return repository.Node{}, fmt.Errorf("%w: duplicated compute node is found on ip address: %s", ErrConflict, req.IPAddress)
	case !errors.Is(err, sql.ErrNoRows):
		return repository.Node{}, fmt.Errorf("%w: node lookup: %v", ErrUnknown, err)
	}

	status, err := o.client.CheckAlive(ctx, req.IPAddress, req.HostPort)
	if err != nil {
		return repository.Node{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !status.Running {
		detail := status.Detail
		if detail == "" {
			detail = "node server is not running, check ip address/server port"
		}
		return repository.Node{}, fmt.Errorf("%w: %s", ErrUnavailable, detail)
	}

	node := repository.Node{
		HostName:   req.HostName,
		IPAddress:  req.IPAddress,
		HostPort:   req.HostPort,
		RegionName: fmt.Sprintf("Region-%d", o.regionSeq.Add(1)-1),
	}
	if err := o.nodes.Create(ctx, &node); err != nil {
		if errors.Is(err, repository.ErrNodeExists) {
			return repository.Node{}, fmt.Errorf("%w: duplicated compute node is found on ip address: %s", ErrConflict, req.IPAddress)
		}
		return repository.Node{}, fmt.Errorf("%w: save node: %v", ErrUnknown, err)
	}

	if o.events != nil {
		o.events.NodeRegistered(ctx, queue.NodeRegisteredEvent{
			RegionName: node.RegionName,
			IPAddress:  node.IPAddress,
			HostPort:   node.HostPort,
			HostName:   node.HostName,
		})
	}
	return node, nil
}

// CreateContainer relays a container creation to the node owning the
// requested region and records the result under the token's user. An
// empty region asks for the most lightly loaded node instead — a
// convenience pick, not a placement guarantee.
func (o *Orchestrator) CreateContainer(ctx context.Context, token, region string) (Placement, error) {
	var node repository.Node
	if region == "" {
		candidates, err := o.nodes.List(ctx, true)
		if err != nil {
			return Placement{}, fmt.Errorf("%w: list nodes: %v", ErrUnknown, err)
		}
		if len(candidates) == 0 {
			return Placement{}, fmt.Errorf("%w: no compute region is registered", ErrNotFound)
		}
		node = candidates[0]
	} else {
		var err error
		node, err = o.nodes.FindByRegion(ctx, region)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return Placement{}, fmt.Errorf("%w: cannot find compute region: %s", ErrNotFound, region)
			}
			return Placement{}, fmt.Errorf("%w: region lookup: %v", ErrUnknown, err)
		}
	}

	info, err := o.client.CreateContainer(ctx, node.IPAddress, node.HostPort)
	if err != nil {
		return Placement{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if info.Detail != "" {
		return Placement{}, fmt.Errorf("%w: %s", ErrUnavailable, info.Detail)
	}
	// The caller must observe the region that was actually used, no
	// matter what the node reports back.
	info.RegionLocation = node.RegionName

	user, err := o.tokens.Resolve(ctx, token)
	if err != nil {
		return Placement{}, err
	}

	record := repository.Container{
		UserID:      user.ID,
		ContainerID: info.ContainerID,
		RegionName:  node.RegionName,
	}
	if err := o.containers.Create(ctx, &record); err != nil {
		return Placement{}, fmt.Errorf("%w: save container: %v", ErrUnknown, err)
	}

	if o.events != nil {
		o.events.ContainerCreated(ctx, queue.ContainerCreatedEvent{
			UserName:    user.UserName,
			ContainerID: info.ContainerID,
			RegionName:  node.RegionName,
		})
	}
	return Placement{
		ContainerID:     info.ContainerID,
		TargetIPAddress: info.TargetIPAddress,
		TargetPort:      info.TargetPort,
		RegionName:      info.RegionLocation,
	}, nil
}

// RestartContainer restarts one of the caller's own containers. The
// ownership check is mandatory: a container id that exists under another
// user is indistinguishable from one that does not exist at all.
func (o *Orchestrator) RestartContainer(ctx context.Context, token, containerID string) error {
	user, err := o.tokens.Resolve(ctx, token)
	if err != nil {
		return err
	}

	record, err := o.containers.FindByUserAndContainerID(ctx, user.ID, containerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: cannot find container id", ErrNotFound)
		}
		return fmt.Errorf("%w: container lookup: %v", ErrUnknown, err)
	}

	node, err := o.nodes.FindByRegion(ctx, record.RegionName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: cannot find compute region: %s", ErrNotFound, record.RegionName)
		}
		return fmt.Errorf("%w: region lookup: %v", ErrUnknown, err)
	}

	if err := o.client.RestartContainer(ctx, node.IPAddress, node.HostPort, record.ContainerID); err != nil {
		var restartErr *nodeclient.RestartError
		if errors.As(err, &restartErr) {
			// The node's own message, forwarded verbatim.
			return fmt.Errorf("%w: %s", ErrUnknown, restartErr.Detail)
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ListContainers returns the containers owned by the token's user in
// creation order. Zero containers is a valid outcome, not an error.
func (o *Orchestrator) ListContainers(ctx context.Context, token string) ([]ContainerSummary, error) {
	user, err := o.tokens.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	records, err := o.containers.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: list containers: %v", ErrUnknown, err)
	}
	out := make([]ContainerSummary, 0, len(records))
	for _, r := range records {
		out = append(out, ContainerSummary{
			UserName:    user.UserName,
			ContainerID: r.ContainerID,
			RegionName:  r.RegionName,
		})
	}
	return out, nil
}

// ListNodeLoad asks every registered node for its load figure, one
// sequential call per node. A node that cannot be reached degrades to a
// sentinel figure instead of failing the whole listing, so latency is
// O(nodes x timeout) in the worst case.
func (o *Orchestrator) ListNodeLoad(ctx context.Context) ([]NodeLoad, error) {
	nodes, err := o.nodes.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("%w: list nodes: %v", ErrUnknown, err)
	}
	out := make([]NodeLoad, 0, len(nodes))
	for _, n := range nodes {
		load, err := o.client.ReportLoad(ctx, n.IPAddress, n.HostPort)
		if err != nil {
			load = loadUnavailable
		}
		out = append(out, NodeLoad{RegionName: n.RegionName, LoadPercentage: load})
	}
	return out, nil
}
