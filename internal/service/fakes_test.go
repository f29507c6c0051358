package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/KangDroid/CLMasterServer/internal/nodeclient"
	"github.com/KangDroid/CLMasterServer/internal/repository"
)

// In-memory stand-ins for the repositories and the node client. They
// enforce the same uniqueness rules the MySQL schema does so the service
// tests exercise real conflict paths.

type fakeUserStore struct {
	mu    sync.Mutex
	seq   uint64
	users map[uint64]*repository.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[uint64]*repository.User{}}
}

func (f *fakeUserStore) Create(_ context.Context, name, passwordHash, roles string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.UserName == name {
			return 0, repository.ErrNameExists
		}
	}
	f.seq++
	f.users[f.seq] = &repository.User{
		ID:           f.seq,
		UserName:     name,
		PasswordHash: passwordHash,
		Roles:        roles,
		CreatedAt:    time.Now().UTC(),
	}
	return f.seq, nil
}

func (f *fakeUserStore) GetByName(_ context.Context, name string) (repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.UserName == name {
			return *u, nil
		}
	}
	return repository.User{}, sql.ErrNoRows
}

func (f *fakeUserStore) GetByToken(_ context.Context, token string) (repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Token != "" && u.Token == token {
			return *u, nil
		}
	}
	return repository.User{}, sql.ErrNoRows
}

func (f *fakeUserStore) SetToken(_ context.Context, id uint64, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.Token = token
		u.TokenExpiresAt = sql.NullTime{Time: expiresAt, Valid: true}
	}
	return nil
}

func (f *fakeUserStore) ClearToken(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.Token = ""
		u.TokenExpiresAt = sql.NullTime{}
	}
	return nil
}

func (f *fakeUserStore) ClearExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, u := range f.users {
		if u.Token != "" && u.TokenExpiresAt.Valid && u.TokenExpiresAt.Time.Before(now) {
			u.Token = ""
			u.TokenExpiresAt = sql.NullTime{}
			n++
		}
	}
	return n, nil
}

type fakeNodeStore struct {
	mu             sync.Mutex
	seq            uint64
	nodes          []*repository.Node
	containerCount map[string]int // region -> container count, for sorted listing
}

func newFakeNodeStore() *fakeNodeStore {
	return &fakeNodeStore{containerCount: map[string]int{}}
}

func (f *fakeNodeStore) Create(_ context.Context, n *repository.Node) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.nodes {
		if existing.IPAddress == n.IPAddress || existing.RegionName == n.RegionName {
			return repository.ErrNodeExists
		}
	}
	f.seq++
	n.ID = f.seq
	clone := *n
	f.nodes = append(f.nodes, &clone)
	return nil
}

func (f *fakeNodeStore) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.nodes)), nil
}

func (f *fakeNodeStore) FindByRegion(_ context.Context, region string) (repository.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.nodes {
		if n.RegionName == region {
			return *n, nil
		}
	}
	return repository.Node{}, sql.ErrNoRows
}

func (f *fakeNodeStore) FindByIPAddress(_ context.Context, ip string) (repository.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.nodes {
		if n.IPAddress == ip {
			return *n, nil
		}
	}
	return repository.Node{}, sql.ErrNoRows
}

func (f *fakeNodeStore) List(_ context.Context, sortByContainers bool) ([]repository.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.Node, 0, len(f.nodes))
	for _, n := range f.nodes {
		out = append(out, *n)
	}
	if sortByContainers {
		sort.SliceStable(out, func(i, j int) bool {
			return f.containerCount[out[i].RegionName] < f.containerCount[out[j].RegionName]
		})
	}
	return out, nil
}

type fakeContainerStore struct {
	mu         sync.Mutex
	seq        uint64
	containers []*repository.Container
}

func newFakeContainerStore() *fakeContainerStore { return &fakeContainerStore{} }

func (f *fakeContainerStore) Create(_ context.Context, c *repository.Container) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	c.ID = f.seq
	clone := *c
	f.containers = append(f.containers, &clone)
	return nil
}

func (f *fakeContainerStore) ListByUser(_ context.Context, userID uint64) ([]repository.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []repository.Container{}
	for _, c := range f.containers {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeContainerStore) FindByUserAndContainerID(_ context.Context, userID uint64, containerID string) (repository.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.containers {
		if c.UserID == userID && c.ContainerID == containerID {
			return *c, nil
		}
	}
	return repository.Container{}, sql.ErrNoRows
}

// fakeNodeCaller scripts the node HTTP boundary and counts outbound calls.
type fakeNodeCaller struct {
	mu sync.Mutex

	aliveStatus nodeclient.AliveStatus
	aliveErr    error
	createInfo  nodeclient.ContainerInfo
	createErr   error
	restartErr  error
	loads       map[string]string // ip -> figure
	loadErrs    map[string]error  // ip -> error

	aliveCalls   int
	createCalls  int
	restartCalls int
}

func newFakeNodeCaller() *fakeNodeCaller {
	return &fakeNodeCaller{
		aliveStatus: nodeclient.AliveStatus{Running: true},
		loads:       map[string]string{},
		loadErrs:    map[string]error{},
	}
}

func (f *fakeNodeCaller) CheckAlive(_ context.Context, ip, port string) (nodeclient.AliveStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aliveCalls++
	return f.aliveStatus, f.aliveErr
}

func (f *fakeNodeCaller) CreateContainer(_ context.Context, ip, port string) (nodeclient.ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	return f.createInfo, f.createErr
}

func (f *fakeNodeCaller) RestartContainer(_ context.Context, ip, port, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restartCalls++
	return f.restartErr
}

func (f *fakeNodeCaller) ReportLoad(_ context.Context, ip, port string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.loadErrs[ip]; ok {
		return "", err
	}
	if figure, ok := f.loads[ip]; ok {
		return figure, nil
	}
	return "0%", nil
}
