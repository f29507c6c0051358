package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// Node mirrors the 'nodes' table. A node is immutable after registration;
// only its container population (tracked in the containers table) changes.
type Node struct {
	ID         uint64
	HostName   string
	IPAddress  string
	HostPort   string
	RegionName string
	CreatedAt  time.Time
}

type NodeRepo struct{ DB *sql.DB }

func NewNodeRepo(db *sql.DB) *NodeRepo { return &NodeRepo{DB: db} }

const nodeCols = "id,host_name,ip_address,host_port,region_name,created_at"

// Create inserts the node and populates its generated ID. The unique
// indexes on ip_address and region_name turn a lost duplicate race into
// ErrNodeExists instead of a second row.
func (r *NodeRepo) Create(ctx context.Context, n *Node) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO nodes (host_name, ip_address, host_port, region_name) VALUES (?,?,?,?)",
		n.HostName, n.IPAddress, n.HostPort, n.RegionName)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrNodeExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	return nil
}

// Count reports how many nodes are registered. Used once at startup to
// seed the region sequence.
func (r *NodeRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes").Scan(&n)
	return n, err
}

// FindByRegion fetches the node owning the given region label.
func (r *NodeRepo) FindByRegion(ctx context.Context, region string) (Node, error) {
	return r.getOne(ctx, "SELECT "+nodeCols+" FROM nodes WHERE region_name=? LIMIT 1", region)
}

// FindByIPAddress fetches the node registered at the given host address.
func (r *NodeRepo) FindByIPAddress(ctx context.Context, ip string) (Node, error) {
	return r.getOne(ctx, "SELECT "+nodeCols+" FROM nodes WHERE ip_address=? LIMIT 1", ip)
}

func (r *NodeRepo) getOne(ctx context.Context, query string, arg any) (Node, error) {
	var n Node
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&n.ID, &n.HostName, &n.IPAddress, &n.HostPort, &n.RegionName, &n.CreatedAt)
	return n, err
}

// List returns all registered nodes. With sortByContainers set, nodes
// carrying fewer containers come first, which lets callers pick a lightly
// loaded node. The count is a best-effort hint, not a placement guarantee.
func (r *NodeRepo) List(ctx context.Context, sortByContainers bool) ([]Node, error) {
	query := "SELECT " + nodeCols + " FROM nodes ORDER BY id"
	if sortByContainers {
		query = `SELECT n.id,n.host_name,n.ip_address,n.host_port,n.region_name,n.created_at
			FROM nodes n
			LEFT JOIN containers c ON c.region_name = n.region_name
			GROUP BY n.id,n.host_name,n.ip_address,n.host_port,n.region_name,n.created_at
			ORDER BY COUNT(c.id) ASC, n.id ASC`
	}
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.ID, &n.HostName, &n.IPAddress, &n.HostPort, &n.RegionName, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
