package repository

import (
	"context"
	"database/sql"
	"time"
)

// Container is the master's bookkeeping record for a container hosted on
// some node. ContainerID is the remote id the node assigned; RegionName
// is a denormalized pointer back to the hosting node.
type Container struct {
	ID          uint64
	UserID      uint64
	ContainerID string
	RegionName  string
	CreatedAt   time.Time
}

type ContainerRepo struct{ DB *sql.DB }

func NewContainerRepo(db *sql.DB) *ContainerRepo { return &ContainerRepo{DB: db} }

// Create inserts the container record and populates its generated ID.
func (r *ContainerRepo) Create(ctx context.Context, c *Container) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO containers (user_id, container_id, region_name) VALUES (?,?,?)",
		c.UserID, c.ContainerID, c.RegionName)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// ListByUser returns the user's containers in insertion order. A user
// with no containers gets an empty slice, not an error.
func (r *ContainerRepo) ListByUser(ctx context.Context, userID uint64) ([]Container, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,user_id,container_id,region_name,created_at FROM containers WHERE user_id=? ORDER BY id",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Container{}
	for rows.Next() {
		var c Container
		if err := rows.Scan(&c.ID, &c.UserID, &c.ContainerID, &c.RegionName, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FindByUserAndContainerID locates one of the user's own containers by its
// remote id. sql.ErrNoRows also covers the case where the container id
// exists but belongs to a different user.
func (r *ContainerRepo) FindByUserAndContainerID(ctx context.Context, userID uint64, containerID string) (Container, error) {
	var c Container
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,container_id,region_name,created_at FROM containers WHERE user_id=? AND container_id=? LIMIT 1",
		userID, containerID).Scan(&c.ID, &c.UserID, &c.ContainerID, &c.RegionName, &c.CreatedAt)
	return c, err
}
