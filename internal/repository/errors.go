// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// orchestration services to distinguish between different failure
// scenarios without parsing driver error strings themselves. For example,
// ErrNodeExists signals that a compute node with the same IP address is
// already registered, which the service layer surfaces as a conflict.
package repository

import "errors"

// ErrNameExists is returned when a user registration collides with an
// existing user name. The unique index on users.user_name raises it even
// when two registrations race past an existence check.
var ErrNameExists = errors.New("user name already exists")

// ErrNodeExists is returned when a node registration collides with an
// already registered IP address (or, through a sequence bug, an already
// assigned region label). Enforced by unique indexes on the nodes table.
var ErrNodeExists = errors.New("node already registered")
