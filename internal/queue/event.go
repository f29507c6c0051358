// Package queue defines message payloads exchanged over the message broker.
package queue

// NodeRegisteredEvent is published when a compute node joins the fleet.
type NodeRegisteredEvent struct {
	RegionName   string `json:"region_name"`
	IPAddress    string `json:"ip_address"`
	HostPort     string `json:"host_port"`
	HostName     string `json:"host_name"`
	RegisteredAt string `json:"registered_at"`
}

// ContainerCreatedEvent is published when a node confirms a container
// creation. It carries enough for downstream consumers to audit or
// notify without querying the primary database.
type ContainerCreatedEvent struct {
	UserName    string `json:"user_name"`
	ContainerID string `json:"container_id"`
	RegionName  string `json:"region_name"`
	CreatedAt   string `json:"created_at"`
}
