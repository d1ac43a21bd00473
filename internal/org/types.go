package org

import "time"

// Organization groups users and objects and optionally carries a
// broadcast channel that receives every report of its objects.
type Organization struct {
	ID               string
	Name             string
	BroadcastChannel string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Object is a work site with an optional primary report channel.
type Object struct {
	ID        string
	OrgID     string
	Name      string
	Channel   string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Position is a staff job title.
type Position struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
