package permission

import (
	"context"

	"mercado-print/internal/catalog"
)

// Bridge is the native permission API.
type Bridge interface {
	// Check reports whether p is currently granted.
	Check(ctx context.Context, p catalog.Permission) (bool, error)
	// Request prompts for every permission in perms at once and reports
	// whether all of them were granted.
	Request(ctx context.Context, perms []catalog.Permission) (bool, error)
}

// LocationServices is implemented by bridges that can tell whether the
// system location toggle is on.
type LocationServices interface {
	LocationEnabled(ctx context.Context) (bool, error)
}

// HostBridge serves desktop hosts, which have no runtime permission model:
// everything is reported as granted.
type HostBridge struct{}

func (HostBridge) Check(context.Context, catalog.Permission) (bool, error) { return true, nil }

func (HostBridge) Request(context.Context, []catalog.Permission) (bool, error) { return true, nil }
