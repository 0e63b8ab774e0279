// Package di contains dependency injection tokens for the status context.
package di

import (
	"github.com/fd1az/dexarb/business/status/app"
	"github.com/fd1az/dexarb/internal/di"
	"github.com/fd1az/dexarb/internal/wsconn"
)

// Public service tokens - exposed to other modules
var (
	Tracker = di.NewToken[*app.Tracker]("status.Tracker")
)

// Private dependency tokens - internal to status module
var (
	StreamHub = di.NewToken[*wsconn.Hub]("status:streamHub")
)

// Helper functions for type-safe access
func GetTracker(c di.ServiceRegistry) *app.Tracker {
	return di.GetToken(c, Tracker)
}

func GetStreamHub(c di.ServiceRegistry) *wsconn.Hub {
	return di.GetToken(c, StreamHub)
}
