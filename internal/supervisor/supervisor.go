// package supervisor assembles the long-running services under a suture
// supervision tree.
package supervisor

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/thejerf/suture/v4"
)

// Tree supervises the HTTP server and the scheduler. Either crashing is
// restarted with suture's default backoff; the other keeps running.
type Tree struct {
	root *suture.Supervisor
}

// New creates the supervision tree. Services are suture.Service
// implementations: blocking Serve(ctx) with a String() name.
func New(logger *log.Logger, services ...suture.Service) *Tree {
	root := suture.New("musicarr", suture.Spec{
		EventHook: eventHook(logger),
		Timeout:   10 * time.Second,
	})
	for _, svc := range services {
		root.Add(svc)
	}
	return &Tree{root: root}
}

// Serve runs the tree until ctx is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine, returning the channel that
// reports its terminal error.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// eventHook routes suture lifecycle events into the application logger
func eventHook(logger *log.Logger) suture.EventHook {
	return func(event suture.Event) {
		switch e := event.(type) {
		case suture.EventServiceTerminate:
			logger.Warn("service terminated, restarting",
				"service", e.ServiceName,
				"error", e.Err)
		case suture.EventBackoff:
			logger.Warn("supervisor entering backoff", "supervisor", e.SupervisorName)
		case suture.EventResume:
			logger.Info("supervisor resumed", "supervisor", e.SupervisorName)
		case suture.EventStopTimeout:
			logger.Error("service failed to stop",
				"service", e.ServiceName)
		default:
			logger.Debug("supervisor event", "event", event.String())
		}
	}
}
