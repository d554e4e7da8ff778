package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/oprf-network/oprf-node/module/component"
	"github.com/oprf-network/oprf-node/module/irrecoverable"
	"github.com/oprf-network/oprf-node/module/util"
)

var _ component.Component = (*Node)(nil)

// Node runs the components of a node under a single component manager.
type Node struct {
	*component.ComponentManager
	Logger zerolog.Logger
	name   string
}

// run starts all components and blocks until ctx is cancelled or a component throws an
// irrecoverable error. Components are then given shutdownTimeout to stop.
func (node *Node) run(ctx context.Context, shutdownTimeout time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)
	node.Start(signalerCtx)

	go func() {
		select {
		case <-node.Ready():
			node.Logger.Info().Msgf("%s startup complete", node.name)
		case <-ctx.Done():
		}
	}()

	// block until the context is cancelled or a fatal error is encountered
	if err := util.WaitError(errChan, ctx.Done()); err != nil {
		return err
	}

	node.Logger.Info().Msgf("%s shutting down", node.name)
	cancel()

	select {
	case <-node.Done():
	case <-time.After(shutdownTimeout):
		return fmt.Errorf("%s did not shut down within %s", node.name, shutdownTimeout)
	}
	// a component may fail while shutting down
	select {
	case err := <-errChan:
		return err
	default:
		return nil
	}
}
