package component

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oprf-network/oprf-node/module/irrecoverable"
	"github.com/oprf-network/oprf-node/utils/unittest"
)

func TestComponentManager_ReadyDone(t *testing.T) {
	cm := NewComponentManagerBuilder().
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			ready()
			<-ctx.Done()
		}).
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			ready()
			ready()
			<-ctx.Done()
		}).
		Build()

	ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
	cm.Start(ctx)

	unittest.RequireCloseBefore(t, cm.Ready(), time.Second, "component did not become ready")
	unittest.RequireNeverClosedWithin(t, cm.Done(), 50*time.Millisecond, "component stopped early")

	cancel()
	unittest.RequireCloseBefore(t, cm.ShutdownSignal(), time.Second, "no shutdown signal")
	unittest.RequireCloseBefore(t, cm.Done(), time.Second, "component did not stop")
}

func TestComponentManager_PropagatesIrrecoverable(t *testing.T) {
	expected := errors.New("storage failure")
	cm := NewComponentManagerBuilder().
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			ready()
			ctx.Throw(expected)
		}).
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			ready()
			<-ctx.Done()
		}).
		Build()

	ctx, cancel, errChan := irrecoverable.WithSignallerAndCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		cm.Start(ctx)
	}()
	<-done

	select {
	case err := <-errChan:
		assert.ErrorIs(t, err, expected)
	case <-time.After(time.Second):
		t.Fatal("error was not propagated")
	}
	unittest.RequireCloseBefore(t, cm.Done(), time.Second, "component did not stop after error")
}

func TestComponentManager_StartTwicePanics(t *testing.T) {
	cm := NewComponentManagerBuilder().Build()
	ctx, cancel := irrecoverable.NewMockSignalerContextWithCancel(t, context.Background())
	defer cancel()

	cm.Start(ctx)
	require.Panics(t, func() { cm.Start(ctx) })
}
