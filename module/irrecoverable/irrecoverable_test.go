package irrecoverable

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sentinelVar = errors.New("sentinelVar")

func TestException_HidesSentinelFromMessage(t *testing.T) {
	err := NewExceptionf("could not decode entity: %w", sentinelVar)
	assert.True(t, IsException(err))
	assert.True(t, errors.Is(err, sentinelVar))
	assert.Contains(t, err.Error(), "[exception!]")

	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, IsException(wrapped))
	assert.False(t, IsException(sentinelVar))
}

func TestThrow_FirstErrorWins(t *testing.T) {
	ctx, errChan := WithSignaler(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx.Throw(sentinelVar)
		t.Error("Throw must not return")
	}()
	<-done

	second := make(chan struct{})
	go func() {
		defer close(second)
		Throw(ctx, errors.New("second"))
	}()
	<-second

	err, ok := <-errChan
	require.True(t, ok)
	assert.ErrorIs(t, err, sentinelVar)
	_, ok = <-errChan
	assert.False(t, ok)
}

func TestThrow_ViaContextValue(t *testing.T) {
	signaler, errChan := WithSignaler(context.Background())
	ctx := WithSignalerContext(context.Background(), signaler)

	go Throw(ctx, sentinelVar)
	assert.ErrorIs(t, <-errChan, sentinelVar)
}
