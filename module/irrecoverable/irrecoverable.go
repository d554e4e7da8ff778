package irrecoverable

import (
	"context"
	"log"
	"runtime"
)

// Signaler sends the error out.
type Signaler struct {
	errChan chan error
}

func NewSignaler() (*Signaler, <-chan error) {
	errChan := make(chan error, 1)
	return &Signaler{
		errChan: errChan,
	}, errChan
}

// Throw is a narrow drop-in replacement for panic, log.Fatal, log.Panic, etc
// anywhere there's something connected to the error channel. It only sends
// the first error it is called with to the error channel, and logs subsequent
// errors as unhandled.
func (s *Signaler) Throw(err error) {
	defer runtime.Goexit()
	select {
	case s.errChan <- err:
		close(s.errChan)
	default:
		// the channel is full or closed, a first error was already thrown
		log.Printf("unhandled irrecoverable error: %v", err)
	}
}

// SignalerContext is a constrained interface to provide a drop-in replacement for
// context.Context including in interfaces that compose it.
type SignalerContext interface {
	context.Context
	Throw(err error) // delegates to the signaler
	sealed()         // private, to constrain builder to using WithSignaler
}

// SignalerContextKey represents the key type for retrieving a SignalerContext from a value `context.Context`.
type SignalerContextKey struct{}

// private, to force context derivation / WithSignaler
type signalerCtx struct {
	context.Context
	*Signaler
}

func (sc signalerCtx) sealed() {}

// WithSignaler is the One True Way of getting a SignalerContext.
func WithSignaler(parent context.Context) (SignalerContext, <-chan error) {
	sig, errChan := NewSignaler()
	return &signalerCtx{parent, sig}, errChan
}

// WithSignalerContext wraps `SignalerContext` using `context.WithValue` so it can later be used with `Throw`.
func WithSignalerContext(parent context.Context, ctx SignalerContext) context.Context {
	return context.WithValue(parent, SignalerContextKey{}, ctx)
}

// Throw can be a drop-in replacement anywhere we have a context.Context likely
// to support Irrecoverables. Note: this is not a method
func Throw(ctx context.Context, err error) {
	signalerAbleContext, ok := ctx.(SignalerContext)
	if ok {
		signalerAbleContext.Throw(err)
	} else {
		signalerAbleContext, ok := ctx.Value(SignalerContextKey{}).(SignalerContext)
		if ok {
			signalerAbleContext.Throw(err)
		}
	}
	// Be spectacular on how this does not -but should- handle irrecoverables:
	log.Fatalf("irrecoverable error signaler not found for context, please implement! Unhandled irrecoverable error: %v", err)
}

// WithSignallerAndCancel returns an irrecoverable context, the cancel
// function for the context, and the error channel for the context.
func WithSignallerAndCancel(ctx context.Context) (SignalerContext, context.CancelFunc, <-chan error) {
	parent, cancel := context.WithCancel(ctx)
	irrecoverableCtx, errCh := WithSignaler(parent)
	return irrecoverableCtx, cancel, errCh
}
