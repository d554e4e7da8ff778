package module

import (
	"context"

	"github.com/oprf-network/oprf-node/model/oprf"
)

// Connector opens sessions to OPRF nodes. Implementations exist for native websocket
// clients and for browser builds.
type Connector interface {
	// Connect opens a session to the node at the given address for the given module.
	Connect(ctx context.Context, service string, module string) (OprfSession, error)
}

// OprfSession is one two-step evaluation session with a single node.
type OprfSession interface {
	// Init sends the blinded request and waits for the node's partial response.
	// Error returns: *oprf.ErrorMessage if the node rejected the request.
	Init(ctx context.Context, request *oprf.OprfRequest) (*oprf.PartialResponse, error)

	// Challenge sends the selected contributions and waits for the node's proof share.
	// Error returns: *oprf.ErrorMessage if the node rejected the request.
	Challenge(ctx context.Context, request *oprf.ChallengeRequest) (*oprf.ChallengeResponse, error)

	// Close releases the session. It is safe to call more than once.
	Close() error
}

// RequestAuthenticator authenticates OPRF requests for a deployment. A successful
// authentication resolves to exactly one key id.
type RequestAuthenticator interface {
	// Authenticate returns the key id the request is authorized for.
	// Error returns: oprf.ErrUnauthorized (wrapped) if the request is not authorized.
	Authenticate(ctx context.Context, request *oprf.OprfRequest) (oprf.KeyID, error)
}
