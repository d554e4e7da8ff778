// Package auth contains the request authenticators a deployment can plug into the
// node's evaluator.
package auth

import (
	"context"

	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module"
)

// PassThrough authorizes every request for the key id it names. It is meant for
// deployments where access control happens in front of the nodes.
type PassThrough struct{}

var _ module.RequestAuthenticator = PassThrough{}

func NewPassThrough() PassThrough {
	return PassThrough{}
}

func (PassThrough) Authenticate(_ context.Context, request *oprf.OprfRequest) (oprf.KeyID, error) {
	return request.KeyID, nil
}
