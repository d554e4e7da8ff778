package toprf

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"io"

	"github.com/rs/zerolog"

	"github.com/oprf-network/oprf-node/crypto"
	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module"
)

// Client evaluates queries against a fixed set of OPRF nodes.
type Client struct {
	log       zerolog.Logger
	services  []string
	module    string
	threshold int
	connector module.Connector
	rng       io.Reader
	publicKey *crypto.Element
}

// Option configures a Client.
type Option func(*Client)

// WithExpectedPublicKey pins the public key of the evaluated share set.
func WithExpectedPublicKey(publicKey *crypto.Element) Option {
	return func(c *Client) {
		c.publicKey = publicKey
	}
}

// WithRandomness replaces the source of blinding factors, crypto/rand by default.
func WithRandomness(rng io.Reader) Option {
	return func(c *Client) {
		c.rng = rng
	}
}

// NewClient creates a client for the given services. The service at position i must be
// the node holding the share of party i+1.
func NewClient(log zerolog.Logger, services []string, moduleName string, threshold int, connector module.Connector, opts ...Option) (*Client, error) {
	c := &Client{
		log:       log.With().Str("component", "toprf_client").Str("module", moduleName).Logger(),
		services:  services,
		module:    moduleName,
		threshold: threshold,
		connector: connector,
		rng:       rand.Reader,
	}
	for _, apply := range opts {
		apply(c)
	}
	if err := validate(c.request(oprf.ZeroKeyID, 0, crypto.NewScalar(), nil)); err != nil {
		return nil, err
	}
	return c, nil
}

// Evaluate maps input into the query domain and returns the verified output.
func (c *Client) Evaluate(ctx context.Context, keyID oprf.KeyID, epoch oprf.ShareEpoch, input []byte, auth json.RawMessage) (*crypto.Scalar, error) {
	output, err := c.EvaluateVerifiable(ctx, keyID, epoch, crypto.QueryFromBytes(input), auth)
	if err != nil {
		return nil, err
	}
	return output.Output, nil
}

// EvaluateVerifiable evaluates a query and returns the output with its proof.
func (c *Client) EvaluateVerifiable(ctx context.Context, keyID oprf.KeyID, epoch oprf.ShareEpoch, query *crypto.Scalar, auth json.RawMessage) (*oprf.VerifiableOutput, error) {
	return Evaluate(ctx, c.log, c.request(keyID, epoch, query, auth), c.rng, c.connector)
}

func (c *Client) request(keyID oprf.KeyID, epoch oprf.ShareEpoch, query *crypto.Scalar, auth json.RawMessage) *Request {
	return &Request{
		Services:          c.services,
		Module:            c.module,
		Threshold:         c.threshold,
		KeyID:             keyID,
		Epoch:             epoch,
		Query:             query,
		Auth:              auth,
		ExpectedPublicKey: c.publicKey,
	}
}
