package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/pflag"

	"github.com/oprf-network/oprf-node/cmd"
	"github.com/oprf-network/oprf-node/engine/common/health"
	"github.com/oprf-network/oprf-node/engine/keygen"
	oprfengine "github.com/oprf-network/oprf-node/engine/oprf"
	"github.com/oprf-network/oprf-node/engine/oprf/auth"
	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module"
	"github.com/oprf-network/oprf-node/module/component"
	"github.com/oprf-network/oprf-node/module/connector"
	"github.com/oprf-network/oprf-node/module/dkg"
	"github.com/oprf-network/oprf-node/module/metrics"
	"github.com/oprf-network/oprf-node/module/noncestore"
	"github.com/oprf-network/oprf-node/module/registry"
	"github.com/oprf-network/oprf-node/storage"
	"github.com/oprf-network/oprf-node/storage/awssm"
	badgerstorage "github.com/oprf-network/oprf-node/storage/badger"
	"github.com/oprf-network/oprf-node/storage/cache"
	"github.com/oprf-network/oprf-node/storage/postgres"
)

// initTimeout bounds each blocking initialization step.
const initTimeout = 30 * time.Second

func main() {
	var (
		peers           []string
		insecurePeers   bool
		secretBackend   string
		awsRegion       string
		awsPrefix       string
		postgresURL     string
		cacheSize       uint
		rpcURL          string
		registryAddress string
		startBlock      uint64
		pollInterval    time.Duration
		maxBlockRange   uint64
		roundTimeout    time.Duration
		sessionTTL      time.Duration
		maxSessions     int
		readWait        time.Duration
		authMode        string
		authSigners     []string
		peerTimeout     time.Duration

		secrets   storage.SecretManager
		wallet    *ecdsa.PrivateKey
		committee []module.DKGParticipant
		myIndex   oprf.PartyID
		client    *ethclient.Client
		chainID   *big.Int
		factory   *dkg.ControllerFactory
	)

	nodeBuilder := cmd.OprfNode("oprf-node")
	nodeBuilder.
		ExtraFlags(func(flags *pflag.FlagSet) {
			flags.StringSliceVar(&peers, "peers", nil, "ordered committee, entries <wallet address>@<url>; position i holds party i+1")
			flags.BoolVar(&insecurePeers, "insecure-peers", false, "accept plain http peer urls, for local development only")
			flags.StringVar(&secretBackend, "secret-backend", backendBadger, "secret store: badger, aws or postgres")
			flags.StringVar(&awsRegion, "aws-region", "", "region of the aws secret store, defaults to the aws configuration")
			flags.StringVar(&awsPrefix, "aws-secret-prefix", "oprf", "name prefix of the secrets in the aws secret store")
			flags.StringVar(&postgresURL, "postgres-url", "", "connection string of the postgres secret store")
			flags.UintVar(&cacheSize, "secret-cache-size", 1024, "number of (key id, epoch) entries kept in memory")
			flags.StringVar(&rpcURL, "rpc-url", "http://localhost:8545", "rpc endpoint of the chain hosting the key registry")
			flags.StringVar(&registryAddress, "registry-address", "", "address of the key registry contract")
			flags.Uint64Var(&startBlock, "start-block", 0, "first block scanned for key generation requests on a fresh node")
			flags.DurationVar(&pollInterval, "poll-interval", keygen.DefaultPollInterval, "interval between two reads of the key registry")
			flags.Uint64Var(&maxBlockRange, "max-block-range", keygen.DefaultMaxBlockRange, "maximum number of blocks read in a single log query")
			flags.DurationVar(&roundTimeout, "dkg-round-timeout", dkg.DefaultRoundTimeout, "time allowed for each key generation round")
			flags.DurationVar(&peerTimeout, "dkg-peer-timeout", 10*time.Second, "timeout of a single key generation message delivery")
			flags.DurationVar(&sessionTTL, "session-ttl", oprfengine.DefaultSessionTTL, "time a client has to complete an evaluation session")
			flags.IntVar(&maxSessions, "max-sessions", oprfengine.DefaultMaxSessions, "maximum number of evaluation sessions waiting for their challenge")
			flags.DurationVar(&readWait, "session-read-wait", 30*time.Second, "time the node waits for each client message")
			flags.StringVar(&authMode, "auth", authNone, "request authenticator: none or signed")
			flags.StringSliceVar(&authSigners, "auth-signers", nil, "allowed signers of the signed authenticator, entries <address>=<key id>")
		}).
		Module("secret manager", func(node *cmd.NodeBuilder) error {
			ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
			defer cancel()

			var backend storage.SecretManager
			switch secretBackend {
			case backendBadger:
				backend = badgerstorage.NewSecretManager(node.DB)
			case backendAWS:
				awsClient, err := awssm.NewClient(ctx, awsRegion)
				if err != nil {
					return err
				}
				backend = awssm.NewSecretManager(node.Logger, awsClient, awsPrefix)
			case backendPostgres:
				pg, err := postgres.NewSecretManager(ctx, postgresURL)
				if err != nil {
					return err
				}
				node.ShutdownFunc(func() error {
					pg.Close()
					return nil
				})
				backend = pg
			default:
				return fmt.Errorf("unknown secret backend %q", secretBackend)
			}

			cached, err := cache.NewSecretManager(backend, metrics.NewCacheCollector(node.Registry), cacheSize)
			if err != nil {
				return err
			}
			loaded, err := cached.LoadSecrets(ctx)
			if err != nil {
				return fmt.Errorf("could not load key material: %w", err)
			}
			node.Logger.Info().Str("backend", secretBackend).Int("keys", len(loaded)).Msg("secret manager ready")
			secrets = cached
			return nil
		}).
		Module("wallet", func(node *cmd.NodeBuilder) error {
			ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
			defer cancel()

			var err error
			wallet, err = secrets.LoadOrInsertWalletPrivateKey(ctx)
			if err != nil {
				return err
			}
			committee, err = ParsePeers(peers, insecurePeers)
			if err != nil {
				return err
			}
			address, err := secrets.LoadAddress(ctx)
			if err != nil {
				return err
			}
			myIndex, err = FindParty(committee, address)
			if err != nil {
				return err
			}
			node.Logger.Info().Str("address", address.Hex()).Uint16("party", uint16(myIndex)).Int("committee", len(committee)).Msg("wallet loaded")
			return nil
		}).
		Module("chain client", func(node *cmd.NodeBuilder) error {
			ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
			defer cancel()

			if !common.IsHexAddress(registryAddress) {
				return fmt.Errorf("invalid registry address %q", registryAddress)
			}
			var err error
			client, err = ethclient.DialContext(ctx, rpcURL)
			if err != nil {
				return fmt.Errorf("could not connect to %s: %w", rpcURL, err)
			}
			node.ShutdownFunc(func() error {
				client.Close()
				return nil
			})
			chainID, err = client.ChainID(ctx)
			if err != nil {
				return fmt.Errorf("could not read chain id: %w", err)
			}
			return nil
		}).
		Module("dkg", func(node *cmd.NodeBuilder) error {
			tunnel := dkg.NewBrokerTunnel(node.Logger)
			transport := dkg.NewHTTPTransport(&http.Client{Timeout: peerTimeout}, committee)
			var err error
			factory, err = dkg.NewControllerFactory(node.Logger, committee, myIndex, wallet, transport, tunnel,
				dkg.ControllerConfig{RoundTimeout: roundTimeout})
			if err != nil {
				return err
			}
			node.Router.Handle(dkg.MessagesPath, dkg.NewMessageHandler(node.Logger, tunnel)).Methods(http.MethodPost)
			return nil
		}).
		Module("evaluator", func(node *cmd.NodeBuilder) error {
			var authenticator module.RequestAuthenticator
			switch authMode {
			case authNone:
				authenticator = auth.NewPassThrough()
			case authSigned:
				signers, err := ParseSigners(authSigners)
				if err != nil {
					return err
				}
				authenticator = auth.NewSigned(signers)
			default:
				return fmt.Errorf("unknown authenticator %q", authMode)
			}

			evaluator := oprfengine.NewEvaluator(node.Logger, secrets, authenticator, metrics.NewOPRFCollector(node.Registry), rand.Reader,
				oprfengine.Config{SessionTTL: sessionTTL, MaxSessions: maxSessions})
			node.Router.Handle(connector.Path, oprfengine.NewHandler(node.Logger, evaluator, readWait)).Methods(http.MethodGet)
			return nil
		}).
		Component("keygen reactor", func(node *cmd.NodeBuilder) (component.Component, error) {
			contract := common.HexToAddress(registryAddress)
			events, err := registry.NewEventSource(client, contract)
			if err != nil {
				return nil, err
			}
			walletMetrics := metrics.NewWalletCollector(node.Registry)
			nonces := noncestore.New(node.Logger, client, committee[myIndex-1].Address, walletMetrics)
			announcer, err := registry.NewAnnouncer(node.Logger, client, contract, chainID, wallet, nonces, walletMetrics)
			if err != nil {
				return nil, err
			}

			reactor := keygen.NewReactorEngine(
				node.Logger,
				events,
				factory,
				announcer,
				secrets,
				badgerstorage.NewKeyGenStates(node.DB),
				badgerstorage.NewConsumerProgress(node.DB, "key_registry_events"),
				metrics.NewKeyGenCollector(node.Registry),
				keygen.Config{
					PollInterval:  pollInterval,
					RetryBase:     keygen.DefaultRetryBase,
					MaxBlockRange: maxBlockRange,
					StartBlock:    startBlock,
				},
			)
			node.Router.Handle(health.Path, health.NewHandler(node.Logger, reactor)).Methods(http.MethodGet)
			return reactor, nil
		})

	if err := nodeBuilder.Command().ExecuteContext(context.Background()); err != nil {
		if !cmd.IsLogged(err) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
