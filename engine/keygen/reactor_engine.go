package keygen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"go.uber.org/atomic"

	"github.com/oprf-network/oprf-node/model/dkg"
	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module"
	"github.com/oprf-network/oprf-node/module/component"
	dkgmodule "github.com/oprf-network/oprf-node/module/dkg"
	"github.com/oprf-network/oprf-node/module/irrecoverable"
	"github.com/oprf-network/oprf-node/storage"
)

const (
	// DefaultPollInterval is the time between two reads of the key registry.
	DefaultPollInterval = 15 * time.Second
	// DefaultMaxBlockRange bounds the number of blocks read in a single log query.
	DefaultMaxBlockRange = 1000
	// DefaultRetryBase is the initial delay of the retries of a failed poll.
	DefaultRetryBase = time.Second

	retryMaxDelay = time.Minute
)

// Config defines the configuration of the ReactorEngine.
type Config struct {
	PollInterval  time.Duration
	RetryBase     time.Duration
	MaxBlockRange uint64
	// StartBlock is the first block scanned when the node starts without a cursor.
	StartBlock uint64
}

func DefaultConfig() Config {
	return Config{
		PollInterval:  DefaultPollInterval,
		RetryBase:     DefaultRetryBase,
		MaxBlockRange: DefaultMaxBlockRange,
	}
}

// ReactorEngine watches the key registry for key generation requests and runs one key
// generation instance per request. Each finished instance is committed in order: the
// key material is stored, the instance is recorded as committed, the public key is
// announced to the registry and the announcement is recorded. A request whose
// material is committed but not yet announced is announced again, never regenerated.
// Material that failed to be stored is kept in memory and stored again on the next
// poll, and material found in the secret store without a record is recorded as
// committed, so a finished instance never runs twice.
//
// The cursor stored in the consumer progress is the next block to scan. It only
// advances once every request of the scanned blocks has been handled.
//
// Failures to read the registry or to announce are retried with backoff for as long
// as the engine runs. Until the first poll succeeds the engine reports itself as not
// started. Failures of the secret store are retried the same way, failures of the
// local records are irrecoverable.
type ReactorEngine struct {
	*component.ComponentManager
	log       zerolog.Logger
	events    module.KeyEventSource
	factory   module.DKGControllerFactory
	announcer module.PublicKeyAnnouncer
	secrets   storage.SecretManager
	states    storage.KeyGenStates
	progress  storage.ConsumerProgress
	metrics   module.KeyGenMetrics
	config    Config
	started   *atomic.Bool
	// generated material not stored yet, by instance id. Only accessed by the watcher.
	pending map[string]*oprf.KeyMaterial
}

// NewReactorEngine creates a new ReactorEngine.
func NewReactorEngine(
	log zerolog.Logger,
	events module.KeyEventSource,
	factory module.DKGControllerFactory,
	announcer module.PublicKeyAnnouncer,
	secrets storage.SecretManager,
	states storage.KeyGenStates,
	progress storage.ConsumerProgress,
	metrics module.KeyGenMetrics,
	config Config,
) *ReactorEngine {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.RetryBase <= 0 {
		config.RetryBase = DefaultRetryBase
	}
	if config.MaxBlockRange == 0 {
		config.MaxBlockRange = DefaultMaxBlockRange
	}

	e := &ReactorEngine{
		log:       log.With().Str("engine", "keygen_reactor").Logger(),
		events:    events,
		factory:   factory,
		announcer: announcer,
		secrets:   secrets,
		states:    states,
		progress:  progress,
		metrics:   metrics,
		config:    config,
		started:   atomic.NewBool(false),
		pending:   make(map[string]*oprf.KeyMaterial),
	}
	e.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(e.watch).
		Build()
	return e
}

// Started returns true once the engine completed its first successful poll.
func (e *ReactorEngine) Started() bool {
	return e.started.Load()
}

func (e *ReactorEngine) watch(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	next, err := e.cursor()
	if err != nil {
		ctx.Throw(err)
		return
	}
	ready()
	e.log.Info().Uint64("next_block", next).Msg("watching key registry")

	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()
	for {
		next, err = e.pollWithRetry(ctx, next)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			ctx.Throw(err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// cursor returns the next block to scan, initializing the consumer progress on first start.
func (e *ReactorEngine) cursor() (uint64, error) {
	next, err := e.progress.ProcessedIndex()
	if errors.Is(err, storage.ErrNotFound) {
		err = e.progress.InitProcessedIndex(e.config.StartBlock)
		if err != nil {
			return 0, irrecoverable.NewExceptionf("could not initialize key event cursor: %w", err)
		}
		return e.config.StartBlock, nil
	}
	if err != nil {
		return 0, irrecoverable.NewExceptionf("could not read key event cursor: %w", err)
	}
	return next, nil
}

// pollWithRetry polls until it succeeds, an exception occurs or ctx is cancelled.
func (e *ReactorEngine) pollWithRetry(ctx context.Context, next uint64) (uint64, error) {
	backoff := retry.NewExponential(e.config.RetryBase)
	backoff = retry.WithCappedDuration(retryMaxDelay, backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		next, err = e.poll(ctx, next)
		if err == nil {
			return nil
		}
		if irrecoverable.IsException(err) || ctx.Err() != nil {
			return err
		}
		e.log.Warn().Err(err).Uint64("next_block", next).Msg("key registry poll failed, retrying")
		return retry.RetryableError(err)
	})
	return next, err
}

// poll handles the requests of all blocks up to the latest one and returns the new
// cursor. On error the returned cursor is the first block with unhandled requests.
func (e *ReactorEngine) poll(ctx context.Context, next uint64) (uint64, error) {
	latest, err := e.events.LatestBlock(ctx)
	if err != nil {
		return next, fmt.Errorf("could not read latest block: %w", err)
	}

	for next <= latest {
		to := next + e.config.MaxBlockRange - 1
		if to > latest {
			to = latest
		}
		requests, err := e.events.KeyGenRequests(ctx, next, to)
		if err != nil {
			return next, fmt.Errorf("could not read key generation requests in blocks [%d, %d]: %w", next, to, err)
		}
		for _, request := range requests {
			err := e.handle(ctx, request)
			if err != nil {
				return next, err
			}
		}

		err = e.progress.SetProcessedIndex(to + 1)
		if err != nil {
			return next, irrecoverable.NewExceptionf("could not persist key event cursor: %w", err)
		}
		e.metrics.KeyEventsPolled(to)
		next = to + 1
	}

	if !e.started.Swap(true) {
		e.log.Info().Uint64("latest_block", latest).Msg("key event watcher started")
	}
	return next, nil
}

// handle brings the key generation for request to completion, depending on the
// recorded state of the instance.
func (e *ReactorEngine) handle(ctx context.Context, request oprf.KeyGenRequest) error {
	log := e.log.With().
		Str("key_id", request.KeyID.String()).
		Uint64("epoch", uint64(request.Epoch)).
		Uint64("block", request.BlockNumber).
		Logger()

	record, err := e.states.GetKeyGenRecord(request.KeyID, request.Epoch)
	if errors.Is(err, storage.ErrNotFound) {
		return e.resume(ctx, log, request)
	}
	if err != nil {
		return irrecoverable.NewExceptionf("could not read key generation record: %w", err)
	}

	switch {
	case record.State == dkg.Aborted:
		log.Info().Str("reason", record.Reason).Msg("skipping aborted key generation")
		return nil
	case record.State == dkg.Committed && record.Announced:
		log.Debug().Msg("skipping completed key generation")
		return nil
	case record.State == dkg.Committed:
		log.Info().Msg("announcing public key of committed key generation")
		return e.announce(ctx, request, record.PublicKey)
	default:
		return irrecoverable.NewExceptionf("unexpected recorded key generation state %s", record.State)
	}
}

// resume handles a request without a record. Material of an earlier attempt, either
// still in memory or already in the secret store, is committed instead of running the
// key generation again.
func (e *ReactorEngine) resume(ctx context.Context, log zerolog.Logger, request oprf.KeyGenRequest) error {
	instanceID := dkgmodule.CanonicalInstanceID(request.KeyID, request.Epoch)
	if material, ok := e.pending[instanceID]; ok {
		log.Info().Msg("storing key material of an earlier attempt")
		err := e.store(ctx, instanceID, material)
		if err != nil {
			return err
		}
		return e.recordCommitted(ctx, log, request, material)
	}

	material, err := e.secrets.GetKeyMaterial(ctx, request.KeyID, request.Epoch)
	if err == nil {
		log.Info().Msg("recording key material stored before an interrupted commit")
		return e.recordCommitted(ctx, log, request, material)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("could not check for stored key material: %w", err)
	}
	return e.generate(ctx, log, request)
}

func (e *ReactorEngine) generate(ctx context.Context, log zerolog.Logger, request oprf.KeyGenRequest) error {
	controller, err := e.factory.Create(request)
	if err != nil {
		log.Error().Err(err).Msg("could not create key generation instance")
		return e.recordAbort(request, fmt.Sprintf("invalid request: %v", err))
	}
	defer controller.Shutdown()

	log.Info().Uint16("party", uint16(controller.GetIndex())).Uint16("threshold", request.Threshold).Msg("starting key generation")
	e.metrics.KeyGenStarted()
	start := time.Now()

	material, err := controller.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// not recorded, the instance runs again after a restart
			return ctx.Err()
		}
		if dkgmodule.IsAbortError(err) {
			log.Warn().Err(err).Msg("key generation aborted")
			e.metrics.KeyGenAborted()
			return e.recordAbort(request, err.Error())
		}
		return irrecoverable.NewExceptionf("unexpected key generation error: %w", err)
	}

	instanceID := dkgmodule.CanonicalInstanceID(request.KeyID, request.Epoch)
	e.pending[instanceID] = material
	err = e.store(ctx, instanceID, material)
	if err != nil {
		return err
	}
	err = controller.End()
	if err != nil {
		return irrecoverable.NewExceptionf("could not end key generation instance: %w", err)
	}
	e.metrics.KeyGenCommitted(time.Since(start))
	return e.recordCommitted(ctx, log, request, material)
}

// store persists pending key material. A failed store leaves the material pending
// and returns an error the poll retries. Conflicting stored material is irrecoverable.
func (e *ReactorEngine) store(ctx context.Context, instanceID string, material *oprf.KeyMaterial) error {
	err := e.secrets.InsertKeyMaterial(ctx, material)
	if errors.Is(err, storage.ErrDataMismatch) {
		return irrecoverable.NewExceptionf("could not store key material: %w", err)
	}
	if err != nil {
		return fmt.Errorf("could not store key material: %w", err)
	}
	delete(e.pending, instanceID)
	return nil
}

func (e *ReactorEngine) recordCommitted(ctx context.Context, log zerolog.Logger, request oprf.KeyGenRequest, material *oprf.KeyMaterial) error {
	publicKey := material.PublicKey.Encode()
	err := e.states.SetKeyGenState(request.KeyID, request.Epoch, dkg.Committed, publicKey, "")
	if err != nil {
		return irrecoverable.NewExceptionf("could not record committed key generation: %w", err)
	}
	log.Info().Str("public_key", material.PublicKey.String()).Msg("key material committed")
	return e.announce(ctx, request, publicKey)
}

func (e *ReactorEngine) announce(ctx context.Context, request oprf.KeyGenRequest, publicKey []byte) error {
	err := e.announcer.AnnouncePublicKey(ctx, request.KeyID, request.Epoch, publicKey)
	if err != nil {
		return fmt.Errorf("could not announce public key: %w", err)
	}
	err = e.states.SetAnnounced(request.KeyID, request.Epoch)
	if err != nil {
		return irrecoverable.NewExceptionf("could not record public key announcement: %w", err)
	}
	e.metrics.PublicKeyAnnounced()
	return nil
}

func (e *ReactorEngine) recordAbort(request oprf.KeyGenRequest, reason string) error {
	err := e.states.SetKeyGenState(request.KeyID, request.Epoch, dkg.Aborted, nil, reason)
	if err != nil {
		return irrecoverable.NewExceptionf("could not record aborted key generation: %w", err)
	}
	return nil
}
