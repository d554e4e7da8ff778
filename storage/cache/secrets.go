package cache

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module"
	"github.com/oprf-network/oprf-node/module/metrics"
	"github.com/oprf-network/oprf-node/storage"
)

const DefaultCacheSize = 1000

type epochKey struct {
	keyID oprf.KeyID
	epoch oprf.ShareEpoch
}

func (k epochKey) String() string {
	return fmt.Sprintf("%s/%d", k.keyID, k.epoch)
}

// SecretManager wraps a storage.SecretManager backend with a bounded LRU cache of key
// material per (key id, epoch). Concurrent misses for the same pair are coalesced into a
// single backend read.
//
// Cached material is shared between callers and must be treated as read-only.
type SecretManager struct {
	backend  storage.SecretManager
	metrics  module.CacheMetrics
	resource string
	cache    *lru.Cache[epochKey, *oprf.KeyMaterial]
	loads    singleflight.Group
}

var _ storage.SecretManager = (*SecretManager)(nil)

func NewSecretManager(backend storage.SecretManager, collector module.CacheMetrics, limit uint) (*SecretManager, error) {
	if limit == 0 {
		limit = DefaultCacheSize
	}
	cache, err := lru.New[epochKey, *oprf.KeyMaterial](int(limit))
	if err != nil {
		return nil, fmt.Errorf("could not create key material cache: %w", err)
	}
	s := &SecretManager{
		backend:  backend,
		metrics:  collector,
		resource: metrics.ResourceKeyMaterial,
		cache:    cache,
	}
	s.metrics.CacheEntries(s.resource, uint(s.cache.Len()))
	return s, nil
}

func (s *SecretManager) LoadAddress(ctx context.Context) (common.Address, error) {
	return s.backend.LoadAddress(ctx)
}

// LoadSecrets loads the latest material of every key id from the backend and installs
// it in the cache.
func (s *SecretManager) LoadSecrets(ctx context.Context) (map[oprf.KeyID]*oprf.KeyMaterial, error) {
	secrets, err := s.backend.LoadSecrets(ctx)
	if err != nil {
		return nil, err
	}
	for keyID, material := range secrets {
		s.install(epochKey{keyID: keyID, epoch: material.Epoch}, material)
	}
	return secrets, nil
}

func (s *SecretManager) GetKeyMaterial(ctx context.Context, keyID oprf.KeyID, epoch oprf.ShareEpoch) (*oprf.KeyMaterial, error) {
	key := epochKey{keyID: keyID, epoch: epoch}

	material, cached := s.cache.Get(key)
	if cached {
		s.metrics.CacheHit(s.resource)
		return material, nil
	}

	v, err, _ := s.loads.Do(key.String(), func() (interface{}, error) {
		// another load may have installed the entry meanwhile
		if material, ok := s.cache.Get(key); ok {
			return material, nil
		}
		material, err := s.backend.GetKeyMaterial(ctx, keyID, epoch)
		if err != nil {
			return nil, err
		}
		s.install(key, material)
		return material, nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.metrics.CacheNotFound(s.resource)
		}
		return nil, err
	}
	s.metrics.CacheMiss(s.resource)
	return v.(*oprf.KeyMaterial), nil
}

// InsertKeyMaterial persists the material in the backend first and only installs it in
// the cache once the backend accepted it.
func (s *SecretManager) InsertKeyMaterial(ctx context.Context, material *oprf.KeyMaterial) error {
	err := s.backend.InsertKeyMaterial(ctx, material)
	if err != nil {
		return err
	}
	s.install(epochKey{keyID: material.KeyID, epoch: material.Epoch}, material)
	return nil
}

func (s *SecretManager) LoadOrInsertWalletPrivateKey(ctx context.Context) (*ecdsa.PrivateKey, error) {
	return s.backend.LoadOrInsertWalletPrivateKey(ctx)
}

func (s *SecretManager) install(key epochKey, material *oprf.KeyMaterial) {
	s.cache.Add(key, material)
	s.metrics.CacheEntries(s.resource, uint(s.cache.Len()))
}
