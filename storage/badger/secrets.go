package badger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/sync/singleflight"

	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/storage"
	"github.com/oprf-network/oprf-node/storage/badger/operation"
)

// SecretManager is the badger backed implementation of storage.SecretManager. It is
// intended to run on a dedicated, encrypted secrets database, separate from any other
// node state.
type SecretManager struct {
	db        *badger.DB
	bootstrap singleflight.Group
}

var _ storage.SecretManager = (*SecretManager)(nil)

func NewSecretManager(db *badger.DB) *SecretManager {
	return &SecretManager{db: db}
}

func (s *SecretManager) LoadAddress(ctx context.Context) (common.Address, error) {
	key, err := s.retrieveWalletKey()
	if err != nil {
		return common.Address{}, err
	}
	return ethcrypto.PubkeyToAddress(key.PublicKey), nil
}

func (s *SecretManager) LoadSecrets(ctx context.Context) (map[oprf.KeyID]*oprf.KeyMaterial, error) {
	latest := make(map[oprf.KeyID]*oprf.KeyMaterial)
	err := s.db.View(operation.TraverseKeyMaterial(func(enc *oprf.EncodableKeyMaterial) error {
		defer enc.Zeroize()
		material, err := enc.Decode()
		if err != nil {
			return err
		}
		// entries are traversed in ascending epoch order per key id
		if previous, ok := latest[material.KeyID]; ok {
			previous.Zeroize()
		}
		latest[material.KeyID] = material
		return nil
	}))
	if err != nil {
		for _, m := range latest {
			m.Zeroize()
		}
		return nil, fmt.Errorf("could not load key material: %w", err)
	}
	return latest, nil
}

func (s *SecretManager) GetKeyMaterial(ctx context.Context, keyID oprf.KeyID, epoch oprf.ShareEpoch) (*oprf.KeyMaterial, error) {
	var enc oprf.EncodableKeyMaterial
	err := s.db.View(operation.RetrieveKeyMaterial(keyID, epoch, &enc))
	if err != nil {
		return nil, fmt.Errorf("could not retrieve key material for key %s epoch %d: %w", keyID, epoch, err)
	}
	defer enc.Zeroize()
	return enc.Decode()
}

func (s *SecretManager) InsertKeyMaterial(ctx context.Context, material *oprf.KeyMaterial) error {
	if err := material.Validate(); err != nil {
		return fmt.Errorf("refusing to store invalid key material: %w", err)
	}
	enc := material.Encodable()
	defer enc.Zeroize()

	err := operation.RetryOnConflict(s.db.Update, func(tx *badger.Txn) error {
		var existing oprf.EncodableKeyMaterial
		err := operation.RetrieveKeyMaterial(material.KeyID, material.Epoch, &existing)(tx)
		if errors.Is(err, storage.ErrNotFound) {
			return operation.InsertKeyMaterial(material.KeyID, material.Epoch, enc)(tx)
		}
		if err != nil {
			return err
		}
		defer existing.Zeroize()
		stored, err := existing.Decode()
		if err != nil {
			return err
		}
		defer stored.Zeroize()
		if !stored.Equal(material) {
			return storage.ErrDataMismatch
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not insert key material for key %s epoch %d: %w", material.KeyID, material.Epoch, err)
	}
	return nil
}

func (s *SecretManager) LoadOrInsertWalletPrivateKey(ctx context.Context) (*ecdsa.PrivateKey, error) {
	key, err := s.retrieveWalletKey()
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	// concurrent first callers within this process share one bootstrap, the
	// transaction makes separate processes converge as well
	_, err, _ = s.bootstrap.Do("wallet", func() (interface{}, error) {
		candidate, err := ethcrypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("could not generate wallet key: %w", err)
		}
		raw := ethcrypto.FromECDSA(candidate)
		err = operation.RetryOnConflict(s.db.Update, operation.InsertWalletPrivateKey(raw))
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, nil
		}
		return nil, err
	})
	if err != nil {
		return nil, fmt.Errorf("could not bootstrap wallet key: %w", err)
	}
	return s.retrieveWalletKey()
}

func (s *SecretManager) retrieveWalletKey() (*ecdsa.PrivateKey, error) {
	var raw []byte
	err := s.db.View(operation.RetrieveWalletPrivateKey(&raw))
	if err != nil {
		return nil, fmt.Errorf("could not retrieve wallet key: %w", err)
	}
	key, err := ethcrypto.ToECDSA(raw)
	for i := range raw {
		raw[i] = 0
	}
	if err != nil {
		return nil, fmt.Errorf("stored wallet key is invalid: %w", err)
	}
	return key, nil
}
