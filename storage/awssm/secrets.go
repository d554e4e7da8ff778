package awssm

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/storage"
)

const walletSecret = "wallet"

// SecretManager stores key material in AWS Secrets Manager. Every (key id, epoch) pair
// is one secret named `<prefix>/<key id>/<epoch>`, the wallet key lives under
// `<prefix>/wallet`.
type SecretManager struct {
	log       zerolog.Logger
	client    Client
	prefix    string
	bootstrap singleflight.Group
}

var _ storage.SecretManager = (*SecretManager)(nil)

func NewSecretManager(log zerolog.Logger, client Client, prefix string) *SecretManager {
	return &SecretManager{
		log:    log.With().Str("component", "aws_secret_manager").Logger(),
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
	}
}

func (s *SecretManager) materialName(keyID oprf.KeyID, epoch oprf.ShareEpoch) string {
	return fmt.Sprintf("%s/%s/%d", s.prefix, keyID, epoch)
}

func (s *SecretManager) LoadAddress(ctx context.Context) (common.Address, error) {
	key, err := s.loadWalletKey(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return ethcrypto.PubkeyToAddress(key.PublicKey), nil
}

func (s *SecretManager) LoadSecrets(ctx context.Context) (map[oprf.KeyID]*oprf.KeyMaterial, error) {
	latest := make(map[oprf.KeyID]oprf.ShareEpoch)
	input := &secretsmanager.ListSecretsInput{
		Filters: []types.Filter{{
			Key:    types.FilterNameStringTypeName,
			Values: []string{s.prefix + "/"},
		}},
	}
	for {
		out, err := s.client.ListSecrets(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("could not list secrets: %w", err)
		}
		for _, entry := range out.SecretList {
			keyID, epoch, ok := s.parseName(aws.ToString(entry.Name))
			if !ok {
				continue
			}
			if current, seen := latest[keyID]; !seen || epoch > current {
				latest[keyID] = epoch
			}
		}
		if out.NextToken == nil {
			break
		}
		input.NextToken = out.NextToken
	}

	secrets := make(map[oprf.KeyID]*oprf.KeyMaterial, len(latest))
	for keyID, epoch := range latest {
		material, err := s.GetKeyMaterial(ctx, keyID, epoch)
		if err != nil {
			return nil, err
		}
		secrets[keyID] = material
	}
	return secrets, nil
}

// parseName extracts the (key id, epoch) pair from a secret name. Names that do not
// belong to key material, such as the wallet secret, are skipped.
func (s *SecretManager) parseName(name string) (oprf.KeyID, oprf.ShareEpoch, bool) {
	rest, ok := strings.CutPrefix(name, s.prefix+"/")
	if !ok {
		return oprf.KeyID{}, 0, false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		return oprf.KeyID{}, 0, false
	}
	keyID, err := oprf.HexToKeyID(parts[0])
	if err != nil {
		s.log.Warn().Str("secret", name).Msg("skipping secret with malformed key id")
		return oprf.KeyID{}, 0, false
	}
	epoch, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		s.log.Warn().Str("secret", name).Msg("skipping secret with malformed epoch")
		return oprf.KeyID{}, 0, false
	}
	return keyID, oprf.ShareEpoch(epoch), true
}

func (s *SecretManager) GetKeyMaterial(ctx context.Context, keyID oprf.KeyID, epoch oprf.ShareEpoch) (*oprf.KeyMaterial, error) {
	value, err := s.getSecret(ctx, s.materialName(keyID, epoch))
	if err != nil {
		return nil, fmt.Errorf("could not retrieve key material for key %s epoch %d: %w", keyID, epoch, err)
	}
	var enc oprf.EncodableKeyMaterial
	err = json.Unmarshal([]byte(value), &enc)
	if err != nil {
		return nil, fmt.Errorf("could not decode key material for key %s epoch %d: %w", keyID, epoch, err)
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
	value, err := json.Marshal(enc)
	if err != nil {
		return fmt.Errorf("could not encode key material: %w", err)
	}

	name := s.materialName(material.KeyID, material.Epoch)
	err = s.createSecret(ctx, name, string(value))
	if errors.Is(err, storage.ErrAlreadyExists) {
		stored, err := s.GetKeyMaterial(ctx, material.KeyID, material.Epoch)
		if err != nil {
			return err
		}
		defer stored.Zeroize()
		if !stored.Equal(material) {
			return fmt.Errorf("key material for key %s epoch %d differs: %w", material.KeyID, material.Epoch, storage.ErrDataMismatch)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not insert key material for key %s epoch %d: %w", material.KeyID, material.Epoch, err)
	}
	return nil
}

func (s *SecretManager) LoadOrInsertWalletPrivateKey(ctx context.Context) (*ecdsa.PrivateKey, error) {
	key, err := s.loadWalletKey(ctx)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	_, err, _ = s.bootstrap.Do(walletSecret, func() (interface{}, error) {
		candidate, err := ethcrypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("could not generate wallet key: %w", err)
		}
		err = s.createSecret(ctx, s.prefix+"/"+walletSecret, hex.EncodeToString(ethcrypto.FromECDSA(candidate)))
		if errors.Is(err, storage.ErrAlreadyExists) {
			// another node process won the race
			return nil, nil
		}
		if err == nil {
			s.log.Info().Str("address", ethcrypto.PubkeyToAddress(candidate.PublicKey).Hex()).Msg("created wallet key")
		}
		return nil, err
	})
	if err != nil {
		return nil, fmt.Errorf("could not bootstrap wallet key: %w", err)
	}
	return s.loadWalletKey(ctx)
}

func (s *SecretManager) loadWalletKey(ctx context.Context) (*ecdsa.PrivateKey, error) {
	value, err := s.getSecret(ctx, s.prefix+"/"+walletSecret)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve wallet key: %w", err)
	}
	key, err := ethcrypto.HexToECDSA(value)
	if err != nil {
		return nil, fmt.Errorf("stored wallet key is invalid: %w", err)
	}
	return key, nil
}

func (s *SecretManager) getSecret(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return aws.ToString(out.SecretString), nil
}

func (s *SecretManager) createSecret(ctx context.Context, name, value string) error {
	_, err := s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		SecretString: aws.String(value),
	})
	var exists *types.ResourceExistsException
	if errors.As(err, &exists) {
		return storage.ErrAlreadyExists
	}
	return err
}
