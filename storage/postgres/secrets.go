package postgres

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS oprf_key_material (
	key_id            BYTEA   NOT NULL,
	epoch             BIGINT  NOT NULL,
	party_id          INTEGER NOT NULL,
	threshold         INTEGER NOT NULL,
	participants      INTEGER NOT NULL,
	share             BYTEA   NOT NULL,
	public_key        BYTEA   NOT NULL,
	public_key_shares BYTEA[] NOT NULL,
	PRIMARY KEY (key_id, epoch)
);
CREATE TABLE IF NOT EXISTS oprf_wallet (
	id          SMALLINT PRIMARY KEY CHECK (id = 1),
	private_key BYTEA    NOT NULL
);`

const selectColumns = `key_id, epoch, party_id, threshold, participants, share, public_key, public_key_shares`

// SecretManager stores key material in Postgres tables. Both tables are written with
// INSERT .. ON CONFLICT DO NOTHING, so concurrent writers never replace a stored row.
type SecretManager struct {
	pool *pgxpool.Pool
}

var _ storage.SecretManager = (*SecretManager)(nil)

// NewSecretManager connects to the database and creates the tables if needed.
func NewSecretManager(ctx context.Context, connString string) (*SecretManager, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("could not connect to postgres: %w", err)
	}
	_, err = pool.Exec(ctx, schema)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("could not create schema: %w", err)
	}
	return &SecretManager{pool: pool}, nil
}

func (s *SecretManager) Close() {
	s.pool.Close()
}

func (s *SecretManager) LoadAddress(ctx context.Context) (common.Address, error) {
	key, err := s.loadWalletKey(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return ethcrypto.PubkeyToAddress(key.PublicKey), nil
}

func (s *SecretManager) LoadSecrets(ctx context.Context) (map[oprf.KeyID]*oprf.KeyMaterial, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (key_id) `+selectColumns+` FROM oprf_key_material ORDER BY key_id, epoch DESC`)
	if err != nil {
		return nil, fmt.Errorf("could not query key material: %w", err)
	}
	defer rows.Close()

	secrets := make(map[oprf.KeyID]*oprf.KeyMaterial)
	for rows.Next() {
		material, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		secrets[material.KeyID] = material
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not read key material: %w", err)
	}
	return secrets, nil
}

func (s *SecretManager) GetKeyMaterial(ctx context.Context, keyID oprf.KeyID, epoch oprf.ShareEpoch) (*oprf.KeyMaterial, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM oprf_key_material WHERE key_id = $1 AND epoch = $2`,
		keyID[:], int64(epoch))
	material, err := scanMaterial(row)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve key material for key %s epoch %d: %w", keyID, epoch, err)
	}
	return material, nil
}

func (s *SecretManager) InsertKeyMaterial(ctx context.Context, material *oprf.KeyMaterial) error {
	if err := material.Validate(); err != nil {
		return fmt.Errorf("refusing to store invalid key material: %w", err)
	}
	enc := material.Encodable()
	defer enc.Zeroize()

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO oprf_key_material (`+selectColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (key_id, epoch) DO NOTHING`,
		enc.KeyID, int64(enc.Epoch), int32(enc.PartyID), int32(enc.Threshold), int32(enc.Participants),
		enc.Share, enc.PublicKey, enc.PublicKeyShares)
	if err != nil {
		return fmt.Errorf("could not insert key material for key %s epoch %d: %w", material.KeyID, material.Epoch, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

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

func (s *SecretManager) LoadOrInsertWalletPrivateKey(ctx context.Context) (*ecdsa.PrivateKey, error) {
	candidate, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("could not generate wallet key: %w", err)
	}
	// concurrent callers race on the single row, the first insert wins and everyone
	// reads it back
	_, err = s.pool.Exec(ctx,
		`INSERT INTO oprf_wallet (id, private_key) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`,
		ethcrypto.FromECDSA(candidate))
	if err != nil {
		return nil, fmt.Errorf("could not insert wallet key: %w", err)
	}
	return s.loadWalletKey(ctx)
}

func (s *SecretManager) loadWalletKey(ctx context.Context) (*ecdsa.PrivateKey, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT private_key FROM oprf_wallet WHERE id = 1`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("could not retrieve wallet key: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("could not retrieve wallet key: %w", err)
	}
	key, err := ethcrypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("stored wallet key is invalid: %w", err)
	}
	return key, nil
}

func scanMaterial(row pgx.Row) (*oprf.KeyMaterial, error) {
	var (
		enc                              oprf.EncodableKeyMaterial
		epoch                            int64
		partyID, threshold, participants int32
	)
	err := row.Scan(&enc.KeyID, &epoch, &partyID, &threshold, &participants, &enc.Share, &enc.PublicKey, &enc.PublicKeyShares)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not scan key material: %w", err)
	}
	defer enc.Zeroize()
	enc.Epoch = uint64(epoch)
	enc.PartyID = uint16(partyID)
	enc.Threshold = uint16(threshold)
	enc.Participants = uint16(participants)
	return enc.Decode()
}
