package awssm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/storage"
	"github.com/oprf-network/oprf-node/utils/unittest"
)

// fakeClient is an in-memory Secrets Manager that pages ListSecrets two entries at a time.
type fakeClient struct {
	mu      sync.Mutex
	secrets map[string]string
}

func newFakeClient() *fakeClient {
	return &fakeClient{secrets: make(map[string]string)}
}

func (f *fakeClient) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.secrets[aws.ToString(params.SecretId)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
	}
	return &secretsmanager.GetSecretValueOutput{Name: params.SecretId, SecretString: aws.String(value)}, nil
}

func (f *fakeClient) CreateSecret(_ context.Context, params *secretsmanager.CreateSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.Name)
	if _, ok := f.secrets[name]; ok {
		return nil, &types.ResourceExistsException{Message: aws.String("exists")}
	}
	f.secrets[name] = aws.ToString(params.SecretString)
	return &secretsmanager.CreateSecretOutput{Name: params.Name}, nil
}

func (f *fakeClient) ListSecrets(_ context.Context, params *secretsmanager.ListSecretsInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := params.Filters[0].Values[0]
	var names []string
	for name := range f.secrets {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	start := 0
	if params.NextToken != nil {
		_, err := fmt.Sscanf(*params.NextToken, "%d", &start)
		if err != nil {
			return nil, err
		}
	}
	end := start + 2
	out := &secretsmanager.ListSecretsOutput{}
	if end < len(names) {
		out.NextToken = aws.String(fmt.Sprintf("%d", end))
	} else {
		end = len(names)
	}
	for _, name := range names[start:end] {
		out.SecretList = append(out.SecretList, types.SecretListEntry{Name: aws.String(name)})
	}
	return out, nil
}

func TestSecretManager_KeyMaterial(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := NewSecretManager(zerolog.Nop(), client, "oprf/node-1/")

	keyID := unittest.KeyIDFixture()
	materials, _ := unittest.KeyMaterialFixtures(t, keyID, 4, 2, 3)
	conflicting, _ := unittest.KeyMaterialFixtures(t, keyID, 4, 2, 3)

	_, err := store.GetKeyMaterial(ctx, keyID, 4)
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.InsertKeyMaterial(ctx, materials[0]))
	require.NoError(t, store.InsertKeyMaterial(ctx, materials[0]))
	require.ErrorIs(t, store.InsertKeyMaterial(ctx, conflicting[0]), storage.ErrDataMismatch)

	assert.Contains(t, client.secrets, fmt.Sprintf("oprf/node-1/%s/4", keyID))

	actual, err := store.GetKeyMaterial(ctx, keyID, 4)
	require.NoError(t, err)
	assert.True(t, materials[0].Equal(actual))
}

func TestSecretManager_LoadSecretsAcrossPages(t *testing.T) {
	ctx := context.Background()
	store := NewSecretManager(zerolog.Nop(), newFakeClient(), "oprf")

	keyA := unittest.KeyIDFixture()
	keyB := unittest.KeyIDFixture()
	for _, epoch := range []oprf.ShareEpoch{2, 10, 9} {
		materials, _ := unittest.KeyMaterialFixtures(t, keyA, epoch, 2, 3)
		require.NoError(t, store.InsertKeyMaterial(ctx, materials[0]))
	}
	materials, _ := unittest.KeyMaterialFixtures(t, keyB, 1, 3, 5)
	require.NoError(t, store.InsertKeyMaterial(ctx, materials[4]))
	_, err := store.LoadOrInsertWalletPrivateKey(ctx)
	require.NoError(t, err)

	secrets, err := store.LoadSecrets(ctx)
	require.NoError(t, err)
	require.Len(t, secrets, 2)
	assert.Equal(t, oprf.ShareEpoch(10), secrets[keyA].Epoch)
	assert.True(t, materials[4].Equal(secrets[keyB]))
}

func TestSecretManager_WalletBootstrap(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := NewSecretManager(zerolog.Nop(), client, "oprf")

	_, err := store.LoadAddress(ctx)
	require.ErrorIs(t, err, storage.ErrNotFound)

	first, err := store.LoadOrInsertWalletPrivateKey(ctx)
	require.NoError(t, err)

	// a second node process sharing the secret converges on the same key
	other := NewSecretManager(zerolog.Nop(), client, "oprf")
	second, err := other.LoadOrInsertWalletPrivateKey(ctx)
	require.NoError(t, err)
	assert.True(t, first.Equal(second))

	address, err := other.LoadAddress(ctx)
	require.NoError(t, err)
	assert.Equal(t, ethcrypto.PubkeyToAddress(first.PublicKey), address)
}
