package oprf

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oprf-network/oprf-node/crypto"
	"github.com/oprf-network/oprf-node/engine/oprf/auth"
	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module"
	"github.com/oprf-network/oprf-node/module/connector"
	"github.com/oprf-network/oprf-node/module/dkg"
	"github.com/oprf-network/oprf-node/module/metrics"
	"github.com/oprf-network/oprf-node/module/toprf"
	badgerstorage "github.com/oprf-network/oprf-node/storage/badger"
	"github.com/oprf-network/oprf-node/storage/cache"
	"github.com/oprf-network/oprf-node/utils/unittest"
)

const testModule = "test"

// startNodes serves one evaluator per key material, each backed by its own cached
// badger store, and returns the node addresses in party order.
func startNodes(t *testing.T, materials []*oprf.KeyMaterial) []*httptest.Server {
	servers := make([]*httptest.Server, len(materials))
	for i, material := range materials {
		dir := unittest.TempDir(t)
		db := unittest.BadgerDB(t, dir)
		t.Cleanup(func() {
			require.NoError(t, db.Close())
			require.NoError(t, os.RemoveAll(dir))
		})

		secrets, err := cache.NewSecretManager(badgerstorage.NewSecretManager(db), metrics.NewNoopCollector(), 16)
		require.NoError(t, err)
		require.NoError(t, secrets.InsertKeyMaterial(context.Background(), material))

		evaluator := NewEvaluator(zerolog.Nop(), secrets, auth.NewPassThrough(), metrics.NewNoopCollector(), rand.Reader, DefaultConfig())
		router := mux.NewRouter()
		router.Handle(connector.Path, NewHandler(zerolog.Nop(), evaluator, time.Second))

		servers[i] = httptest.NewServer(router)
		t.Cleanup(servers[i].Close)
	}
	return servers
}

func addresses(servers []*httptest.Server) []string {
	services := make([]string, len(servers))
	for i, server := range servers {
		services[i] = server.URL
	}
	return services
}

// generateKeyMaterials runs a key generation among size in-process nodes and returns
// their key material in party order, together with the shared secret.
func generateKeyMaterials(t *testing.T, keyID oprf.KeyID, epoch oprf.ShareEpoch, threshold, size int) ([]*oprf.KeyMaterial, *crypto.Scalar) {
	committee := make([]module.DKGParticipant, size)
	keys := make([]*ecdsa.PrivateKey, size)
	for i := range committee {
		key, err := ethcrypto.GenerateKey()
		require.NoError(t, err)
		keys[i] = key
		committee[i] = module.DKGParticipant{PartyID: oprf.PartyID(i + 1), Address: ethcrypto.PubkeyToAddress(key.PublicKey)}
	}

	hub := dkg.NewHub()
	request := oprf.KeyGenRequest{KeyID: keyID, Epoch: epoch, Threshold: uint16(threshold)}
	controllers := make([]module.DKGController, size)
	for i := range committee {
		party := oprf.PartyID(i + 1)
		tunnel := dkg.NewBrokerTunnel(zerolog.Nop())
		factory, err := dkg.NewControllerFactory(zerolog.Nop(), committee, party, keys[i], hub.Attach(party, tunnel), tunnel, dkg.ControllerConfig{RoundTimeout: 5 * time.Second})
		require.NoError(t, err)
		controllers[i], err = factory.Create(request)
		require.NoError(t, err)
	}

	materials := make([]*oprf.KeyMaterial, size)
	errs := make([]error, size)
	var wg sync.WaitGroup
	for i, controller := range controllers {
		wg.Add(1)
		go func(i int, controller module.DKGController) {
			defer wg.Done()
			materials[i], errs[i] = controller.Run(context.Background())
		}(i, controller)
	}
	unittest.RequireReturnsBefore(t, wg.Wait, 20*time.Second, "key generation did not finish")
	for i, controller := range controllers {
		controller.Shutdown()
		require.NoError(t, errs[i], "party %d", i+1)
	}

	parties := make([]uint16, threshold)
	shares := make([]*crypto.Scalar, threshold)
	for i := range parties {
		parties[i] = uint16(i + 1)
		shares[i] = materials[i].Share
	}
	coefficients, err := crypto.LagrangeCoefficients(parties)
	require.NoError(t, err)
	secret, err := crypto.CombineScalars(shares, coefficients)
	require.NoError(t, err)
	require.True(t, crypto.MulGen(secret).Equal(materials[0].PublicKey))
	return materials, secret
}

func TestDistributedEvaluation(t *testing.T) {
	keyID := unittest.KeyIDFixture()
	materials, secret := generateKeyMaterials(t, keyID, 1, 3, 5)
	servers := startNodes(t, materials)
	services := addresses(servers)
	conn := connector.NewWebsocketConnector(false, nil)

	query := crypto.QueryFromBytes([]byte("hello"))
	expected := crypto.Finalize(query, crypto.Evaluate(secret, query))

	evaluate := func(services []string) (*oprf.VerifiableOutput, error) {
		ctx, cancel := context.WithTimeout(context.Background(), unittest.DefaultTimeout)
		defer cancel()
		return toprf.DistributedOPRF(ctx, zerolog.Nop(), services, testModule, 3, keyID, 1, query, nil, rand.Reader, conn)
	}

	t.Run("all nodes", func(t *testing.T) {
		output, err := evaluate(services)
		require.NoError(t, err)
		assert.True(t, output.Output.Equal(expected))
		assert.True(t, output.Verify())
		assert.True(t, output.PublicKey.Equal(materials[0].PublicKey))
	})

	t.Run("any two nodes unreachable", func(t *testing.T) {
		for i := 0; i < len(services); i++ {
			for j := i + 1; j < len(services); j++ {
				partial := append([]string(nil), services...)
				partial[i] = "127.0.0.1:1"
				partial[j] = "127.0.0.1:1"
				output, err := evaluate(partial)
				require.NoError(t, err, "nodes %d and %d unreachable", i+1, j+1)
				assert.True(t, output.Output.Equal(expected), "nodes %d and %d unreachable", i+1, j+1)
				assert.True(t, output.Verify())
			}
		}
	})

	t.Run("three nodes unreachable", func(t *testing.T) {
		partial := append([]string(nil), services...)
		partial[0] = "127.0.0.1:1"
		partial[2] = "127.0.0.1:1"
		partial[4] = "127.0.0.1:1"
		_, err := evaluate(partial)
		require.ErrorIs(t, err, toprf.ErrThresholdNotMet)
	})

	t.Run("unknown epoch", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), unittest.DefaultTimeout)
		defer cancel()
		_, err := toprf.DistributedOPRF(ctx, zerolog.Nop(), services, testModule, 3, keyID, 2, query, nil, rand.Reader, conn)
		require.ErrorIs(t, err, toprf.ErrThresholdNotMet)
		var msg *oprf.ErrorMessage
		require.ErrorAs(t, err, &msg)
		assert.Equal(t, oprf.ErrCodeNotFound, msg.Code)
	})
}

func TestHandler_MissingModule(t *testing.T) {
	materials, _ := unittest.KeyMaterialFixtures(t, unittest.KeyIDFixture(), 1, 2, 3)
	servers := startNodes(t, materials[:1])

	resp, err := http.Get(servers[0].URL + connector.Path)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_ModuleMismatch(t *testing.T) {
	materials, _ := unittest.KeyMaterialFixtures(t, unittest.KeyIDFixture(), 1, 2, 3)
	servers := startNodes(t, materials[:1])

	endpoint, err := connector.EndpointURL(servers[0].URL, testModule, false)
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	require.NoError(t, err)
	defer conn.Close()

	blinding, err := crypto.NewBlindingFactor(rand.Reader)
	require.NoError(t, err)
	blinded, err := blinding.Blind(unittest.QueryFixture())
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(&oprf.OprfRequest{
		RequestID:    uuid.New(),
		Module:       "other",
		KeyID:        materials[0].KeyID,
		Epoch:        materials[0].Epoch,
		BlindedQuery: blinded.Encode(),
	}))
	var msg oprf.ServerMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.NotNil(t, msg.Error)
	assert.Equal(t, oprf.ErrCodeInvalidRequest, msg.Error.Code)
	assert.True(t, strings.Contains(msg.Error.Message, "other"))
}
