package oprf_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/utils/unittest"
)

func TestHexToKeyID(t *testing.T) {
	id, err := oprf.HexToKeyID("0x0102")
	require.NoError(t, err)
	assert.Equal(t, byte(1), id[30])
	assert.Equal(t, byte(2), id[31])
	assert.Equal(t, strings.Repeat("00", 30)+"0102", id.String())

	// odd length inputs are left-padded
	odd, err := oprf.HexToKeyID("102")
	require.NoError(t, err)
	assert.Equal(t, id, odd)

	_, err = oprf.HexToKeyID("zz")
	require.Error(t, err)
	_, err = oprf.HexToKeyID(strings.Repeat("ab", 33))
	require.Error(t, err)
}

func TestKeyID_JSON(t *testing.T) {
	id := unittest.KeyIDFixture()
	encoded, err := json.Marshal(struct{ Key oprf.KeyID }{id})
	require.NoError(t, err)
	assert.Contains(t, string(encoded), id.String())

	var decoded struct{ Key oprf.KeyID }
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, id, decoded.Key)
}

func TestKeyIDFromLabel(t *testing.T) {
	assert.Equal(t, oprf.KeyIDFromLabel("relying-party"), oprf.KeyIDFromLabel("relying-party"))
	assert.NotEqual(t, oprf.KeyIDFromLabel("relying-party"), oprf.KeyIDFromLabel("other"))
	assert.NotEqual(t, oprf.ZeroKeyID, oprf.KeyIDFromLabel(""))
}

func TestKeyIDFromBytes(t *testing.T) {
	_, err := oprf.KeyIDFromBytes(make([]byte, 31))
	require.Error(t, err)
	id, err := oprf.KeyIDFromBytes(make([]byte, 32))
	require.NoError(t, err)
	assert.Equal(t, oprf.ZeroKeyID, id)
}
