package operation

import (
	"encoding/binary"
	"fmt"

	"github.com/oprf-network/oprf-node/model/oprf"
)

const (
	// codes for the secrets database
	codeKeyMaterial   = 1 // (key id, epoch) -> encodable key material
	codeWalletKey     = 2 // singleton wallet private key
	codeKeyGenRecord  = 3 // (key id, epoch) -> key generation record
	codeEventCursor   = 4 // consumer name -> next block to scan
)

func makePrefix(code byte, keys ...interface{}) []byte {
	prefix := []byte{code}
	for _, key := range keys {
		prefix = append(prefix, b(key)...)
	}
	return prefix
}

func b(v interface{}) []byte {
	switch i := v.(type) {
	case uint8:
		return []byte{i}
	case uint16:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, i)
		return b
	case uint64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, i)
		return b
	case string:
		return []byte(i)
	case oprf.KeyID:
		return i[:]
	case oprf.ShareEpoch:
		return b(uint64(i))
	default:
		panic(fmt.Sprintf("unsupported type to convert (%T)", v))
	}
}
