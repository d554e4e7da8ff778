package registry

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// RegistryABI is the subset of the key registry contract used by the node.
const RegistryABI = `[
	{
		"type": "event",
		"name": "KeyGenRequested",
		"anonymous": false,
		"inputs": [
			{"name": "keyId", "type": "bytes32", "indexed": true},
			{"name": "epoch", "type": "uint64", "indexed": false},
			{"name": "threshold", "type": "uint16", "indexed": false}
		]
	},
	{
		"type": "function",
		"name": "submitPublicKey",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "keyId", "type": "bytes32"},
			{"name": "epoch", "type": "uint64"},
			{"name": "publicKey", "type": "bytes"}
		],
		"outputs": []
	}
]`

const (
	eventKeyGenRequested  = "KeyGenRequested"
	methodSubmitPublicKey = "submitPublicKey"
)

// ParsedABI returns the parsed registry ABI.
func ParsedABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(RegistryABI))
}
