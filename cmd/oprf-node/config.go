package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module"
)

const (
	backendBadger   = "badger"
	backendAWS      = "aws"
	backendPostgres = "postgres"

	authNone   = "none"
	authSigned = "signed"
)

// ParsePeers parses the committee from entries of the form <wallet address>@<url>. The
// position of an entry is the party id of the peer minus one. Peer urls must use https
// unless allowInsecure is set.
func ParsePeers(entries []string, allowInsecure bool) ([]module.DKGParticipant, error) {
	committee := make([]module.DKGParticipant, 0, len(entries))
	seen := make(map[common.Address]struct{}, len(entries))
	for i, entry := range entries {
		address, rawURL, ok := strings.Cut(strings.TrimSpace(entry), "@")
		if !ok {
			return nil, fmt.Errorf("peer %q: expected <address>@<url>", entry)
		}
		if !common.IsHexAddress(address) {
			return nil, fmt.Errorf("peer %q: invalid address", entry)
		}
		u, err := url.Parse(rawURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("peer %q: invalid url", entry)
		}
		if u.Scheme == "http" && !allowInsecure {
			return nil, fmt.Errorf("peer %q: plain http is only accepted with --insecure-peers", entry)
		}
		addr := common.HexToAddress(address)
		if _, dup := seen[addr]; dup {
			return nil, fmt.Errorf("peer %q: duplicate address", entry)
		}
		seen[addr] = struct{}{}
		committee = append(committee, module.DKGParticipant{
			PartyID: oprf.PartyID(i + 1),
			Address: addr,
			URL:     strings.TrimSuffix(rawURL, "/"),
		})
	}
	return committee, nil
}

// FindParty returns the party id of the peer with the given wallet address.
func FindParty(committee []module.DKGParticipant, address common.Address) (oprf.PartyID, error) {
	for _, participant := range committee {
		if participant.Address == address {
			return participant.PartyID, nil
		}
	}
	return 0, fmt.Errorf("wallet address %s is not part of the committee", address.Hex())
}

// ParseSigners parses the allow-list of the signed authenticator from entries of the
// form <signer address>=<key id>.
func ParseSigners(entries []string) (map[common.Address]oprf.KeyID, error) {
	signers := make(map[common.Address]oprf.KeyID, len(entries))
	for _, entry := range entries {
		address, rawKeyID, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || !common.IsHexAddress(address) {
			return nil, fmt.Errorf("signer %q: expected <address>=<key id>", entry)
		}
		keyID, err := oprf.HexToKeyID(rawKeyID)
		if err != nil {
			return nil, fmt.Errorf("signer %q: %w", entry, err)
		}
		signers[common.HexToAddress(address)] = keyID
	}
	return signers, nil
}
