package crypto

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// Hash is the network content hash: double SHA-256.
func Hash(b []byte) chainhash.Hash {
	return chainhash.DoubleHashH(b)
}
