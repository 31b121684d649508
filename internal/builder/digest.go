package builder

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/snapcoin/snapwallet/internal/crypto"
	"github.com/snapcoin/snapwallet/internal/model"
)

// digestMagic versions the canonical serialization.
var digestMagic = []byte("snaptx/1")

// Digest is the canonical signing digest: it commits to every input, every
// output and the fee, so nothing can be altered after signing without
// invalidating every witness.
func Digest(tx *model.UnsignedTransaction) chainhash.Hash {
	var buf bytes.Buffer
	buf.Write(digestMagic)

	writeUint32(&buf, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf.Write(in.TxID[:])
		writeUint32(&buf, in.Index)
		writeUint64(&buf, in.Amount)
		writeString(&buf, in.Address)
	}

	writeUint32(&buf, uint32(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		writeString(&buf, out.Address)
		writeUint64(&buf, out.Amount)
	}

	writeUint64(&buf, tx.Fee)
	return crypto.Hash(buf.Bytes())
}

// txid hashes the signed serialization: the digest preimage plus witnesses.
func txid(tx *model.UnsignedTransaction, witnesses []model.InputWitness) chainhash.Hash {
	digest := Digest(tx)

	var buf bytes.Buffer
	buf.Write(digest[:])
	writeUint32(&buf, uint32(len(witnesses)))
	for _, w := range witnesses {
		writeBytes(&buf, w.PublicKey)
		writeBytes(&buf, w.Signature)
	}
	return crypto.Hash(buf.Bytes())
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUint32(buf, uint32(len(b)))
	buf.Write(b)
}
