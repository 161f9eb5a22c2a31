// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package receipt

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/fxamacker/cbor/v2"

	"github.com/veilvote/veilvote/models"
)

// Algorithm names the published scheme so verifiers know what to run.
const Algorithm = "secp256k1-sha256-der"

var (
	ErrBadKey = errors.New("invalid receipt signing key")

	// Receipts are encoded with Core Deterministic CBOR before hashing, so
	// signer and verifier always see byte-identical payloads.
	encMode cbor.EncMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("receipt: cbor enc mode: %v", err))
	}
}

// payload is the signed portion of a receipt.
type payload struct {
	LeafHash  string `cbor:"1,keyasint"`
	PollID    string `cbor:"2,keyasint"`
	Nullifier string `cbor:"3,keyasint"`
	Timestamp int64  `cbor:"4,keyasint"`
}

// Signer signs vote receipts with a server-held secp256k1 key. The public
// key is published; anyone holding it plus a receipt and an inclusion proof
// can confirm the server attested this exact vote, without learning who
// cast it.
type Signer struct {
	priv *btcec.PrivateKey
}

func NewSigner(privHex string) (*Signer, error) {
	raw, err := hex.DecodeString(privHex)
	if err != nil || len(raw) != 32 {
		return nil, ErrBadKey
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	return &Signer{priv: priv}, nil
}

// PublicKeyHex returns the compressed public key.
func (s *Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.priv.PubKey().SerializeCompressed())
}

// Sign completes a receipt in place, filling its Signature field.
func (s *Signer) Sign(r *models.Receipt) error {
	digest, err := digest(r)
	if err != nil {
		return err
	}
	sig := btcecdsa.Sign(s.priv, digest)
	r.Signature = hex.EncodeToString(sig.Serialize())
	return nil
}

// Verify checks a receipt signature against a compressed public key. It
// needs no server state, so any party can re-run it.
func Verify(r models.Receipt, pubKeyHex string) bool {
	pubRaw, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return false
	}
	pub, err := btcec.ParsePubKey(pubRaw)
	if err != nil {
		return false
	}

	sigRaw, err := hex.DecodeString(r.Signature)
	if err != nil {
		return false
	}
	sig, err := btcecdsa.ParseDERSignature(sigRaw)
	if err != nil {
		return false
	}

	d, err := digest(&r)
	if err != nil {
		return false
	}
	return sig.Verify(d, pub)
}

func digest(r *models.Receipt) ([]byte, error) {
	encoded, err := encMode.Marshal(payload{
		LeafHash:  r.LeafHash,
		PollID:    r.PollID,
		Nullifier: r.Nullifier,
		Timestamp: r.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode receipt payload: %w", err)
	}
	sum := sha256.Sum256(encoded)
	return sum[:], nil
}
