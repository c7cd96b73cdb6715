// Package hashing provides the cryptographic primitives the rest of the
// simulator treats as an external collaborator: content hashing, signing
// of CC consensus messages, and the threshold-signature gate the CC consensus engine
// quorum-checks against. The simulator core never reasons about key
// material directly, only about the Hash/Signer/ThresholdSigner contracts
// defined here, so a production deployment can swap in real aggregate
// signatures without touching node or consensus code.
package hashing

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash is returned for values that fail to marshal.
const ZeroHash string = "0x0000000000000000000000000000000000000000000000000000000000"

// stampID disambiguates EZchain signed payloads from any other protocol
// that happens to share the underlying ECDSA curve, the same role the
// ardanID stamp played in the teacher's signature package.
const stampID = 41

// Hash returns a stable hex-encoded digest for value. The digest is over
// the JSON encoding of value; encoding/json writes map keys in sorted
// order, so Hash is deterministic for identical inputs.
func Hash(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	sum := crypto.Keccak256(data)
	return hexutil.Encode(sum[:20])
}

// HashBytes returns a stable hex-encoded digest of raw bytes, used for
// the batch digest (§3: "the hash is over the transaction bytes only,
// excluding proofs").
func HashBytes(data []byte) string {
	sum := crypto.Keccak256(data)
	return hexutil.Encode(sum[:20])
}

// =============================================================================

// Signer signs arbitrary protocol values on behalf of one node. In this
// module only CC consensus messages are signed through it.
type Signer interface {
	Sign(value any) (Signature, error)
	Address() string
}

// Verifier checks a Signature against the value it claims to cover and
// returns the signer's address.
type Verifier interface {
	FromAddress(value any, sig Signature) (string, error)
}

// Signature is the [V|R|S] form of an ECDSA signature, the same
// representation the teacher's signature package round-trips through
// hex strings.
type Signature struct {
	V *big.Int `json:"v"`
	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
}

// Digest returns the content address of the signature itself. CC quorum
// collection does not use it; it keys collected signatures by signer
// address.
func (s Signature) Digest() string {
	return Hash(s)
}

// ECDSASigner is the default Signer/Verifier implementation, standing in
// for the spec's out-of-scope "concrete cryptographic ... signature
// primitives" collaborator.
type ECDSASigner struct {
	privateKey *ecdsa.PrivateKey
	address    string
}

// NewECDSASigner constructs a signer bound to privateKey.
func NewECDSASigner(privateKey *ecdsa.PrivateKey) ECDSASigner {
	return ECDSASigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey).String(),
	}
}

// GenerateECDSASigner constructs a signer bound to a freshly generated
// key, for callers (such as a simulated node at startup) that have no
// existing key material to load.
func GenerateECDSASigner() (ECDSASigner, error) {
	pk, err := crypto.GenerateKey()
	if err != nil {
		return ECDSASigner{}, err
	}
	return NewECDSASigner(pk), nil
}

// Address returns the signer's account address.
func (s ECDSASigner) Address() string {
	return s.address
}

// Sign produces a signature over value.
func (s ECDSASigner) Sign(value any) (Signature, error) {
	data, err := stamp(value)
	if err != nil {
		return Signature{}, err
	}

	sig, err := crypto.Sign(data, s.privateKey)
	if err != nil {
		return Signature{}, err
	}

	r := new(big.Int).SetBytes(sig[:32])
	ss := new(big.Int).SetBytes(sig[32:64])
	v := new(big.Int).SetBytes([]byte{sig[64] + stampID})

	return Signature{V: v, R: r, S: ss}, nil
}

// FromAddress recovers the address that produced sig over value.
func (s ECDSASigner) FromAddress(value any, sig Signature) (string, error) {
	data, err := stamp(value)
	if err != nil {
		return "", err
	}

	uintV := sig.V.Uint64() - stampID
	if uintV != 0 && uintV != 1 {
		return "", errors.New("hashing: invalid recovery id")
	}

	raw := make([]byte, crypto.SignatureLength)
	rBytes, sBytes := sig.R.Bytes(), sig.S.Bytes()
	copy(raw[32-len(rBytes):32], rBytes)
	copy(raw[64-len(sBytes):64], sBytes)
	raw[64] = byte(uintV)

	publicKey, err := crypto.SigToPub(data, raw)
	if err != nil {
		return "", err
	}

	return crypto.PubkeyToAddress(*publicKey).String(), nil
}

func stamp(value any) ([]byte, error) {
	v, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	txHash := crypto.Keccak256(v)
	prefix := []byte("\x19EZchain Signed Message:\n32")
	return crypto.Keccak256(prefix, txHash), nil
}

// =============================================================================

// ThresholdSigner aggregates per-member signatures into a single quorum
// certificate once enough distinct signers have contributed, gating the
// SIGNING/FINAL_SIGNING states of the CC consensus engine (spec I6).
//
// A real deployment would back this with BLS or another aggregate
// scheme; NaiveThreshold stands in for that out-of-scope primitive the
// same way ECDSASigner stands in for per-tx signing.
type ThresholdSigner interface {
	// Verify reports whether sigs, keyed by signer address, constitute a
	// valid quorum certificate over value for the given committee.
	Verify(value any, sigs map[string]Signature, committee []string) bool
}

// NaiveThreshold verifies each member signature independently and
// accepts the set as a quorum once it has been told to by the caller's
// own count check (spec's >|C|/2 threshold lives in consensus, not
// here — this type only validates that every claimed signer really did
// sign).
type NaiveThreshold struct {
	Verifier Verifier
}

// Verify checks every signature in sigs individually against value and
// the claimed signer in the map key.
func (n NaiveThreshold) Verify(value any, sigs map[string]Signature, committee []string) bool {
	members := make(map[string]struct{}, len(committee))
	for _, m := range committee {
		members[m] = struct{}{}
	}

	for claimedAddr, sig := range sigs {
		if _, ok := members[claimedAddr]; !ok {
			return false
		}

		addr, err := n.Verifier.FromAddress(value, sig)
		if err != nil || addr != claimedAddr {
			return false
		}
	}

	return true
}
