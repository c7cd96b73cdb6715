package hashing_test

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ezchain-labs/ezchain-sim/foundation/ezchain/hashing"
)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()

	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generating key: %s", err)
	}
	return pk
}

func TestHashDeterministic(t *testing.T) {
	type sample struct {
		A int
		B string
	}

	v := sample{A: 1, B: "x"}

	h1 := hashing.Hash(v)
	h2 := hashing.Hash(v)

	if h1 != h2 {
		t.Fatalf("got different hashes for identical input: %s vs %s", h1, h2)
	}

	if h1 == hashing.Hash(sample{A: 2, B: "x"}) {
		t.Fatalf("expected different hashes for different input")
	}
}

func TestSignAndRecover(t *testing.T) {
	signer := hashing.NewECDSASigner(newKey(t))

	type payload struct {
		Value int
	}
	v := payload{Value: 42}

	sig, err := signer.Sign(v)
	if err != nil {
		t.Fatalf("sign: %s", err)
	}

	addr, err := signer.FromAddress(v, sig)
	if err != nil {
		t.Fatalf("from address: %s", err)
	}

	if addr != signer.Address() {
		t.Fatalf("got %s, exp %s", addr, signer.Address())
	}
}

func TestSignatureDigestDedup(t *testing.T) {
	signer := hashing.NewECDSASigner(newKey(t))

	sig1, _ := signer.Sign("same-value")
	sig2, _ := signer.Sign("same-value")

	if sig1.Digest() != sig2.Digest() {
		t.Fatalf("expected identical signatures over identical input to share a digest")
	}
}

func TestNaiveThresholdRejectsNonMember(t *testing.T) {
	s1 := hashing.NewECDSASigner(newKey(t))
	s2 := hashing.NewECDSASigner(newKey(t))

	v := "proposal"
	sig, _ := s2.Sign(v)

	nt := hashing.NaiveThreshold{Verifier: s1}
	ok := nt.Verify(v, map[string]hashing.Signature{s2.Address(): sig}, []string{s1.Address()})
	if ok {
		t.Fatalf("expected verification to fail for a signer outside the committee")
	}
}
