package section

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// sectionKeyDomain separates section-key signatures from any other use of
// the same curve, so a signature produced for one purpose can never be
// replayed as if it were produced for another.
const sectionKeyDomain = "xornet-section-key-v1"

var (
	blsInitOnce sync.Once
	g1Gen       bls12381.G1Affine
	g2Gen       bls12381.G2Affine
)

func initBLS() {
	blsInitOnce.Do(func() {
		_, _, g1Gen, g2Gen = bls12381.Generators()
	})
}

// SectionSecretKey is a BLS12-381 secret key scalar: either a section's
// single simulated secret (LocalKeyGen) or one elder's threshold share.
type SectionSecretKey struct {
	scalar fr.Element
}

// SectionPublicKey is a section's BLS public key: the proof chain's tip
// key, under which the next key rotation's KeyInfo must be signed.
type SectionPublicKey struct {
	point bls12381.G2Affine
}

// SectionSignature is a detached BLS signature over arbitrary bytes —
// for example a KeyInfo's canonical serialization (proof chain links) or a
// value's canonical bytes (Proven[T] values signed under a section key).
type SectionSignature struct {
	point bls12381.G1Affine
}

// GenerateSectionKey produces a fresh random secret/public key pair.
func GenerateSectionKey() (SectionSecretKey, SectionPublicKey, error) {
	initBLS()
	var sk fr.Element
	if _, err := sk.SetRandom(); err != nil {
		return SectionSecretKey{}, SectionPublicKey{}, fmt.Errorf("section: generate key: %w", err)
	}
	secret := SectionSecretKey{scalar: sk}
	return secret, secret.Public(), nil
}

// Public derives the public key for this secret key.
func (sk SectionSecretKey) Public() SectionPublicKey {
	initBLS()
	var big big.Int
	sk.scalar.BigInt(&big)
	var pk bls12381.G2Affine
	pk.ScalarMultiplication(&g2Gen, &big)
	return SectionPublicKey{point: pk}
}

// Sign produces a detached BLS signature over msg.
func (sk SectionSecretKey) Sign(msg []byte) SectionSignature {
	initBLS()
	h := hashToG1(msg)
	var scalarBig big.Int
	sk.scalar.BigInt(&scalarBig)
	var sig bls12381.G1Affine
	sig.ScalarMultiplication(&h, &scalarBig)
	return SectionSignature{point: sig}
}

// Verify checks that sig is a valid BLS signature by pk over msg.
func (pk SectionPublicKey) Verify(msg []byte, sig SectionSignature) bool {
	initBLS()
	h := hashToG1(msg)
	var negPk bls12381.G2Affine
	negPk.Neg(&pk.point)
	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{sig.point, h},
		[]bls12381.G2Affine{g2Gen, negPk},
	)
	return err == nil && ok
}

// Bytes returns the compressed G1 encoding of the signature, used for wire
// transmission and as the input to partial_signature-style truncation.
func (sig SectionSignature) Bytes() [48]byte {
	return sig.point.Bytes()
}

// SignatureFromBytes decodes a compressed G1 point produced by
// SectionSignature.Bytes.
func SignatureFromBytes(b [48]byte) (SectionSignature, error) {
	var point bls12381.G1Affine
	if _, err := point.SetBytes(b[:]); err != nil {
		return SectionSignature{}, fmt.Errorf("section: signature from bytes: %w", err)
	}
	return SectionSignature{point: point}, nil
}

// Equal reports whether two section public keys are the same curve point.
func (pk SectionPublicKey) Equal(other SectionPublicKey) bool {
	return pk.point.Equal(&other.point)
}

// Bytes returns the compressed G2 encoding of the public key, used as the
// map key in CheckTrust and for wire serialization.
func (pk SectionPublicKey) Bytes() [96]byte {
	return pk.point.Bytes()
}

// PublicKeyFromBytes decodes a compressed G2 point produced by
// SectionPublicKey.Bytes.
func PublicKeyFromBytes(b [96]byte) (SectionPublicKey, error) {
	var point bls12381.G2Affine
	if _, err := point.SetBytes(b[:]); err != nil {
		return SectionPublicKey{}, fmt.Errorf("section: public key from bytes: %w", err)
	}
	return SectionPublicKey{point: point}, nil
}

// MarshalJSON encodes the public key as a hex string, since its underlying
// curve point has no exported fields for encoding/json to reflect over.
func (pk SectionPublicKey) MarshalJSON() ([]byte, error) {
	b := pk.Bytes()
	return json.Marshal(hex.EncodeToString(b[:]))
}

// UnmarshalJSON decodes a public key encoded by MarshalJSON.
func (pk *SectionPublicKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("section: unmarshal public key: %w", err)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("section: unmarshal public key: %w", err)
	}
	var arr [96]byte
	if len(raw) != len(arr) {
		return fmt.Errorf("section: unmarshal public key: want %d bytes, got %d", len(arr), len(raw))
	}
	copy(arr[:], raw)
	decoded, err := PublicKeyFromBytes(arr)
	if err != nil {
		return err
	}
	*pk = decoded
	return nil
}

// MarshalJSON encodes the signature as a hex string, for the same reason
// SectionPublicKey does.
func (sig SectionSignature) MarshalJSON() ([]byte, error) {
	b := sig.Bytes()
	return json.Marshal(hex.EncodeToString(b[:]))
}

// UnmarshalJSON decodes a signature encoded by MarshalJSON.
func (sig *SectionSignature) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("section: unmarshal signature: %w", err)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("section: unmarshal signature: %w", err)
	}
	var arr [48]byte
	if len(raw) != len(arr) {
		return fmt.Errorf("section: unmarshal signature: want %d bytes, got %d", len(arr), len(raw))
	}
	copy(arr[:], raw)
	decoded, err := SignatureFromBytes(arr)
	if err != nil {
		return err
	}
	*sig = decoded
	return nil
}

// hashToG1 maps an arbitrary message to a point on the G1 curve, prefixed
// with the section-key domain tag so signatures cannot be confused with
// any other curve use in the process.
func hashToG1(message []byte) bls12381.G1Affine {
	h := sha256.New()
	h.Write([]byte(sectionKeyDomain))
	h.Write(message)

	var counter uint64
	for {
		h2 := sha256.New()
		h2.Write(h.Sum(nil))
		binary.Write(h2, binary.BigEndian, counter)
		hash := h2.Sum(nil)

		var point bls12381.G1Affine
		if _, err := point.SetBytes(hash); err == nil && !point.IsInfinity() {
			return point
		}

		var scalar fr.Element
		scalar.SetBytes(hash)
		var scalarBig big.Int
		scalar.BigInt(&scalarBig)
		var result bls12381.G1Affine
		result.ScalarMultiplication(&g1Gen, &scalarBig)
		if !result.IsInfinity() {
			return result
		}
		counter++
		if counter > 1000 {
			return g1Gen
		}
	}
}

// --- simplified threshold key generation (Shamir over fr.Element) ---

// KeyShare is one elder's share of a section's threshold secret key: the
// evaluation of a degree-(threshold-1) polynomial at x = Index.
type KeyShare struct {
	Index  int
	Secret SectionSecretKey
}

// splitSecret distributes secret across n shares with a (threshold)-of-n
// reconstruction requirement, following the classic Shamir scheme: pick
// threshold-1 random coefficients, the shares are the polynomial evaluated
// at x = 1..n.
func splitSecret(secret fr.Element, threshold, n int) ([]KeyShare, error) {
	if threshold < 1 || threshold > n {
		return nil, errors.New("section: invalid threshold for key split")
	}
	coeffs := make([]fr.Element, threshold)
	coeffs[0] = secret
	for i := 1; i < threshold; i++ {
		if _, err := coeffs[i].SetRandom(); err != nil {
			return nil, fmt.Errorf("section: split secret: %w", err)
		}
	}
	shares := make([]KeyShare, n)
	for i := 1; i <= n; i++ {
		var x, acc, term fr.Element
		x.SetUint64(uint64(i))
		acc.SetZero()
		var xPow fr.Element
		xPow.SetOne()
		for _, c := range coeffs {
			term.Mul(&c, &xPow)
			acc.Add(&acc, &term)
			xPow.Mul(&xPow, &x)
		}
		shares[i-1] = KeyShare{Index: i, Secret: SectionSecretKey{scalar: acc}}
	}
	return shares, nil
}

// CombineSignatureShares reconstructs a full section signature from at
// least threshold signature shares (each produced by one elder's KeyShare
// over the same message), via Lagrange interpolation at x = 0 in the
// exponent.
func CombineSignatureShares(shares map[int]SectionSignature, threshold int) (SectionSignature, error) {
	if len(shares) < threshold {
		return SectionSignature{}, fmt.Errorf("section: combine signature shares: have %d, need %d", len(shares), threshold)
	}
	indices := make([]int, 0, len(shares))
	for i := range shares {
		indices = append(indices, i)
	}
	indices = indices[:threshold]

	var acc bls12381.G1Jac
	first := true
	for _, i := range indices {
		lambda := lagrangeCoefficientAtZero(i, indices)
		var lambdaBig big.Int
		lambda.BigInt(&lambdaBig)
		sig := shares[i].point
		var scaled bls12381.G1Affine
		scaled.ScalarMultiplication(&sig, &lambdaBig)
		var scaledJac bls12381.G1Jac
		scaledJac.FromAffine(&scaled)
		if first {
			acc = scaledJac
			first = false
			continue
		}
		acc.AddAssign(&scaledJac)
	}
	var result bls12381.G1Affine
	result.FromJacobian(&acc)
	return SectionSignature{point: result}, nil
}

// lagrangeCoefficientAtZero computes the Lagrange basis polynomial for
// index i evaluated at x = 0, over the given set of indices.
func lagrangeCoefficientAtZero(i int, indices []int) fr.Element {
	var num, den, xi, xj, diff fr.Element
	num.SetOne()
	den.SetOne()
	xi.SetUint64(uint64(i))
	for _, j := range indices {
		if j == i {
			continue
		}
		xj.SetUint64(uint64(j))
		// numerator *= (0 - xj) = -xj
		var negXj fr.Element
		negXj.Neg(&xj)
		num.Mul(&num, &negXj)
		// denominator *= (xi - xj)
		diff.Sub(&xi, &xj)
		den.Mul(&den, &diff)
	}
	var denInv fr.Element
	denInv.Inverse(&den)
	var out fr.Element
	out.Mul(&num, &denInv)
	return out
}
