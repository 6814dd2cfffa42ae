package section

import "fmt"

// KeyGenerator produces a fresh section BLS key and per-elder shares when
// the elder set changes. The spec treats the DKG algorithm itself as an
// assumed external collaborator — only the trigger (elder change) and the
// effect (atomic EldersInfo replacement + chain extension) are specified —
// so this is a pluggable seam rather than a fixed protocol.
type KeyGenerator interface {
	// Generate produces a new section key pair and a threshold share for
	// each of the n participants, requiring threshold shares to sign.
	Generate(n, threshold int) (SectionPublicKey, []KeyShare, error)
}

// LocalKeyGen is a single-process simulation of threshold key generation:
// it generates one BLS secret key and splits it into Shamir shares, rather
// than running a full interactive multi-round DKG protocol between elders.
// Adequate for a node driving its own section view; a production network
// would run the interactive protocol across the elder set instead.
type LocalKeyGen struct{}

// Generate implements KeyGenerator.
func (LocalKeyGen) Generate(n, threshold int) (SectionPublicKey, []KeyShare, error) {
	if n <= 0 {
		return SectionPublicKey{}, nil, fmt.Errorf("section: keygen: n must be positive, got %d", n)
	}
	secret, public, err := GenerateSectionKey()
	if err != nil {
		return SectionPublicKey{}, nil, err
	}
	shares, err := splitSecret(secret.scalar, threshold, n)
	if err != nil {
		return SectionPublicKey{}, nil, err
	}
	return public, shares, nil
}
