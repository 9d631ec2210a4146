package ledger

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ErrInvalidKey is returned for malformed seeds, public keys or signatures.
var ErrInvalidKey = errors.New("invalid key")

// Signer holds the ed25519 identity that submits transactions.
type Signer struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
	address string
}

// NewSignerFromSeed parses a base58 secret. Both a 32-byte seed and a
// 64-byte seed||public-key keypair are accepted.
func NewSignerFromSeed(secret string) (*Signer, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: decode secret: %v", ErrInvalidKey, err)
	}

	var seed []byte
	switch len(raw) {
	case ed25519.SeedSize:
		seed = raw
	case ed25519.PrivateKeySize:
		seed = raw[:ed25519.SeedSize]
	default:
		return nil, fmt.Errorf("%w: secret is %d bytes", ErrInvalidKey, len(raw))
	}

	private := ed25519.NewKeyFromSeed(seed)
	public := private.Public().(ed25519.PublicKey)

	if len(raw) == ed25519.PrivateKeySize && !bytes.Equal(raw[ed25519.SeedSize:], public) {
		return nil, fmt.Errorf("%w: keypair public half does not match seed", ErrInvalidKey)
	}
	if err := ValidatePublicKey(public); err != nil {
		return nil, err
	}

	return &Signer{
		private: private,
		public:  public,
		address: base58.Encode(public),
	}, nil
}

// GenerateSigner creates a signer with a random key. Used for dry runs.
func GenerateSigner() (*Signer, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate seed: %w", err)
	}
	return NewSignerFromSeed(base58.Encode(seed))
}

// Address returns the base58-encoded public key.
func (s *Signer) Address() string {
	return s.address
}

// Sign hashes tx for the network and returns a signed envelope.
func (s *Signer) Sign(tx Transaction, passphrase string) (*Envelope, string, error) {
	if tx.Source != s.address {
		return nil, "", fmt.Errorf("transaction source %s does not match signer %s", tx.Source, s.address)
	}

	sum, err := tx.Hash(passphrase)
	if err != nil {
		return nil, "", err
	}

	sig := ed25519.Sign(s.private, sum[:])
	env := &Envelope{
		Tx: tx,
		Signatures: []DecoratedSignature{{
			PublicKey: s.address,
			Signature: base58.Encode(sig),
		}},
	}

	hash, err := tx.HashHex(passphrase)
	if err != nil {
		return nil, "", err
	}
	return env, hash, nil
}

// ParseAddress decodes a base58 public key and checks that it is a valid
// curve point.
func ParseAddress(address string) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("%w: decode address: %v", ErrInvalidKey, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: address is %d bytes", ErrInvalidKey, len(raw))
	}
	if err := ValidatePublicKey(raw); err != nil {
		return nil, err
	}
	return ed25519.PublicKey(raw), nil
}

// ValidatePublicKey reports whether pub encodes a point on the ed25519 curve.
func ValidatePublicKey(pub []byte) error {
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return fmt.Errorf("%w: public key is not on curve", ErrInvalidKey)
	}
	return nil
}

// VerifyEnvelope checks that the envelope carries a valid signature from the
// transaction source over the transaction hash for the network.
func VerifyEnvelope(env *Envelope, passphrase string) error {
	pub, err := ParseAddress(env.Tx.Source)
	if err != nil {
		return err
	}

	sum, err := env.Tx.Hash(passphrase)
	if err != nil {
		return err
	}

	for _, ds := range env.Signatures {
		if ds.PublicKey != env.Tx.Source {
			continue
		}
		sig, err := base58.Decode(ds.Signature)
		if err != nil {
			return fmt.Errorf("%w: decode signature: %v", ErrInvalidKey, err)
		}
		if ed25519.Verify(pub, sum[:], sig) {
			return nil
		}
	}

	return fmt.Errorf("%w: missing or bad source signature", ErrInvalidKey)
}
