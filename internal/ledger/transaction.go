package ledger

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
)

// ArgType identifies the contract value type of an invocation argument.
type ArgType string

// Argument types accepted by contract invocations.
const (
	ArgSymbol ArgType = "symbol"
	ArgU64    ArgType = "u64"
	ArgI128   ArgType = "i128"
	ArgVec    ArgType = "vec"
)

// Arg is a typed contract argument. Scalars carry Value, vectors carry Items.
type Arg struct {
	Type  ArgType `json:"type"`
	Value string  `json:"value,omitempty"`
	Items []Arg   `json:"items,omitempty"`
}

// Symbol builds a symbol argument.
func Symbol(s string) Arg {
	return Arg{Type: ArgSymbol, Value: s}
}

// U64 builds an unsigned 64-bit argument.
func U64(v uint64) Arg {
	return Arg{Type: ArgU64, Value: strconv.FormatUint(v, 10)}
}

// I128 builds a signed 128-bit argument.
func I128(v *big.Int) Arg {
	return Arg{Type: ArgI128, Value: v.String()}
}

// Vec builds a vector argument.
func Vec(items ...Arg) Arg {
	if items == nil {
		items = []Arg{}
	}
	return Arg{Type: ArgVec, Items: items}
}

// Invocation is a single contract function call.
type Invocation struct {
	Contract string `json:"contract"`
	Function string `json:"function"`
	Args     []Arg  `json:"args"`
}

// Transaction is an unsigned ledger transaction carrying one invocation.
// Sequence must be exactly one more than the source account's current sequence.
type Transaction struct {
	Source     string     `json:"source"`
	Sequence   int64      `json:"sequence"`
	Fee        int64      `json:"fee"`
	Invocation Invocation `json:"invocation"`
}

// NetworkID returns the SHA-256 of the network passphrase.
func NetworkID(passphrase string) [32]byte {
	return sha256.Sum256([]byte(passphrase))
}

// Hash returns the transaction hash for the given network:
// SHA-256 over the network id followed by the canonical JSON of the transaction.
func (tx *Transaction) Hash(passphrase string) ([32]byte, error) {
	payload, err := json.Marshal(tx)
	if err != nil {
		return [32]byte{}, fmt.Errorf("marshal transaction: %w", err)
	}

	networkID := NetworkID(passphrase)
	h := sha256.New()
	h.Write(networkID[:])
	h.Write(payload)

	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// HashHex returns the hex-encoded transaction hash.
func (tx *Transaction) HashHex(passphrase string) (string, error) {
	sum, err := tx.Hash(passphrase)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum[:]), nil
}

// DecoratedSignature is an ed25519 signature with the signer's public key,
// both base58 encoded.
type DecoratedSignature struct {
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

// Envelope wraps a transaction with its signatures. An envelope without
// signatures is valid input for simulation only.
type Envelope struct {
	Tx         Transaction          `json:"tx"`
	Signatures []DecoratedSignature `json:"signatures,omitempty"`
}

// Encode serialises the envelope as base64 JSON.
func (e *Envelope) Encode() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeEnvelope parses a base64 JSON envelope.
func DecodeEnvelope(s string) (*Envelope, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode envelope base64: %w", err)
	}

	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return &e, nil
}
