package sigverify

import (
	"bytes"
	"context"
	"encoding/binary"
	"log/slog"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"

	id "portrait/pkg/domain"
	dErrors "portrait/pkg/domain-errors"
	"portrait/pkg/requestcontext"
)

// WalletBackend answers questions about the account shape of a claimed
// signer and performs the contract-wallet validation callbacks. In
// production this is backed by a node RPC; tests inject a stub.
type WalletBackend interface {
	// IsContract reports whether code is currently deployed at addr.
	IsContract(ctx context.Context, addr id.Address) (bool, error)

	// ValidateSignature asks a deployed contract wallet whether sig is
	// valid for digest (the standard "is valid signature" callback).
	ValidateSignature(ctx context.Context, wallet id.Address, digest id.Hash, sig []byte) (bool, error)

	// SimulateValidation deploys the wallet from deployPayload in a static
	// simulation (no persistent state) and runs the validation callback,
	// supporting wallets whose deployment is still counterfactual.
	SimulateValidation(ctx context.Context, wallet id.Address, deployPayload []byte, digest id.Hash, sig []byte) (bool, error)
}

// signerKind is the tagged variant selecting the verification strategy.
type signerKind int

const (
	kindKey signerKind = iota
	kindDeployedWallet
	kindCounterfactualWallet
)

// Verifier validates authorization signatures for every registry.
type Verifier struct {
	backend WalletBackend
	logger  *slog.Logger
}

// New constructs a Verifier. The backend is required; without it only plain
// key signatures could ever be validated, which would silently lock out
// contract-wallet users.
func New(backend WalletBackend, logger *slog.Logger) (*Verifier, error) {
	if backend == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "wallet backend is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{backend: backend, logger: logger}, nil
}

// IsValidSig decides whether sig was produced by (or on behalf of) signer
// over the canonical message derived from data. It returns nil on success,
// CodeExpiredSignature when the authorization deadline has passed, and
// CodeInvalidSignature for every other rejection. Verification mutates no
// state.
func (v *Verifier) IsValidSig(ctx context.Context, signer id.Address, data SigData, sig []byte) error {
	now := requestcontext.Now(ctx)
	if uint64(now.Unix()) > data.ExpirationTime {
		return dErrors.Newf(dErrors.CodeExpiredSignature,
			"authorization expired at %d", data.ExpirationTime)
	}
	if signer.IsZero() {
		return dErrors.New(dErrors.CodeInvalidAddress, "signer address is required")
	}

	digest := data.Digest()

	kind, err := v.classify(ctx, signer, sig)
	if err != nil {
		return err
	}

	switch kind {
	case kindKey:
		return v.verifyKeySignature(signer, digest, sig)

	case kindDeployedWallet:
		valid, err := v.backend.ValidateSignature(ctx, signer, digest, sig)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidSignature, "wallet validation callback failed")
		}
		if !valid {
			return dErrors.New(dErrors.CodeInvalidSignature, "wallet rejected signature")
		}
		return nil

	case kindCounterfactualWallet:
		deployPayload, innerSig, err := unwrapCounterfactual(sig)
		if err != nil {
			return err
		}
		valid, err := v.backend.SimulateValidation(ctx, signer, deployPayload, digest, innerSig)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidSignature, "simulated wallet validation failed")
		}
		if !valid {
			return dErrors.New(dErrors.CodeInvalidSignature, "undeployed wallet rejected signature")
		}
		return nil
	}

	return dErrors.New(dErrors.CodeInvalidSignature, "unsupported signer shape")
}

// classify inspects the claimed signer's account shape and the signature
// envelope to pick the verification strategy.
func (v *Verifier) classify(ctx context.Context, signer id.Address, sig []byte) (signerKind, error) {
	deployed, err := v.backend.IsContract(ctx, signer)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidSignature, "cannot inspect signer account")
	}
	if deployed {
		return kindDeployedWallet, nil
	}
	if hasCounterfactualEnvelope(sig) {
		return kindCounterfactualWallet, nil
	}
	return kindKey, nil
}

// verifyKeySignature recovers the public key from a 65-byte r||s||v
// signature and compares the derived account address against the claimed
// signer.
func (v *Verifier) verifyKeySignature(signer id.Address, digest id.Hash, sig []byte) error {
	if len(sig) != 65 {
		return dErrors.Newf(dErrors.CodeInvalidSignature, "key signature must be 65 bytes, got %d", len(sig))
	}

	// Wire order is r||s||v; the recovery routine wants the header first.
	// v of 0/1 and 27/28 are both accepted on the wire.
	header := sig[64]
	if header < 27 {
		header += 27
	}
	if header != 27 && header != 28 {
		return dErrors.New(dErrors.CodeInvalidSignature, "invalid recovery id")
	}
	compact := make([]byte, 65)
	compact[0] = header
	copy(compact[1:], sig[:64])

	pub, _, err := btcecdsa.RecoverCompact(compact, digest[:])
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidSignature, "public key recovery failed")
	}
	if AddressOfKey(pub) != signer {
		return dErrors.New(dErrors.CodeInvalidSignature, "recovered key does not match signer")
	}
	return nil
}

// AddressOfKey derives the account address for a secp256k1 public key:
// the last 20 bytes of the keccak256 of the uncompressed key body.
func AddressOfKey(pub *btcec.PublicKey) id.Address {
	digest := Keccak256(pub.SerializeUncompressed()[1:])
	var addr id.Address
	copy(addr[:], digest[12:])
	return addr
}

// counterfactualMagic marks a signature that carries a wallet deployment
// envelope. The suffix cannot collide with a plain 65-byte key signature.
var counterfactualMagic = bytes.Repeat([]byte{0x64, 0x92}, 16)

// WrapCounterfactual packages an inner wallet signature with the wallet's
// deployment payload: innerSig || deployPayload || len(deployPayload) ||
// magic. Clients signing for a not-yet-deployed wallet produce this shape.
func WrapCounterfactual(innerSig, deployPayload []byte) []byte {
	out := make([]byte, 0, len(innerSig)+len(deployPayload)+4+len(counterfactualMagic))
	out = append(out, innerSig...)
	out = append(out, deployPayload...)
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(deployPayload)))
	out = append(out, size[:]...)
	return append(out, counterfactualMagic...)
}

func hasCounterfactualEnvelope(sig []byte) bool {
	return len(sig) > len(counterfactualMagic)+4 && bytes.HasSuffix(sig, counterfactualMagic)
}

func unwrapCounterfactual(sig []byte) (deployPayload, innerSig []byte, err error) {
	body := sig[:len(sig)-len(counterfactualMagic)]
	if len(body) < 4 {
		return nil, nil, dErrors.New(dErrors.CodeInvalidSignature, "malformed deployment envelope")
	}
	payloadLen := int(binary.BigEndian.Uint32(body[len(body)-4:]))
	body = body[:len(body)-4]
	if payloadLen > len(body) {
		return nil, nil, dErrors.New(dErrors.CodeInvalidSignature, "deployment payload length exceeds envelope")
	}
	split := len(body) - payloadLen
	return body[split:], body[:split], nil
}
