package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// KeyPair holds a secp256k1 key pair in hex encoding. The private key never
// leaves the device; the public key is the correlation key with the ledger.
type KeyPair struct {
	PublicKey  string
	PrivateKey string
}

// GenerateKeyPair creates a fresh secp256k1 key pair. The public key is
// serialized uncompressed (0x04 || X || Y).
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate secp256k1 key")
	}
	pub := ethcrypto.FromECDSAPub(&priv.PublicKey)
	return &KeyPair{
		PublicKey:  "0x" + hex.EncodeToString(pub),
		PrivateKey: "0x" + hex.EncodeToString(ethcrypto.FromECDSA(priv)),
	}, nil
}

// Keccak256Hex hashes data with Keccak256 and returns the 0x-prefixed hex digest.
func Keccak256Hex(data []byte) string {
	return "0x" + hex.EncodeToString(ethcrypto.Keccak256(data))
}

// Sign hashes the payload with Keccak256 and signs the digest with the given
// private key. Returns the 65-byte recoverable signature and the payload hash,
// both hex encoded.
func Sign(payload []byte, privateKeyHex string) (signature string, payloadHash string, err error) {
	priv, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		return "", "", err
	}
	digest := ethcrypto.Keccak256(payload)
	sig, err := ethcrypto.Sign(digest, priv)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to sign payload")
	}
	return "0x" + hex.EncodeToString(sig), "0x" + hex.EncodeToString(digest), nil
}

// Verify checks a signature produced by Sign against the payload hash and the
// signer's public key. Accepts signatures with or without the recovery byte.
func Verify(payloadHashHex, signatureHex, publicKeyHex string) (bool, error) {
	digest, err := decodeHex(payloadHashHex)
	if err != nil {
		return false, errors.Wrap(err, "failed to decode payload hash")
	}
	sig, err := decodeHex(signatureHex)
	if err != nil {
		return false, errors.Wrap(err, "failed to decode signature")
	}
	pub, err := decodeHex(publicKeyHex)
	if err != nil {
		return false, errors.Wrap(err, "failed to decode public key")
	}
	if len(sig) == 65 {
		// VerifySignature expects R||S without the recovery byte
		sig = sig[:64]
	}
	if len(sig) != 64 {
		return false, errors.Errorf("invalid signature length: %d", len(sig))
	}
	return ethcrypto.VerifySignature(pub, digest, sig), nil
}

// SignForChain signs an already-computed payload hash in the EIP-191 personal
// message encoding so the ledger can recover the signer address. The hashed
// content is identical to the off-chain signature; only the encoding differs.
func SignForChain(payloadHashHex, privateKeyHex string) (string, error) {
	priv, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		return "", err
	}
	digest, err := decodeHex(payloadHashHex)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode payload hash")
	}
	prefixed := ethcrypto.Keccak256([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(digest))), digest)
	sig, err := ethcrypto.Sign(prefixed, priv)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign for chain")
	}
	// Ledger-side ecrecover expects v in {27, 28}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// RecoverAddress recovers the signer address from a SignForChain signature.
// This mirrors the verification the ledger performs on revocation.
func RecoverAddress(payloadHashHex, chainSignatureHex string) (string, error) {
	digest, err := decodeHex(payloadHashHex)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode payload hash")
	}
	sig, err := decodeHex(chainSignatureHex)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode signature")
	}
	if len(sig) != 65 {
		return "", errors.Errorf("invalid chain signature length: %d", len(sig))
	}
	recSig := make([]byte, 65)
	copy(recSig, sig)
	if recSig[64] >= 27 {
		recSig[64] -= 27
	}
	prefixed := ethcrypto.Keccak256([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(digest))), digest)
	pub, err := ethcrypto.SigToPub(prefixed, recSig)
	if err != nil {
		return "", errors.Wrap(err, "failed to recover public key")
	}
	return strings.ToLower(ethcrypto.PubkeyToAddress(*pub).Hex()), nil
}

// AddressFromPublicKey derives the Ethereum address as Keccak256(pubKey[1:])[12:].
func AddressFromPublicKey(publicKeyHex string) (string, error) {
	pub, err := decodeHex(publicKeyHex)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode public key")
	}
	var uncompressed64 []byte
	switch {
	case len(pub) == 65 && pub[0] == 0x04:
		uncompressed64 = pub[1:]
	case len(pub) == 33 && (pub[0] == 0x02 || pub[0] == 0x03):
		key, err := btcec.ParsePubKey(pub)
		if err != nil {
			return "", errors.Wrap(err, "failed to parse compressed secp256k1 pubkey")
		}
		u := key.SerializeUncompressed() // 65 bytes, 0x04 | X | Y
		uncompressed64 = u[1:]
	default:
		return "", errors.Errorf("unsupported public key format: len=%d", len(pub))
	}
	hash := ethcrypto.Keccak256(uncompressed64)
	return fmt.Sprintf("0x%s", hex.EncodeToString(hash[12:])), nil
}

func parsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	raw, err := decodeHex(privateKeyHex)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode private key")
	}
	key, err := ethcrypto.ToECDSA(raw)
	if err != nil {
		return nil, errors.Wrap(err, "invalid secp256k1 private key")
	}
	return key, nil
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
