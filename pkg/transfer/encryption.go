// Package transfer seals credential transfer envelopes for a recipient
// device. The sealing is ECIES over secp256k1: an ephemeral key agreement,
// HKDF-SHA256 key derivation and AES-256-GCM, so an envelope can travel over
// any untrusted channel (QR code, messaging app, relay server).
package transfer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"

	"github.com/latchguard/go-lock-agent/internal/credential"
)

const (
	nonceSize  = 12
	aes256Keys = 32
)

// kdfInfo binds derived keys to this protocol version. Changing the envelope
// format requires a new info string.
var kdfInfo = []byte("credential-transfer-v1")

// SealEnvelope encrypts a transfer envelope for the recipient's public key and
// returns it base64 encoded. Only the holder of the matching private key can
// open it.
func SealEnvelope(envelope credential.TransferEnvelope, recipientPublicKeyHex string) (string, error) {
	recipientPub, err := parsePublicKey(recipientPublicKeyHex)
	if err != nil {
		return "", err
	}

	plaintext, err := json.Marshal(envelope)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal envelope")
	}

	sealed, err := encrypt(plaintext, recipientPub)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// OpenEnvelope decrypts a sealed envelope with the recipient's private key.
// It does not check the transfer expiry; ingestion does that.
func OpenEnvelope(sealed string, recipientPrivateKeyHex string) (*credential.TransferEnvelope, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode sealed envelope")
	}

	priv, err := parsePrivateKey(recipientPrivateKeyHex)
	if err != nil {
		return nil, err
	}

	plaintext, err := decrypt(raw, priv)
	if err != nil {
		return nil, err
	}

	var envelope credential.TransferEnvelope
	if err := json.Unmarshal(plaintext, &envelope); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal envelope")
	}
	return &envelope, nil
}

// encrypt produces EphemeralPubKey (33 bytes, compressed) || Nonce (12 bytes)
// || Ciphertext (with GCM tag). The ephemeral public key doubles as HKDF salt
// and GCM additional data, binding it to the ciphertext.
func encrypt(plaintext []byte, recipientPub *ecdsa.PublicKey) ([]byte, error) {
	ephemeral, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate ephemeral key")
	}

	secret, err := sharedSecret(ephemeral, recipientPub)
	if err != nil {
		return nil, err
	}
	ephemeralPub := ethcrypto.CompressPubkey(&ephemeral.PublicKey)

	gcm, err := newGCM(secret, ephemeralPub)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Wrap(err, "failed to generate nonce")
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, ephemeralPub)

	sealed := make([]byte, 0, len(ephemeralPub)+len(nonce)+len(ciphertext))
	sealed = append(sealed, ephemeralPub...)
	sealed = append(sealed, nonce...)
	sealed = append(sealed, ciphertext...)
	return sealed, nil
}

func decrypt(sealed []byte, priv *ecdsa.PrivateKey) ([]byte, error) {
	if len(sealed) < 33+nonceSize {
		return nil, errors.New("sealed envelope too short")
	}

	ephemeralPubBytes := sealed[:33]
	nonce := sealed[33 : 33+nonceSize]
	ciphertext := sealed[33+nonceSize:]

	ephemeralPub, err := ethcrypto.DecompressPubkey(ephemeralPubBytes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse ephemeral public key")
	}

	secret, err := sharedSecret(priv, ephemeralPub)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(secret, ephemeralPubBytes)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, ephemeralPubBytes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decrypt envelope")
	}
	return plaintext, nil
}

// sharedSecret computes the ECDH x-coordinate. Both sides arrive at the same
// value: r * K = k * R.
func sharedSecret(priv *ecdsa.PrivateKey, pub *ecdsa.PublicKey) ([]byte, error) {
	if !ethcrypto.S256().IsOnCurve(pub.X, pub.Y) {
		return nil, errors.New("public key is not on curve")
	}
	x, _ := ethcrypto.S256().ScalarMult(pub.X, pub.Y, priv.D.Bytes())
	if x == nil {
		return nil, errors.New("shared secret is nil")
	}
	return x.Bytes(), nil
}

func newGCM(secret, salt []byte) (cipher.AEAD, error) {
	kdf := hkdf.New(sha256.New, secret, salt, kdfInfo)
	key := make([]byte, aes256Keys)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, errors.Wrap(err, "failed to derive key")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create aes cipher")
	}
	return cipher.NewGCM(block)
}

func parsePublicKey(publicKeyHex string) (*ecdsa.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(publicKeyHex, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode public key")
	}
	switch {
	case len(raw) == 65:
		pub, err := ethcrypto.UnmarshalPubkey(raw)
		return pub, errors.Wrap(err, "invalid uncompressed public key")
	case len(raw) == 33:
		pub, err := ethcrypto.DecompressPubkey(raw)
		return pub, errors.Wrap(err, "invalid compressed public key")
	default:
		return nil, errors.Errorf("unsupported public key length: %d", len(raw))
	}
}

func parsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode private key")
	}
	priv, err := ethcrypto.ToECDSA(raw)
	return priv, errors.Wrap(err, "invalid secp256k1 private key")
}
