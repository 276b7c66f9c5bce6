package wireguard

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// GeneratePrivateKey returns a new clamped Curve25519 private key.
func GeneratePrivateKey() (wgtypes.Key, error) {
	var key wgtypes.Key
	if _, err := rand.Read(key[:]); err != nil {
		return wgtypes.Key{}, fmt.Errorf("wireguard: generate private key: %w", err)
	}

	// Clamp as required for Curve25519 scalars.
	key[0] &^= 0x07
	key[31] &^= 0x80
	key[31] |= 0x40

	return key, nil
}

// PublicKey derives the public key for a private key. The private key is
// never logged or returned in errors.
func PublicKey(privateKey wgtypes.Key) (wgtypes.Key, error) {
	pub, err := curve25519.X25519(privateKey[:], curve25519.Basepoint)
	if err != nil {
		return wgtypes.Key{}, fmt.Errorf("wireguard: derive public key: %w", err)
	}
	return wgtypes.NewKey(pub)
}
