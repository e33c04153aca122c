package auth

import "golang.org/x/crypto/bcrypt"

// HashBridgeKey hashes a plaintext bridge key with the given cost. Used by
// the key generation script; the server only ever sees the hash.
func HashBridgeKey(key string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyBridgeKey checks a presented bridge key against the configured hash.
func VerifyBridgeKey(hashed, key string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(key))
}
