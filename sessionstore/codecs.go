package sessionstore

import (
	"crypto/sha256"
	"io"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/hkdf"
)

// CodecsFromSecrets returns codecs that sign and encrypt the session cookie,
// for use as Options.Codecs. A hash key and an encryption key are derived
// from each secret. Cookies are encoded with the first secret and decoded
// with any of them, so a secret can be rotated by prepending its replacement.
//
// If maxAge is positive, cookies older than maxAge seconds are rejected.
// Otherwise the securecookie default of thirty days applies.
func CodecsFromSecrets(maxAge int, secrets ...[]byte) []securecookie.Codec {
	keyPairs := make([][]byte, 0, len(secrets)*2)
	for _, secret := range secrets {
		hashKey, encryptKey := newKeyPair(secret)
		keyPairs = append(keyPairs, hashKey, encryptKey)
	}
	codecs := securecookie.CodecsFromPairs(keyPairs...)
	if maxAge > 0 {
		for _, codec := range codecs {
			if sc, ok := codec.(*securecookie.SecureCookie); ok {
				sc.MaxAge(maxAge)
			}
		}
	}
	return codecs
}

// newKeyPair takes a secret and prepares two keys using
// the HKDF key derivation function.
func newKeyPair(secret []byte) ([]byte, []byte) {
	kdf := hkdf.New(sha256.New, secret, nil, []byte("session cookie"))

	hashKey := make([]byte, 32)
	encryptKey := make([]byte, 32)
	io.ReadFull(kdf, hashKey)
	io.ReadFull(kdf, encryptKey)

	return hashKey, encryptKey
}
