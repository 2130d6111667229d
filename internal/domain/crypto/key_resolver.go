package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	apperrors "github.com/cipherroom/gateway/pkg/errors"
)

// SealRoomKey wraps a fresh room key under the deployment master key, for
// storage as entity.Room's SealedKey. The room key never touches disk
// unwrapped.
func SealRoomKey(masterKey [KeySize]byte, roomKey [KeySize]byte) ([]byte, error) {
	return SealBytes(masterKey, roomKey[:])
}

// SealBytes wraps an arbitrary plaintext blob under masterKey, prefixing
// the nonce to the ciphertext. Used both for room keys and for at-rest
// external-service credentials (component O's integration store), which
// needs the same "encrypt a small secret under one deployment key"
// primitive the room-key wrapping already provides.
func SealBytes(masterKey [KeySize]byte, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(masterKey[:])
	if err != nil {
		return nil, apperrors.NewInternalErrorWithCause("init master cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperrors.NewInternalErrorWithCause("init master gcm", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, apperrors.NewInternalErrorWithCause("generate nonce", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return sealed, nil
}

// UnsealRoomKey recovers a room's symmetric key from its SealedKey bytes
// (nonce-prefixed ciphertext) using the deployment master key. A session
// that cannot unseal its room's key closes with code 4002 (spec §4.E).
func UnsealRoomKey(masterKey [KeySize]byte, sealed []byte) ([KeySize]byte, error) {
	var roomKey [KeySize]byte
	plaintext, err := UnsealBytes(masterKey, sealed)
	if err != nil {
		return roomKey, err
	}
	if len(plaintext) != KeySize {
		return roomKey, apperrors.NewBadEnvelopeError("unsealed room key has wrong length")
	}
	copy(roomKey[:], plaintext)
	return roomKey, nil
}

// UnsealBytes recovers the plaintext blob sealed by SealBytes.
func UnsealBytes(masterKey [KeySize]byte, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(masterKey[:])
	if err != nil {
		return nil, apperrors.NewInternalErrorWithCause("init master cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperrors.NewInternalErrorWithCause("init master gcm", err)
	}

	if len(sealed) < NonceSize {
		return nil, apperrors.NewBadEnvelopeError("sealed blob too short")
	}
	nonce, ciphertext := sealed[:NonceSize], sealed[NonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, apperrors.NewTamperError("sealed blob authentication failed")
	}
	return plaintext, nil
}
