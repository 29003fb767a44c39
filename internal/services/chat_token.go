package services

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// mintChatToken creates a fresh capability token. The plaintext is handed to
// the participant exactly once; only the hash is persisted.
func mintChatToken() (plaintext, hash string, err error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("mint chat token: %w", err)
	}
	plaintext = hex.EncodeToString(buf)
	return plaintext, hashChatToken(plaintext), nil
}

func hashChatToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// chatTokenMatches compares a presented token against a stored hash in
// constant time.
func chatTokenMatches(presented, storedHash string) bool {
	if presented == "" || storedHash == "" {
		return false
	}
	computed := hashChatToken(presented)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
