package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/oauth2"
)

const nonceSize = 24

var (
	// ErrSealedToken is returned when a sealed token cannot be opened.
	ErrSealedToken = errors.New("auth: sealed token is invalid")

	sealerInfo = []byte("room-reservations token sealing v1")
)

// Sealer encrypts OAuth tokens before they are written to a store.
type Sealer struct {
	key [32]byte
}

// NewSealer derives the sealing key from secret with HKDF-SHA256.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("auth: sealing secret is empty")
	}
	s := &Sealer{}
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, sealerInfo), s.key[:]); err != nil {
		return nil, fmt.Errorf("auth: derive sealing key: %w", err)
	}
	return s, nil
}

// Seal returns nonce || secretbox(json(token)).
func (s *Sealer) Seal(token *oauth2.Token) ([]byte, error) {
	if token == nil {
		return nil, errors.New("auth: nil token")
	}
	plain, err := json.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("auth: encode token: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("auth: generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed []byte) (*oauth2.Token, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrSealedToken
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrSealedToken
	}
	var token oauth2.Token
	if err := json.Unmarshal(plain, &token); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealedToken, err)
	}
	return &token, nil
}
