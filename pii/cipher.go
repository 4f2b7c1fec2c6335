// Package pii protects personally identifiable fields at rest with an RSA
// keypair: the public key encrypts at write time, the private key decrypts
// on the display/audit paths that must not touch plaintext.
//
// The keypair is loaded (or generated and persisted) exactly once, at
// process startup, and injected into the engine as a dependency. Nothing in
// this package keeps mutable global state.
package pii

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultKeyBits is the keypair size used when the caller does not choose
// one. 2048-bit keys are the floor for long-term confidentiality here.
const DefaultKeyBits = 2048

const (
	privatePEMType = "PRIVATE KEY"
	publicPEMType  = "PUBLIC KEY"
)

// ErrMalformedPayload is returned when a ciphertext cannot be decoded or
// decrypted with the loaded keypair.
var ErrMalformedPayload = errors.New("malformed pii payload")

// Cipher encrypts and decrypts short PII strings with a fixed RSA keypair.
// It is safe for concurrent use.
type Cipher struct {
	private *rsa.PrivateKey
	public  *rsa.PublicKey
}

// LoadOrGenerate loads the PEM keypair at the given paths, or generates a
// fresh keypair of bits and persists it when the private key file does not
// exist. Any failure here is non-recoverable for the caller: an engine
// without its keypair must not start.
func LoadOrGenerate(privatePath, publicPath string, bits int) (*Cipher, error) {
	if bits <= 0 {
		bits = DefaultKeyBits
	}

	if _, err := os.Stat(privatePath); err == nil {
		return load(privatePath)
	}

	return generate(privatePath, publicPath, bits)
}

// FromKey wraps an already-loaded private key. Useful in tests and in
// deployments that source key material from a secret manager instead of
// the filesystem.
func FromKey(key *rsa.PrivateKey) *Cipher {
	return &Cipher{private: key, public: &key.PublicKey}
}

func load(privatePath string) (*Cipher, error) {
	data, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != privatePEMType {
		return nil, errors.New("private key file is not a PRIVATE KEY PEM block")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}

	return FromKey(key), nil
}

func generate(privatePath, publicPath string, bits int) (*Cipher, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	if err := save(key, privatePath, publicPath); err != nil {
		return nil, fmt.Errorf("failed to save key pair: %w", err)
	}

	return FromKey(key), nil
}

func save(key *rsa.PrivateKey, privatePath, publicPath string) error {
	if err := os.MkdirAll(filepath.Dir(privatePath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for private key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(publicPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for public key: %w", err)
	}

	privateDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}
	privatePEM := pem.EncodeToMemory(&pem.Block{Type: privatePEMType, Bytes: privateDER})
	if err := os.WriteFile(privatePath, privatePEM, 0o600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to marshal public key: %w", err)
	}
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: publicPEMType, Bytes: publicDER})
	if err := os.WriteFile(publicPath, publicPEM, 0o644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}

	return nil
}

// Encrypt encrypts plaintext with the public key and returns the base64
// ciphertext.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if c == nil || c.public == nil {
		return "", errors.New("pii cipher not initialized")
	}

	encrypted, err := rsa.EncryptPKCS1v15(rand.Reader, c.public, []byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("rsa encrypt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(encrypted), nil
}

// Decrypt reverses [Cipher.Encrypt]. A payload that does not decode or does
// not decrypt under the loaded keypair returns [ErrMalformedPayload].
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if c == nil || c.private == nil {
		return "", errors.New("pii cipher not initialized")
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	plaintext, err := rsa.DecryptPKCS1v15(rand.Reader, c.private, raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return string(plaintext), nil
}

// PublicPEM returns the public key as a PEM block, for callers that expose
// it to clients for transport encryption.
func (c *Cipher) PublicPEM() ([]byte, error) {
	if c == nil || c.public == nil {
		return nil, errors.New("pii cipher not initialized")
	}

	der, err := x509.MarshalPKIXPublicKey(c.public)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: publicPEMType, Bytes: der}), nil
}
