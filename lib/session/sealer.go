package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Sealing errors.
var (
	ErrInvalidFormat    = errors.New("session: invalid sealed value format")
	ErrSignatureInvalid = errors.New("session: signature verification failed")
	ErrDecryptFailed    = errors.New("session: value decryption failed")
)

// Sealer protects persisted values at rest. It supports two modes:
//   - Signed (default): base64 value + HMAC signature, readable but
//     tamper-proof
//   - Encrypted: AES-256-GCM, fully opaque (use for auth tokens on
//     shared storage)
type Sealer struct {
	key []byte
	gcm cipher.AEAD
}

// NewSealer creates a sealer from a key. Keys shorter than 32 bytes are
// stretched with SHA-256 to fit AES-256.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) < 32 {
		h := sha256.Sum256(key)
		key = h[:]
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{key: key, gcm: gcm}, nil
}

// envelope wraps a stored value with the time it was sealed, so stale
// sessions can be recognized by the caller.
type envelope struct {
	Value  string `msgpack:"v"`
	Issued int64  `msgpack:"t"`
}

// Seal encodes a value for storage. If sensitive is true the value is
// encrypted; otherwise it is signed and remains readable.
func (s *Sealer) Seal(value string, sensitive bool) (string, error) {
	packed, err := msgpack.Marshal(envelope{Value: value, Issued: time.Now().Unix()})
	if err != nil {
		return "", err
	}
	if sensitive {
		return s.encrypt(packed)
	}
	return s.sign(packed), nil
}

// Open decodes a sealed value, verifying the signature or decrypting as
// appropriate. The returned time is when the value was sealed.
func (s *Sealer) Open(sealed string, sensitive bool) (string, time.Time, error) {
	var packed []byte
	var err error
	if sensitive {
		packed, err = s.decrypt(sealed)
	} else {
		packed, err = s.verify(sealed)
	}
	if err != nil {
		return "", time.Time{}, err
	}
	var env envelope
	if err := msgpack.Unmarshal(packed, &env); err != nil {
		return "", time.Time{}, ErrInvalidFormat
	}
	return env.Value, time.Unix(env.Issued, 0), nil
}

// tagSize truncates the HMAC-SHA256 tag to 128 bits. Session values are
// small and short-lived; the shorter tag keeps sealed strings compact.
const tagSize = 16

func (s *Sealer) tag(data []byte) []byte {
	h := hmac.New(sha256.New, s.key)
	h.Write(data)
	return h.Sum(nil)[:tagSize]
}

// sign produces "base64(data).base64(tag)". The value stays readable;
// only tampering is ruled out.
func (s *Sealer) sign(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data) +
		"." + base64.RawURLEncoding.EncodeToString(s.tag(data))
}

func (s *Sealer) verify(sealed string) ([]byte, error) {
	body, tag, ok := strings.Cut(sealed, ".")
	if !ok {
		return nil, ErrInvalidFormat
	}
	data, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	sig, err := base64.RawURLEncoding.DecodeString(tag)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	if !hmac.Equal(sig, s.tag(data)) {
		return nil, ErrSignatureInvalid
	}
	return data, nil
}

// encrypt prepends the random nonce to the GCM ciphertext so a sealed
// value is a single base64 string.
func (s *Sealer) encrypt(data []byte) (string, error) {
	nonce := make([]byte, s.gcm.NonceSize(), s.gcm.NonceSize()+len(data)+s.gcm.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(s.gcm.Seal(nonce, nonce, data, nil)), nil
}

func (s *Sealer) decrypt(sealed string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, ErrInvalidFormat
	}
	n := s.gcm.NonceSize()
	if len(raw) < n {
		return nil, ErrInvalidFormat
	}
	plain, err := s.gcm.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plain, nil
}

// sealedStorage wraps another Storage, sealing values on the way in and
// opening them on the way out.
type sealedStorage struct {
	inner     Storage
	sealer    *Sealer
	sensitive bool
}

// Sealed wraps storage so every value is sealed at rest. With sensitive
// set, values are encrypted rather than signed.
func Sealed(inner Storage, sealer *Sealer, sensitive bool) Storage {
	return &sealedStorage{inner: inner, sealer: sealer, sensitive: sensitive}
}

func (s *sealedStorage) Get(key string) (string, error) {
	sealed, err := s.inner.Get(key)
	if err != nil || sealed == "" {
		return "", err
	}
	value, _, err := s.sealer.Open(sealed, s.sensitive)
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *sealedStorage) Set(key, value string) error {
	if value == "" {
		return s.inner.Remove(key)
	}
	sealed, err := s.sealer.Seal(value, s.sensitive)
	if err != nil {
		return err
	}
	return s.inner.Set(key, sealed)
}

func (s *sealedStorage) Remove(key string) error {
	return s.inner.Remove(key)
}
