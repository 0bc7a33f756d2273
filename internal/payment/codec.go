package payment

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"gemcart/internal/model"
)

const (
	envelopeMarker = "enc"
	envelopeAlg    = "aes-256-gcm"
	gcmTagSize     = 16
)

// FieldCodec encrypts and decrypts sensitive payment sub-documents persisted
// on orders. With no key configured it passes values through in clear unless
// the deployment requires encryption, in which case writes fail.
type FieldCodec struct {
	key      []byte
	required bool
}

// envelope is the at-rest form of an encrypted value.
type envelope struct {
	Marker string `json:"marker"`
	Alg    string `json:"alg"`
	IV     string `json:"iv"`
	Tag    string `json:"tag"`
	Data   string `json:"data"`
}

// NewFieldCodec builds a codec from a base64-encoded 32-byte key. An empty
// key string configures a pass-through codec; required then forbids writes.
func NewFieldCodec(base64Key string, required bool) (*FieldCodec, error) {
	if base64Key == "" {
		return &FieldCodec{required: required}, nil
	}

	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}

	return &FieldCodec{key: key, required: required}, nil
}

// Encrypt seals a JSON value into an envelope with a fresh random nonce.
// A nil value passes through unchanged.
func (c *FieldCodec) Encrypt(value json.RawMessage) (json.RawMessage, error) {
	if value == nil {
		return nil, nil
	}
	if c.key == nil {
		if c.required {
			return nil, model.ErrEncryptionRequired
		}
		return value, nil
	}

	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, value, nil)
	ciphertext := sealed[:len(sealed)-gcmTagSize]
	tag := sealed[len(sealed)-gcmTagSize:]

	env := envelope{
		Marker: envelopeMarker,
		Alg:    envelopeAlg,
		IV:     base64.StdEncoding.EncodeToString(nonce),
		Tag:    base64.StdEncoding.EncodeToString(tag),
		Data:   base64.StdEncoding.EncodeToString(ciphertext),
	}
	return json.Marshal(env)
}

// Decrypt opens an envelope back into the original JSON value. It fails
// loudly on a missing key, an unrecognised algorithm tag, or a failed
// authentication check. Values that are not envelopes (written before
// encryption was configured) pass through unchanged.
func (c *FieldCodec) Decrypt(value json.RawMessage) (json.RawMessage, error) {
	if value == nil {
		return nil, nil
	}

	var env envelope
	if err := json.Unmarshal(value, &env); err != nil || env.Marker != envelopeMarker {
		return value, nil
	}

	if c.key == nil {
		return nil, fmt.Errorf("cannot decrypt payment field: no encryption key configured")
	}
	if env.Alg != envelopeAlg {
		return nil, fmt.Errorf("cannot decrypt payment field: unrecognised algorithm %q", env.Alg)
	}

	nonce, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, fmt.Errorf("failed to decode nonce: %w", err)
	}
	tag, err := base64.StdEncoding.DecodeString(env.Tag)
	if err != nil {
		return nil, fmt.Errorf("failed to decode auth tag: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt payment field: %w", err)
	}
	return plaintext, nil
}

func (c *FieldCodec) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise GCM: %w", err)
	}
	return gcm, nil
}
