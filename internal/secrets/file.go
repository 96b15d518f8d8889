package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// File is a per-user secret file (mode 0600) with AES-GCM sealed values.
// The key is derived from a passphrase; it keeps secrets out of plain-text
// config but is not a substitute for an OS keychain.
type File struct {
	path string
	key  [32]byte
	mu   sync.Mutex
}

type secretFile struct {
	Keys map[string]string `json:"keys"` // name -> base64(nonce|ciphertext)
}

// NewFile opens the secret file at path, sealing values with passphrase.
func NewFile(path, passphrase string) (*File, error) {
	if path == "" {
		return nil, errors.New("secrets: file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}
	return &File{path: path, key: sha256.Sum256([]byte("spendbook:" + passphrase))}, nil
}

func (f *File) Get(ctx context.Context, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sf, err := f.load()
	if err != nil {
		return "", false, err
	}
	enc, ok := sf.Keys[norm(name)]
	if !ok {
		return "", false, nil
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", false, fmt.Errorf("secrets: decode %s: %w", name, err)
	}
	pt, err := f.open(raw)
	if err != nil {
		return "", false, fmt.Errorf("secrets: decrypt %s: %w", name, err)
	}
	return string(pt), true, nil
}

func (f *File) Put(ctx context.Context, name, value string) error {
	if norm(name) == "" {
		return errors.New("secrets: name required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	sf, err := f.load()
	if err != nil {
		return err
	}
	ct, err := f.seal([]byte(value))
	if err != nil {
		return err
	}
	sf.Keys[norm(name)] = base64.StdEncoding.EncodeToString(ct)
	return f.save(sf)
}

func (f *File) Delete(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	sf, err := f.load()
	if err != nil {
		return err
	}
	delete(sf.Keys, norm(name))
	return f.save(sf)
}

func (f *File) load() (secretFile, error) {
	sf := secretFile{Keys: map[string]string{}}
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return sf, nil
		}
		return sf, fmt.Errorf("secrets: read: %w", err)
	}
	if err := json.Unmarshal(data, &sf); err != nil {
		return sf, fmt.Errorf("secrets: parse %s: %w", f.path, err)
	}
	if sf.Keys == nil {
		sf.Keys = map[string]string{}
	}
	return sf, nil
}

func (f *File) save(sf secretFile) error {
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("secrets: write: %w", err)
	}
	return os.Rename(tmp, f.path)
}

func (f *File) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(f.key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (f *File) seal(plain []byte) ([]byte, error) {
	gcm, err := f.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func (f *File) open(ciphertext []byte) ([]byte, error) {
	gcm, err := f.gcm()
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}
