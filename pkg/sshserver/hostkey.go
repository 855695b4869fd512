package sshserver

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

const hostKeyComment = "qchat host key"

// LoadOrGenerateSigner loads the host key at path, creating an ed25519 key in
// OpenSSH format when the file does not exist. An empty path yields an
// ephemeral key.
func LoadOrGenerateSigner(path string, logger *slog.Logger) (ssh.Signer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		logger.Warn("sshserver: no host key path, using an ephemeral key")
		return EphemeralSigner()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("sshserver: resolve host key path: %w", err)
	}

	signer, err := loadSigner(absPath)
	switch {
	case err == nil:
		return signer, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	logger.Info("sshserver: generating host key", "path", absPath)
	return generateAndStoreSigner(absPath)
}

func loadSigner(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("sshserver: parse host key %q: %w", path, err)
	}
	return signer, nil
}

func generateAndStoreSigner(path string) (ssh.Signer, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("sshserver: generate host key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(key, hostKeyComment)
	if err != nil {
		return nil, fmt.Errorf("sshserver: encode host key: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("sshserver: create host key dir %q: %w", dir, err)
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return nil, fmt.Errorf("sshserver: write host key %q: %w", path, err)
	}

	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		return nil, fmt.Errorf("sshserver: create signer: %w", err)
	}
	return signer, nil
}
