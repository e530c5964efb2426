package sshserver

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// HostKey is the identity the server presents to operators.
type HostKey struct {
	Signer ssh.Signer
	Path   string
	// Fingerprint is the SHA256 fingerprint operators see on first connect.
	Fingerprint string
	// Created is set when the key did not exist and was generated.
	Created bool
}

// LoadHostKey reads the host key at path. A missing key is replaced by a new
// ed25519 key so the fingerprint stays stable across restarts.
func LoadHostKey(path string) (HostKey, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return HostKey{}, errors.New("ssh host key path is required")
	}
	hk := HostKey{Path: path}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if hk.Signer, err = ssh.ParsePrivateKey(data); err != nil {
			return HostKey{}, fmt.Errorf("parse host key %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		if hk.Signer, err = createHostKey(path); err != nil {
			return HostKey{}, err
		}
		hk.Created = true
	default:
		return HostKey{}, fmt.Errorf("read host key: %w", err)
	}
	hk.Fingerprint = ssh.FingerprintSHA256(hk.Signer.PublicKey())
	return hk, nil
}

// createHostKey writes a new key to a temporary file in the key directory and
// renames it into place.
func createHostKey(path string) (ssh.Signer, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create host key dir: %w", err)
	}
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate host key: %w", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "ralph serve")
	if err != nil {
		return nil, fmt.Errorf("marshal host key: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".host-key-*")
	if err != nil {
		return nil, fmt.Errorf("write host key: %w", err)
	}
	cleanup := func(err error) (ssh.Signer, error) {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, err
	}
	if err := tmp.Chmod(0o600); err != nil {
		return cleanup(fmt.Errorf("chmod host key: %w", err))
	}
	if _, err := tmp.Write(pem.EncodeToMemory(block)); err != nil {
		return cleanup(fmt.Errorf("write host key: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return cleanup(fmt.Errorf("write host key: %w", err))
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("install host key: %w", err)
	}
	return ssh.NewSignerFromKey(priv)
}
