package sshserver

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
)

// AuthorizedKeys is a parsed OpenSSH authorized_keys file.
type AuthorizedKeys struct {
	keys [][]byte
}

// LoadAuthorizedKeys parses path. Blank lines and comments are skipped; a
// malformed entry is an error naming its line.
func LoadAuthorizedKeys(path string) (*AuthorizedKeys, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("authorized keys path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read authorized keys: %w", err)
	}
	out := &AuthorizedKeys{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("authorized keys %s:%d: %w", path, lineNo, err)
		}
		out.keys = append(out.keys, key.Marshal())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read authorized keys: %w", err)
	}
	return out, nil
}

// Len returns the number of keys.
func (a *AuthorizedKeys) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// Allows reports whether key is listed.
func (a *AuthorizedKeys) Allows(key ssh.PublicKey) bool {
	if a == nil || key == nil {
		return false
	}
	wire := key.Marshal()
	for _, k := range a.keys {
		if bytes.Equal(k, wire) {
			return true
		}
	}
	return false
}
