package credentials

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// FileSource reads the OAuth credentials JSON written by the CLI.
type FileSource struct {
	path string
}

// NewFileSource creates a source backed by the credentials file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return "file" }

func (s *FileSource) Credential(_ context.Context) (*Credential, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoCredential
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	return parseOAuth(data)
}

// commandRunner executes a command and returns its stdout.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// KeychainSource reads the credentials JSON from the macOS login keychain.
type KeychainSource struct {
	service string
	timeout time.Duration
	run     commandRunner
}

// NewKeychainSource creates a source that looks up the generic password for service.
func NewKeychainSource(service string) *KeychainSource {
	return &KeychainSource{
		service: service,
		timeout: 10 * time.Second,
		run:     execRunner,
	}
}

func (s *KeychainSource) Name() string { return "keychain" }

func (s *KeychainSource) Credential(ctx context.Context) (*Credential, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.run(ctx, "security", "find-generic-password", "-s", s.service, "-w")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, ErrNoCredential
		}
		return nil, fmt.Errorf("read keychain: %w", err)
	}

	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, ErrNoCredential
	}
	return parseOAuth(out)
}

// StaticSource serves a fixed token with no expiry, typically from the environment.
type StaticSource struct {
	token string
}

// NewStaticSource creates a source for a fixed token.
func NewStaticSource(token string) *StaticSource {
	return &StaticSource{token: token}
}

func (s *StaticSource) Name() string { return "env" }

func (s *StaticSource) Credential(_ context.Context) (*Credential, error) {
	if s.token == "" {
		return nil, ErrNoCredential
	}
	return &Credential{Token: s.token}, nil
}
