package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/model"
)

// File stores the state as a single JSON document. It has no compare-and-swap;
// concurrent writers must be serialized by the caller.
type File struct {
	path string
}

// NewFile creates a JSON file store at path. The directory is created on first save.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Name() string { return "file" }

// Path returns the location of the state file.
func (f *File) Path() string { return f.path }

func (f *File) Load(_ context.Context) (model.AlertState, uint64, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return model.NewAlertState(), 0, nil
	}
	if err != nil {
		return model.NewAlertState(), 0, fmt.Errorf("%w: read state file: %w", ErrUnreadable, err)
	}

	st, err := decodeState(data)
	if err != nil {
		return model.NewAlertState(), 0, err
	}
	return st, 0, nil
}

func (f *File) Save(_ context.Context, state model.AlertState, _ uint64) (uint64, error) {
	data, err := encodeState(state)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return 0, fmt.Errorf("create state directory: %w", err)
	}

	tmpFile := f.path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return 0, fmt.Errorf("write temp state file: %w", err)
	}
	if err := os.Rename(tmpFile, f.path); err != nil {
		_ = os.Remove(tmpFile)
		return 0, fmt.Errorf("rename temp state file: %w", err)
	}
	return 0, nil
}

func (f *File) Close() error { return nil }

func encodeState(state model.AlertState) ([]byte, error) {
	data, err := json.MarshalIndent(state.Normalize(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

func decodeState(data []byte) (model.AlertState, error) {
	var st model.AlertState
	if err := json.Unmarshal(data, &st); err != nil {
		return model.NewAlertState(), fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	return st.Normalize(), nil
}
