package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/model"
)

// NATSConfig locates the JetStream key-value entry holding the state.
type NATSConfig struct {
	URL          []string
	Bucket       string
	Key          string
	CreateBucket bool
}

// NATS stores the state in a JetStream KV bucket, using the entry revision
// for compare-and-swap so several hosts can share one state safely.
type NATS struct {
	nc  *nats.Conn
	kv  nats.KeyValue
	key string
}

// NewNATS connects to NATS and opens (or creates) the KV bucket.
func NewNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.Key == "" {
		cfg.Key = "alert_state"
	}

	nc, err := nats.Connect(strings.Join(cfg.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	kv, err := js.KeyValue(cfg.Bucket)
	if err != nil {
		if !cfg.CreateBucket {
			nc.Close()
			return nil, fmt.Errorf("open state bucket %q: %w", cfg.Bucket, err)
		}
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:  cfg.Bucket,
			History: 5,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create state bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &NATS{nc: nc, kv: kv, key: cfg.Key}, nil
}

func (s *NATS) Name() string { return "nats" }

func (s *NATS) Load(_ context.Context) (model.AlertState, uint64, error) {
	entry, err := s.kv.Get(s.key)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return model.NewAlertState(), 0, nil
		}
		return model.NewAlertState(), 0, fmt.Errorf("%w: get state: %w", ErrUnreadable, err)
	}

	st, err := decodeState(entry.Value())
	if err != nil {
		return model.NewAlertState(), entry.Revision(), err
	}
	return st, entry.Revision(), nil
}

func (s *NATS) Save(_ context.Context, state model.AlertState, revision uint64) (uint64, error) {
	body, err := encodeState(state)
	if err != nil {
		return 0, err
	}

	var rev uint64
	if revision == 0 {
		rev, err = s.kv.Create(s.key, body)
	} else {
		rev, err = s.kv.Update(s.key, body, revision)
	}
	if err != nil {
		if errors.Is(err, nats.ErrKeyExists) || strings.Contains(strings.ToLower(err.Error()), "wrong last sequence") {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("put state: %w", err)
	}
	return rev, nil
}

// Close closes the underlying NATS connection.
func (s *NATS) Close() error {
	s.nc.Close()
	return nil
}

