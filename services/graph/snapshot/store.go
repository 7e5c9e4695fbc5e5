// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianGraph/services/graph"
)

var (
	// ErrNotFound is returned when no snapshot has the requested name.
	ErrNotFound = errors.New("snapshot not found")

	// ErrInvalidName is returned for empty names or names containing '/'.
	ErrInvalidName = errors.New("invalid snapshot name")
)

const (
	docPrefix  = "graph/"
	infoPrefix = "info/"
)

// Info summarizes a stored snapshot without decoding it.
type Info struct {
	Name        string            `json:"name"`
	GraphName   string            `json:"graph_name"`
	Kind        graph.Kind        `json:"kind"`
	Mode        graph.StorageMode `json:"mode"`
	Vertices    int               `json:"vertices"`
	Edges       int               `json:"edges"`
	Bytes       int               `json:"bytes"`
	CreatedAt   time.Time         `json:"created_at"`
	Description string            `json:"description,omitempty"`
}

// Store saves graphs as snapshots in BadgerDB.
type Store struct {
	db       *badger.DB
	gc       *gcRunner
	inMemory bool
	logger   *slog.Logger
	now      func() time.Time
}

// Open opens a store. Close it when done.
//
// Description:
//
//	Opens BadgerDB at cfg.Path, or in memory when cfg.InMemory is set, and
//	starts value log GC when cfg.GCInterval is positive and the store is
//	on disk.
func Open(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, inMemory: cfg.InMemory, logger: logger, now: time.Now}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc = startGC(db, cfg.GCInterval, cfg.GCDiscardRatio, logger)
	}
	return s, nil
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
		s.gc = nil
	}
	return s.db.Close()
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (s *Store) update(ctx context.Context, fn func(*badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(fn)
}

func (s *Store) view(ctx context.Context, fn func(*badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

// Save stores g under name, replacing any earlier snapshot.
func (s *Store) Save(ctx context.Context, name string, g *graph.Graph) (Info, error) {
	if err := validName(name); err != nil {
		return Info{}, err
	}
	doc := Encode(g)
	data, err := json.Marshal(doc)
	if err != nil {
		return Info{}, fmt.Errorf("encoding snapshot %s: %w", name, err)
	}
	info := Info{
		Name:        name,
		GraphName:   doc.Name,
		Kind:        doc.Kind,
		Mode:        doc.Mode,
		Vertices:    len(doc.Vertices),
		Edges:       len(doc.Edges),
		Bytes:       len(data),
		CreatedAt:   s.now().UTC(),
		Description: doc.Description,
	}
	meta, err := json.Marshal(info)
	if err != nil {
		return Info{}, fmt.Errorf("encoding snapshot info %s: %w", name, err)
	}
	err = s.update(ctx, func(txn *badger.Txn) error {
		if err := txn.Set([]byte(docPrefix+name), data); err != nil {
			return err
		}
		return txn.Set([]byte(infoPrefix+name), meta)
	})
	if err != nil {
		return Info{}, fmt.Errorf("saving snapshot %s: %w", name, err)
	}
	s.logger.Debug("graph snapshot saved",
		slog.String("snapshot", name),
		slog.Int("vertices", info.Vertices),
		slog.Int("edges", info.Edges),
		slog.Int("bytes", info.Bytes))
	return info, nil
}

// Load decodes the snapshot stored under name into a new graph with memory
// metadata.
func (s *Store) Load(ctx context.Context, name string) (*graph.Graph, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	var doc Document
	err := s.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(docPrefix + name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", name, err)
	}
	return Decode(doc)
}

// List returns every snapshot ordered by name.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	var out []Info
	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(infoPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var info Info
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &info)
			}); err != nil {
				return fmt.Errorf("decoding %s: %w", it.Item().Key(), err)
			}
			out = append(out, info)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	return out, nil
}

// Delete removes the snapshot stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	err := s.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(infoPrefix + name)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, name)
			}
			return err
		}
		if err := txn.Delete([]byte(docPrefix + name)); err != nil {
			return err
		}
		return txn.Delete([]byte(infoPrefix + name))
	})
	if err != nil {
		return fmt.Errorf("deleting snapshot %s: %w", name, err)
	}
	return nil
}
