// Package filestore keeps the snapshot as a single JSON document on the
// local filesystem.
package filestore

import (
	"bytes"
	"context"
	"io"

	"github.com/dmitrijs2005/mtms/internal/common"
	"github.com/dmitrijs2005/mtms/internal/filex"
	"github.com/dmitrijs2005/mtms/internal/models"
	"github.com/dmitrijs2005/mtms/internal/snapshot"
)

type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Load reads the snapshot file. A missing or empty file is an empty
// snapshot.
func (s *Store) Load(_ context.Context) (*models.Snapshot, error) {
	data, ok, err := filex.ReadIfExists(s.path)
	if err != nil {
		return nil, common.Persistence("load snapshot", err)
	}
	if !ok {
		return snapshot.Empty(), nil
	}

	snap, err := snapshot.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, common.Persistence("load snapshot", err)
	}
	return snap, nil
}

func (s *Store) Save(ctx context.Context, snap *models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return common.Persistence("save snapshot", err)
	}
	err := filex.WriteAtomic(s.path, 0o600, func(w io.Writer) error {
		return snapshot.Encode(w, snap)
	})
	return common.Persistence("save snapshot", err)
}
