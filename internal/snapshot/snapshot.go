// Package snapshot defines the persistence contract of the MTMS core and the
// versioned JSON document every backend reads and writes.
//
// An Adapter knows nothing about business rules: it stores and returns whole
// snapshots. Backends live in the filestore, sqlstore and s3store
// subpackages; Memory is provided here for tests and ephemeral runs.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dmitrijs2005/mtms/internal/common"
	"github.com/dmitrijs2005/mtms/internal/models"
)

// CurrentSchemaVersion is written into every saved snapshot.
const CurrentSchemaVersion = 1

// Adapter loads and saves complete snapshots.
type Adapter interface {
	// Load returns the last saved snapshot, or an empty one when nothing
	// has been saved yet.
	Load(ctx context.Context) (*models.Snapshot, error)
	// Save durably replaces the stored snapshot. It either fully succeeds
	// or leaves the previous snapshot in place.
	Save(ctx context.Context, s *models.Snapshot) error
}

// Empty returns a snapshot with no records at the current schema version.
func Empty() *models.Snapshot {
	return &models.Snapshot{
		SchemaVersion: CurrentSchemaVersion,
		Users:         []models.User{},
		Transfers:     []models.Transfer{},
	}
}

// Normalize fills in defaults for fields that older documents may lack.
func Normalize(s *models.Snapshot) (*models.Snapshot, error) {
	if s == nil {
		return Empty(), nil
	}
	switch {
	case s.SchemaVersion == 0:
		// written before the version field existed
		s.SchemaVersion = CurrentSchemaVersion
	case s.SchemaVersion > CurrentSchemaVersion:
		return nil, fmt.Errorf("%w: %d (max %d)", common.ErrUnsupportedSchema, s.SchemaVersion, CurrentSchemaVersion)
	}
	if s.Users == nil {
		s.Users = []models.User{}
	}
	if s.Transfers == nil {
		s.Transfers = []models.Transfer{}
	}
	return s, nil
}

// Encode writes s as an indented JSON document stamped with the current
// schema version.
func Encode(w io.Writer, s *models.Snapshot) error {
	out := *s
	out.SchemaVersion = CurrentSchemaVersion
	if out.Users == nil {
		out.Users = []models.User{}
	}
	if out.Transfers == nil {
		out.Transfers = []models.Transfer{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&out); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// Decode reads a JSON document produced by Encode (or by an older release).
// An empty input is treated as an empty snapshot.
func Decode(r io.Reader) (*models.Snapshot, error) {
	s := &models.Snapshot{}
	if err := json.NewDecoder(r).Decode(s); err != nil {
		if err == io.EOF {
			return Empty(), nil
		}
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return Normalize(s)
}
