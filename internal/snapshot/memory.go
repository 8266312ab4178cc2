package snapshot

import (
	"bytes"
	"context"
	"sync"

	"github.com/dmitrijs2005/mtms/internal/common"
	"github.com/dmitrijs2005/mtms/internal/models"
)

// Memory keeps the encoded snapshot in process memory. Going through the
// codec means callers never share pointers with the stored copy.
type Memory struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(_ context.Context) (*models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		return Empty(), nil
	}
	s, err := Decode(bytes.NewReader(m.data))
	if err != nil {
		return nil, common.Persistence("load snapshot", err)
	}
	return s, nil
}

func (m *Memory) Save(_ context.Context, s *models.Snapshot) error {
	var buf bytes.Buffer
	if err := Encode(&buf, s); err != nil {
		return common.Persistence("save snapshot", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = buf.Bytes()
	m.saves++
	return nil
}

// Saves reports how many successful saves have happened.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
