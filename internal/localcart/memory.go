package localcart

import (
	"context"
	"sync"

	"bookstore/internal/domain/carts"

	"go.uber.org/zap"
)

// Memory keeps encoded guest carts in process memory. Slots share one Memory.
type Memory struct {
	mu     sync.RWMutex
	data   map[string][]byte
	logger *zap.SugaredLogger
}

func NewMemory(logger *zap.SugaredLogger) *Memory {
	return &Memory{data: make(map[string][]byte), logger: logger}
}

// Slot returns the Store for one slot.
func (m *Memory) Slot(slot string) Store {
	return &memorySlot{m: m, key: Key(slot)}
}

// Put stores raw bytes under a slot, bypassing the codec.
func (m *Memory) Put(slot string, raw []byte) {
	m.mu.Lock()
	m.data[Key(slot)] = raw
	m.mu.Unlock()
}

type memorySlot struct {
	m   *Memory
	key string
}

func (s *memorySlot) Load(ctx context.Context) (carts.Cart, error) {
	s.m.mu.RLock()
	raw := s.m.data[s.key]
	s.m.mu.RUnlock()

	c, err := Decode(raw)
	return recoverCorrupt(s.m.logger, s.key, c, err)
}

func (s *memorySlot) Save(ctx context.Context, c carts.Cart) error {
	raw, err := Encode(c)
	if err != nil {
		return err
	}
	s.m.mu.Lock()
	s.m.data[s.key] = raw
	s.m.mu.Unlock()
	return nil
}

func (s *memorySlot) Clear(ctx context.Context) error {
	s.m.mu.Lock()
	delete(s.m.data, s.key)
	s.m.mu.Unlock()
	return nil
}
