package alert

import (
	"fmt"
	"sync"
)

// Publisher delivers alert payloads to provider-facing topics.
type Publisher interface {
	Publish(topic string, payload []byte) error
	Disconnect()
}

// MockPublisher is a simple publisher used in tests.
type MockPublisher struct {
	mu       sync.Mutex
	Messages map[string][][]byte
	FailAll  bool
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{Messages: make(map[string][][]byte)}
}

// Publish records the payload under the topic or fails when configured to.
func (m *MockPublisher) Publish(topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll {
		return fmt.Errorf("publish failed")
	}
	m.Messages[topic] = append(m.Messages[topic], payload)
	return nil
}

// Disconnect is a no-op.
func (m *MockPublisher) Disconnect() {}

// Topics returns the topics that received at least one message.
func (m *MockPublisher) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Messages))
	for t := range m.Messages {
		out = append(out, t)
	}
	return out
}

// Payloads returns the messages recorded for the topic.
func (m *MockPublisher) Payloads(topic string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Messages[topic]
}
