package sse

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"email-digest/internal/model"
)

// Manager fans thread outcomes out to Server-Sent Event connections.
type Manager struct {
	clients    map[chan []byte]struct{}
	clientsMux sync.RWMutex
	logger     *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		clients: make(map[chan []byte]struct{}),
		logger:  logger.With("component", "sse"),
	}
}

// AddClient registers a new connection.
func (s *Manager) AddClient() chan []byte {
	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()

	channel := make(chan []byte, 10) // Buffered channel for this specific client
	s.clients[channel] = struct{}{}

	s.logger.Info("Added SSE client", "total_clients", len(s.clients))
	return channel
}

// RemoveClient unregisters a connection and closes its channel.
func (s *Manager) RemoveClient(channel chan []byte) {
	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()

	if _, exists := s.clients[channel]; !exists {
		return
	}
	delete(s.clients, channel)
	close(channel)

	s.logger.Info("Removed SSE client", "remaining_clients", len(s.clients))
}

// Publish sends an outcome event to every client. Slow clients miss events
// instead of holding up the reporter.
func (s *Manager) Publish(outcome model.Outcome) {
	s.Broadcast("thread_outcome", outcome)
}

// Broadcast sends a generic event to every client.
func (s *Manager) Broadcast(eventType string, data any) {
	event := map[string]any{
		"type": eventType,
		"data": data,
		"time": time.Now().Unix(),
	}

	jsonData, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal event", "type", eventType, "error", err)
		return
	}

	s.clientsMux.RLock()
	defer s.clientsMux.RUnlock()

	for channel := range s.clients {
		select {
		case channel <- jsonData:
		default:
			s.logger.Warn("Dropping event for slow SSE client", "type", eventType)
		}
	}
}

// Close disconnects every client.
func (s *Manager) Close() {
	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()

	for channel := range s.clients {
		close(channel)
		delete(s.clients, channel)
	}
}

func (s *Manager) ClientCount() int {
	s.clientsMux.RLock()
	defer s.clientsMux.RUnlock()
	return len(s.clients)
}
