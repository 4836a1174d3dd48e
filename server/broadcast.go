package server

// This file contains the WebSocket hub and the refresh lifecycle event
// broadcasts pushed to connected clients:
// - refresh_started (a fetch is in flight)
// - snapshot_installed (a new snapshot was published)
// - refresh_failed (the attempt failed; any prior snapshot remains)

import (
	"time"

	"github.com/aphelion-labs/meteorid/refresh"
)

// RefreshEventMessage is the wire shape of a refresh lifecycle event.
type RefreshEventMessage struct {
	Type      string `json:"type"`
	Trigger   string `json:"trigger,omitempty"`
	Records   int    `json:"records,omitempty"`
	FetchedAt string `json:"fetched_at,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// RefreshStarted implements refresh.Broadcaster.
func (s *Server) RefreshStarted(trigger refresh.Trigger) {
	s.broadcastMessage(RefreshEventMessage{
		Type:      "refresh_started",
		Trigger:   string(trigger),
		Timestamp: time.Now().Unix(),
	})
}

// SnapshotInstalled implements refresh.Broadcaster.
func (s *Server) SnapshotInstalled(rows int, fetchedAt time.Time) {
	s.broadcastMessage(RefreshEventMessage{
		Type:      "snapshot_installed",
		Records:   rows,
		FetchedAt: fetchedAt.UTC().Format(time.RFC3339),
		Timestamp: time.Now().Unix(),
	})
}

// RefreshFailed implements refresh.Broadcaster.
func (s *Server) RefreshFailed(trigger refresh.Trigger, err error) {
	s.broadcastMessage(RefreshEventMessage{
		Type:      "refresh_failed",
		Trigger:   string(trigger),
		Error:     err.Error(),
		Timestamp: time.Now().Unix(),
	})
}

// broadcastMessage queues a message for the hub. Non-blocking: events are
// dropped when the hub queue is full rather than stalling a refresh.
func (s *Server) broadcastMessage(msg interface{}) {
	select {
	case s.broadcast <- msg:
	default:
		s.logger.Debugw("Broadcast queue full, dropping event")
	}
}

// runHub is the single goroutine that owns client registration and fan-out.
func (s *Server) runHub() {
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debugw("WebSocket hub stopping")
			return

		case client := <-s.register:
			s.mu.Lock()
			if len(s.clients) >= maxClients {
				s.mu.Unlock()
				s.logger.Warnw("Client limit reached, rejecting connection",
					"limit", maxClients)
				client.close()
				continue
			}
			s.clients[client] = true
			count := len(s.clients)
			s.mu.Unlock()
			s.logger.Debugw("WebSocket client connected",
				"client", shortID(client.id), "total", count)

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
			count := len(s.clients)
			s.mu.Unlock()
			s.logger.Debugw("WebSocket client disconnected",
				"client", shortID(client.id), "total", count)

		case msg := <-s.broadcast:
			s.mu.RLock()
			for client := range s.clients {
				select {
				case client.send <- msg:
				default:
					// Slow client, skip this event
				}
			}
			s.mu.RUnlock()
		}
	}
}
