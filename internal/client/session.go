package client

import (
	"sync"

	"github.com/dcrodman/noughts/internal/protocol"
)

// Session is a snapshot of who the client is playing as.
type Session struct {
	UserName  string
	EnemyName string
	Mark      protocol.Mark
}

// sessionState is written once by Start (the user name) and afterwards only by
// the listener goroutine. The lock lets other goroutines read a consistent
// snapshot.
type sessionState struct {
	mu        sync.RWMutex
	userName  string
	enemyName string
	mark      protocol.Mark
}

func (s *sessionState) snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Session{UserName: s.userName, EnemyName: s.enemyName, Mark: s.mark}
}

func (s *sessionState) setUserName(name string) {
	s.mu.Lock()
	s.userName = name
	s.mu.Unlock()
}

func (s *sessionState) startGame(enemy string, mark protocol.Mark) {
	s.mu.Lock()
	s.enemyName = enemy
	s.mark = mark
	s.mu.Unlock()
}
