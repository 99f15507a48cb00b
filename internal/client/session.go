// client — клиентская сторона сессии: держит текущего пользователя,
// синхронизирует его с сервером через register/login/refresh/logout
// и решает, какие экраны доступны.
package client

import (
	"sync"

	"github.com/pribylovaa/go-todo-list/internal/models"
)

// State — снимок состояния сессии.
//   - User — текущий пользователь или nil;
//   - Loading — идёт register/login;
//   - Resolved — стартовая проверка сессии (CheckAuth) завершилась.
type State struct {
	User     *models.PublicUser
	Loading  bool
	Resolved bool
}

// Authenticated сообщает, есть ли пользователь.
func (s State) Authenticated() bool { return s.User != nil }

// Session — единственный источник правды о пользователе на клиенте.
// Меняется только операциями Client; читатели подписываются через Subscribe.
type Session struct {
	mu     sync.Mutex
	state  State
	nextID int
	subs   map[int]func(State)
}

// NewSession создаёт пустую сессию: пользователя нет, проверка не завершена.
func NewSession() *Session {
	return &Session{subs: make(map[int]func(State))}
}

// State возвращает копию текущего состояния.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot()
}

// Subscribe регистрирует fn, которая вызывается после каждого изменения.
// Возвращает функцию отписки.
func (s *Session) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// update применяет mutate под мьютексом и оповещает подписчиков вне его.
func (s *Session) update(mutate func(*State)) {
	s.mu.Lock()
	mutate(&s.state)
	snap := s.snapshot()
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (s *Session) snapshot() State {
	snap := s.state
	if snap.User != nil {
		u := *snap.User
		snap.User = &u
	}

	return snap
}
