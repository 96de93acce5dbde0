package handsfree

import (
	"sync"
	"time"
)

// mailbox упорядоченная очередь сообщений машины.
//
// Поддерживает обычную вставку в хвост, вставку в голову пачки отложенных сообщений
// с сохранением их взаимного порядка и отложенную вставку через Scheduler.
// Читает очередь ровно одна горутина.
type mailbox struct {
	mu     sync.Mutex
	queue  []message
	signal chan struct{}
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (m *mailbox) push(msg message) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMachineStopped
	}
	m.queue = append(m.queue, msg)
	m.mu.Unlock()
	m.wake()
	return nil
}

// pushFront ставит msgs в голову очереди в том же порядке.
func (m *mailbox) pushFront(msgs []message) {
	if len(msgs) == 0 {
		return
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	queue := make([]message, 0, len(msgs)+len(m.queue))
	queue = append(queue, msgs...)
	queue = append(queue, m.queue...)
	m.queue = queue
	m.mu.Unlock()
	m.wake()
}

func (m *mailbox) pop() (message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, false
	}
	msg := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	return msg, true
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.queue = nil
	m.mu.Unlock()
}

func (m *mailbox) wake() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// Timer отменяемая отложенная задача.
type Timer interface {
	Stop() bool
}

// Scheduler источник отложенных вызовов. По умолчанию time.AfterFunc,
// в тестах подменяется ручным планировщиком.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
