package redlockleader

import (
	"sync"

	"github.com/torghul/redlock-leader/internal/logging"
	"github.com/torghul/redlock-leader/types"
)

// recordingLogger captures warnings and discards everything else.
type recordingLogger struct {
	logging.NopLogger

	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.warns...)
}

// recordingMetrics counts election metrics.
type recordingMetrics struct {
	mu           sync.Mutex
	toLeader     int
	toNotLeader  int
	clientErrors int
	lockOps      map[string]int
}

var _ types.MetricsCollector = (*recordingMetrics)(nil)

func (m *recordingMetrics) RecordLeadershipChange(isLeader bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if isLeader {
		m.toLeader++
	} else {
		m.toNotLeader++
	}
}

func (m *recordingMetrics) RecordClientError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clientErrors++
}

func (m *recordingMetrics) RecordEventDropped(types.EventKind) {}

func (m *recordingMetrics) RecordLockOperation(operation string, success bool, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lockOps == nil {
		m.lockOps = make(map[string]int)
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.lockOps[operation+"/"+result]++
}

func (m *recordingMetrics) snapshot() (toLeader, toNotLeader, clientErrors int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.toLeader, m.toNotLeader, m.clientErrors
}

func (m *recordingMetrics) ops(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lockOps[key]
}

// eventLog records every event an elector emits.
type eventLog struct {
	mu     sync.Mutex
	events []types.Event
}

func watch(e *Elector) *eventLog {
	log := &eventLog{}
	for _, kind := range []types.EventKind{EventElected, EventExtended, EventRevoked, EventError} {
		e.On(kind, func(ev types.Event) {
			log.mu.Lock()
			defer log.mu.Unlock()
			log.events = append(log.events, ev)
		})
	}

	return log
}

func (l *eventLog) kinds() []types.EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()

	kinds := make([]types.EventKind, len(l.events))
	for i, ev := range l.events {
		kinds[i] = ev.Kind
	}

	return kinds
}

func (l *eventLog) all() []types.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]types.Event(nil), l.events...)
}
