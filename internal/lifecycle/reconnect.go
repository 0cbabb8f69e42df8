package lifecycle

import (
	"sync"
	"time"

	"github.com/chasqui-io/chasqui/internal/domain"
)

// DefaultRetryDelay is the fixed wait before a non-terminal disconnect is
// retried. There is deliberately no backoff growth or attempt cap: a
// flapping session keeps retrying at this cadence and surfaces its retry
// count through status instead.
const DefaultRetryDelay = 5 * time.Second

// Decision is the outcome of the reconnection policy for one disconnect.
type Decision int

const (
	DecisionReconnect Decision = iota
	DecisionTerminate
)

// Decide maps a canonical disconnect reason onto a policy decision. Pure;
// the terminal set is fixed by the reason taxonomy.
func Decide(reason domain.DisconnectReason) Decision {
	if reason.Terminal() {
		return DecisionTerminate
	}
	return DecisionReconnect
}

// retryTask is one scheduled reconnect attempt. Cancel stops the timer so
// a session removed mid-backoff cannot leave a dangling retry.
type retryTask struct {
	timer *time.Timer
	once  sync.Once
}

func (t *retryTask) Cancel() {
	t.once.Do(func() { t.timer.Stop() })
}

// retrySet tracks at most one pending retry per session.
type retrySet struct {
	mu    sync.Mutex
	tasks map[string]*retryTask
}

func newRetrySet() *retrySet {
	return &retrySet{tasks: make(map[string]*retryTask)}
}

// Schedule arms a retry for the session, replacing any pending one. The
// callback runs on the timer goroutine after the task has been unregistered,
// so Cancel during the wait always wins.
func (rs *retrySet) Schedule(sessionID string, delay time.Duration, fn func()) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if prev, ok := rs.tasks[sessionID]; ok {
		prev.Cancel()
	}

	task := &retryTask{}
	task.timer = time.AfterFunc(delay, func() {
		rs.mu.Lock()
		cur, ok := rs.tasks[sessionID]
		if ok && cur == task {
			delete(rs.tasks, sessionID)
		}
		rs.mu.Unlock()
		if !ok || cur != task {
			return
		}
		fn()
	})
	rs.tasks[sessionID] = task
}

// Cancel stops the pending retry for the session, if any.
func (rs *retrySet) Cancel(sessionID string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if task, ok := rs.tasks[sessionID]; ok {
		task.Cancel()
		delete(rs.tasks, sessionID)
	}
}

// CancelAll stops every pending retry.
func (rs *retrySet) CancelAll() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for id, task := range rs.tasks {
		task.Cancel()
		delete(rs.tasks, id)
	}
}
