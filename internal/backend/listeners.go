package backend

import (
	"sync"

	"github.com/hitoshi/fanfootprint/internal/model"
)

type queuedEvent struct {
	event   AuthEvent
	session *model.AuthSession
}

// Listeners は認証状態リスナーの登録と非同期配信を行う。
// イベントは発生順に1つのgoroutineから逐次配信される。
type Listeners struct {
	mu       sync.Mutex
	nextID   int
	entries  map[int]AuthStateListener
	queue    []queuedEvent
	draining bool
	pending  sync.WaitGroup
}

// Add はリスナーを登録し、購読ハンドルを返す。
func (l *Listeners) Add(listener AuthStateListener) Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.entries == nil {
		l.entries = make(map[int]AuthStateListener)
	}
	id := l.nextID
	l.nextID++
	l.entries[id] = listener

	return &subscription{listeners: l, id: id}
}

// Len は登録中のリスナー数を返す。
func (l *Listeners) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Emit はイベントをキューに積み、配信goroutineを起動する。
// 呼び出し元はリスナーの完了を待たない。
func (l *Listeners) Emit(event AuthEvent, session *model.AuthSession) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var copied *model.AuthSession
	if session != nil {
		s := *session
		copied = &s
	}
	l.pending.Add(1)
	l.queue = append(l.queue, queuedEvent{event: event, session: copied})
	if !l.draining {
		l.draining = true
		go l.drain()
	}
}

// Flush はキュー内のイベントがすべて配信されるまで待つ。
func (l *Listeners) Flush() {
	l.pending.Wait()
}

func (l *Listeners) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.draining = false
			l.mu.Unlock()
			return
		}
		ev := l.queue[0]
		l.queue = l.queue[1:]
		targets := make([]AuthStateListener, 0, len(l.entries))
		for i := 0; i < l.nextID; i++ {
			if fn, ok := l.entries[i]; ok {
				targets = append(targets, fn)
			}
		}
		l.mu.Unlock()

		for _, fn := range targets {
			fn(ev.event, ev.session)
		}
		l.pending.Done()
	}
}

type subscription struct {
	listeners *Listeners
	id        int
	once      sync.Once
}

// Unsubscribe はリスナーの登録を解除する。複数回呼んでも安全。
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.listeners.mu.Lock()
		delete(s.listeners.entries, s.id)
		s.listeners.mu.Unlock()
	})
}
