package events

import (
	"errors"
	"log/slog"
	"math"
	"sort"
	"sync"

	"robohost/server/domain"
)

const (
	DefaultMaxQueueSize  = 256
	DefaultMaxEventStack = 2

	idlePriority = math.MinInt
)

// ErrEventInterrupted は同じ優先度の新しいイベントで実行中のハンドラを打ち切るときに返る。
// 外側のProcessEventsが受け止め、呼び出し元には伝わらない。
var ErrEventInterrupted = errors.New("event handler interrupted")

// Handler はイベント種別ごとのハンドラ
type Handler func(ev domain.Event) error

type Options struct {
	MaxQueueSize  int
	MaxEventStack int64
	// Fatal がtrueを返すハンドラエラーはログせずにProcessEventsから返す
	Fatal  func(error) bool
	Logger *slog.Logger
}

type entry struct {
	ev       domain.Event
	priority int
	seq      uint64
}

// before はaがbより先に配送されるべきかを返す
func (a entry) before(b entry) bool {
	if a.ev.EventTime() != b.ev.EventTime() {
		return a.ev.EventTime() < b.ev.EventTime()
	}
	return a.priority > b.priority
}

// Manager はイベントを(時刻昇順, 優先度降順, 到着順)で保持し配送する
type Manager struct {
	opts  Options
	clock func() int64

	mu     sync.Mutex
	queue  []entry
	seq    uint64
	custom []*domain.Condition

	priorities    [domain.NumEventKinds]int
	handlers      [domain.NumEventKinds]Handler
	interruptible [domain.MaxPriority + 1]bool
	staleWarned   [domain.NumEventKinds]bool

	topPriority int
	topEvent    domain.Event
	testing     bool
}

// New はclockで現在ターンを得るManagerを生成する
func New(clock func() int64, opts Options) *Manager {
	if opts.MaxQueueSize <= 0 {
		opts.MaxQueueSize = DefaultMaxQueueSize
	}
	if opts.MaxEventStack <= 0 {
		opts.MaxEventStack = DefaultMaxEventStack
	}
	if opts.Fatal == nil {
		opts.Fatal = func(error) bool { return false }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	m := &Manager{opts: opts, clock: clock}
	for k := range m.priorities {
		m.priorities[k] = domain.EventKind(k).DefaultPriority()
	}
	m.Reset()
	return m
}

// Handle は種別kindのハンドラを登録する。nilで解除。
func (m *Manager) Handle(kind domain.EventKind, h Handler) {
	if int(kind) >= len(m.handlers) {
		return
	}
	m.handlers[kind] = h
}

func (m *Manager) priorityOf(ev domain.Event) int {
	if c, ok := ev.(*domain.CustomEvent); ok && c.Condition != nil {
		return c.Condition.Priority
	}
	k := ev.Kind()
	if int(k) >= len(m.priorities) {
		return domain.DefaultEventPriority
	}
	return m.priorities[k]
}

// Add はイベントをキューに入れる。優先度はこの時点で確定する。
func (m *Manager) Add(ev domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) >= m.opts.MaxQueueSize {
		m.opts.Logger.Warn("event queue full, event not added",
			"kind", ev.Kind(), "max", m.opts.MaxQueueSize)
		return
	}
	m.seq++
	e := entry{ev: ev, priority: m.priorityOf(ev), seq: m.seq}
	i := sort.Search(len(m.queue), func(i int) bool { return e.before(m.queue[i]) })
	m.queue = append(m.queue, entry{})
	copy(m.queue[i+1:], m.queue[i:])
	m.queue[i] = e
}

// ProcessEvents は現在ターンまでのイベントを順に配送する。
//
// ハンドラ実行中に再入した場合、実行中の優先度より高いイベントだけを配送する。
// 同じ優先度のイベントはその優先度が割り込み可能なときに限り
// ErrEventInterruptedを返して実行中のハンドラを打ち切らせる。
func (m *Manager) ProcessEvents() error {
	now := m.clock()
	m.dropStale(now)
	m.testConditions(now)

	for {
		e, ok := m.peek()
		if !ok || e.priority < m.topPriority {
			return nil
		}
		if e.priority == m.topPriority {
			if m.IsInterruptible(m.topPriority) {
				m.SetInterruptible(m.topPriority, false)
				return ErrEventInterrupted
			}
			return nil
		}

		m.remove(e.seq)
		oldPriority, oldEvent := m.topPriority, m.topEvent
		m.topPriority, m.topEvent = e.priority, e.ev

		err := m.dispatch(e.ev, now)
		if err == nil {
			m.SetInterruptible(m.topPriority, false)
		}
		m.topPriority, m.topEvent = oldPriority, oldEvent

		switch {
		case err == nil, errors.Is(err, ErrEventInterrupted):
		case m.opts.Fatal(err):
			return err
		default:
			m.opts.Logger.Warn("event handler failed", "kind", e.ev.Kind(), "err", err)
		}
	}
}

func (m *Manager) dispatch(ev domain.Event, now int64) error {
	kind := ev.Kind()
	if ev.EventTime() <= now-m.opts.MaxEventStack && !kind.IsReserved() {
		return nil
	}
	if int(kind) >= len(m.handlers) || m.handlers[kind] == nil {
		return nil
	}
	return m.handlers[kind](ev)
}

func (m *Manager) peek() (entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return entry{}, false
	}
	return m.queue[0], true
}

func (m *Manager) remove(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.queue {
		if e.seq == seq {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}

// dropStale は古すぎる非予約イベントを捨てる。警告は種別ごとに1回。
func (m *Manager) dropStale(now int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit := now - m.opts.MaxEventStack
	kept := m.queue[:0]
	for _, e := range m.queue {
		kind := e.ev.Kind()
		if e.ev.EventTime() <= limit && !kind.IsReserved() {
			if int(kind) < len(m.staleWarned) && !m.staleWarned[kind] {
				m.staleWarned[kind] = true
				m.opts.Logger.Warn("discarding stale event", "kind", kind, "time", e.ev.EventTime(), "now", now)
			}
			continue
		}
		kept = append(kept, e)
	}
	m.queue = kept
}

func (m *Manager) testConditions(now int64) {
	m.mu.Lock()
	conds := append([]*domain.Condition(nil), m.custom...)
	m.mu.Unlock()

	for _, c := range conds {
		m.testing = true
		ok := c.Test != nil && c.Test()
		m.testing = false
		if ok {
			m.Add(&domain.CustomEvent{EventHeader: domain.EventHeader{Time: now}, Condition: c})
		}
	}
}

// TestingCondition はカスタム条件の評価中かどうか
func (m *Manager) TestingCondition() bool { return m.testing }

// Reset はキューとカスタム条件を空にする
func (m *Manager) Reset() {
	m.mu.Lock()
	m.queue = nil
	m.custom = nil
	m.mu.Unlock()
	m.topPriority = idlePriority
	m.topEvent = nil
}

// ClearAllEvents はキューを空にする。includeReservedがfalseなら予約イベントは残す。
func (m *Manager) ClearAllEvents(includeReserved bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.queue[:0]
	for _, e := range m.queue {
		if !includeReserved && e.ev.Kind().IsReserved() {
			kept = append(kept, e)
		}
	}
	m.queue = kept
}

func (m *Manager) AddCustomEvent(c *domain.Condition) {
	if c == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.custom = append(m.custom, c)
}

func (m *Manager) RemoveCustomEvent(c *domain.Condition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, x := range m.custom {
		if x == c {
			m.custom = append(m.custom[:i], m.custom[i+1:]...)
			return
		}
	}
}

func (m *Manager) ResetCustomEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.custom = nil
}

// SetEventPriority は種別の優先度を[0,99]に丸めて設定する。予約種別は変更できない。
// 既にキューにあるイベントの優先度は変わらない。
func (m *Manager) SetEventPriority(kind domain.EventKind, priority int) {
	if int(kind) >= len(m.priorities) || kind == 0 {
		m.opts.Logger.Warn("unknown event kind", "kind", kind)
		return
	}
	if kind.IsReserved() {
		m.opts.Logger.Warn("priority of a system event may not be changed", "kind", kind)
		return
	}
	m.priorities[kind] = min(max(priority, domain.MinPriority), domain.MaxPriority)
}

func (m *Manager) EventPriority(kind domain.EventKind) int {
	if int(kind) >= len(m.priorities) {
		return -1
	}
	return m.priorities[kind]
}

// SetInterruptible は優先度priorityのハンドラを同優先度のイベントで打ち切れるようにする
func (m *Manager) SetInterruptible(priority int, v bool) {
	if priority >= domain.MinPriority && priority <= domain.MaxPriority {
		m.interruptible[priority] = v
	}
}

func (m *Manager) IsInterruptible(priority int) bool {
	if priority < domain.MinPriority || priority > domain.MaxPriority {
		return false
	}
	return m.interruptible[priority]
}

// CurrentTopEvent は実行中のハンドラが処理しているイベント。ハンドラ外ではnil。
func (m *Manager) CurrentTopEvent() domain.Event { return m.topEvent }

func (m *Manager) CurrentTopEventPriority() int { return m.topPriority }

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// AllEvents はキュー中のイベントを配送順で返す
func (m *Manager) AllEvents() []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Event, len(m.queue))
	for i, e := range m.queue {
		out[i] = e.ev
	}
	return out
}

// EventsOf はキュー中のT型イベントだけを返す
func EventsOf[T domain.Event](m *Manager) []T {
	var out []T
	for _, ev := range m.AllEvents() {
		if t, ok := ev.(T); ok {
			out = append(out, t)
		}
	}
	return out
}
