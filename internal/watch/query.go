package watch

import (
	"context"
	"sync"
)

// Query 观察查询：绑定一组表与一个取数函数。
// 相关表每次发布变更后重新取数一次，结果广播给全部订阅者；
// 慢订阅者只会看到最新值，不会阻塞写入方。
type Query[T any] struct {
	hub    *Hub
	tables []string
	fetch  func(context.Context) (T, error)

	mu       sync.Mutex
	latest   T
	hasValue bool
	subs     map[int]chan T
	nextSub  int
	hubID    int
	stopCh   chan struct{}
	running  bool
	idle     func()
}

// NewQuery 创建观察查询。fetch 出错时保留上一次结果，本轮不推送。
func NewQuery[T any](hub *Hub, fetch func(context.Context) (T, error), tables ...string) *Query[T] {
	return &Query[T]{
		hub:    hub,
		tables: tables,
		fetch:  fetch,
		subs:   make(map[int]chan T),
	}
}

// OnIdle 注册最后一个订阅者退出后触发的回调，供持有方回收查询
// 实例。必须在首次 Subscribe 之前设置。
func (q *Query[T]) OnIdle(fn func()) {
	q.mu.Lock()
	q.idle = fn
	q.mu.Unlock()
}

// Subscribe 订阅查询结果。
// 返回的通道立即回放最近一次结果（无缓存时先同步取数一次，
// 保证拿到的是当前快照而非休眠期前的旧值），之后每次相关表
// 提交变更都会推送新结果。cancel 必须被调用以释放订阅；
// ctx 结束时订阅自动取消。
func (q *Query[T]) Subscribe(ctx context.Context) (<-chan T, func()) {
	q.mu.Lock()

	if !q.hasValue {
		q.mu.Unlock()
		if v, err := q.fetch(ctx); err == nil {
			q.mu.Lock()
			if !q.hasValue {
				q.latest = v
				q.hasValue = true
			}
			q.mu.Unlock()
		}
		q.mu.Lock()
	}

	ch := make(chan T, 1)
	q.nextSub++
	id := q.nextSub
	q.subs[id] = ch
	if q.hasValue {
		ch <- q.latest
	}
	if !q.running {
		q.hubID, q.running = q.startLocked()
	}
	q.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() { q.drop(id) })
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel
}

// startLocked 启动推送循环；调用方必须持有 q.mu
func (q *Query[T]) startLocked() (int, bool) {
	hubID, notify := q.hub.subscribe(q.tables)
	stopCh := make(chan struct{})
	q.stopCh = stopCh
	go func() {
		for {
			select {
			case <-stopCh:
				return
			case <-notify:
				q.refresh()
			}
		}
	}()
	return hubID, true
}

func (q *Query[T]) refresh() {
	v, err := q.fetch(context.Background())
	if err != nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	// 取数期间最后一个订阅者可能已退出，结果作废
	if !q.running {
		return
	}
	q.latest = v
	q.hasValue = true
	for _, ch := range q.subs {
		offer(ch, v)
	}
}

func (q *Query[T]) drop(id int) {
	q.mu.Lock()
	delete(q.subs, id)
	var idle func()
	if len(q.subs) == 0 && q.running {
		q.hub.unsubscribe(q.hubID)
		close(q.stopCh)
		q.running = false
		// 休眠期间的提交不会再触发重算，缓存随之作废；
		// 下一个订阅者重新取数拿当前快照
		var zero T
		q.latest = zero
		q.hasValue = false
		idle = q.idle
	}
	q.mu.Unlock()
	if idle != nil {
		idle()
	}
}

// offer 合并式发送：通道已满时先丢弃旧值，保证订阅者拿到最新值
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
