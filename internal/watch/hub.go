// Package watch 提供“提交后发布”的观察查询机制。
//
// 存储层每次提交变更后按表名发布通知；观察查询订阅其关心的表，
// 收到通知后重新计算一次结果并推送给全部订阅者（计算共享，不按
// 订阅者重复执行）。新订阅者立即收到最近一次计算的结果。
package watch

import "sync"

// Hub 表级变更通知中心
type Hub struct {
	mu   sync.Mutex
	subs map[int]*hubSub
	next int
}

type hubSub struct {
	tables map[string]struct{}
	notify chan struct{}
}

// NewHub 创建通知中心
func NewHub() *Hub {
	return &Hub{subs: make(map[int]*hubSub)}
}

// Publish 在一次提交后发布受影响的表名。
// 通知是合并式的：订阅方尚未消费上一次通知时不会重复排队。
func (h *Hub) Publish(tables ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		for _, table := range tables {
			if _, ok := sub.tables[table]; ok {
				select {
				case sub.notify <- struct{}{}:
				default:
				}
				break
			}
		}
	}
}

// subscribe 注册对一组表的变更监听，返回合并式通知通道
func (h *Hub) subscribe(tables []string) (int, chan struct{}) {
	set := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		set[t] = struct{}{}
	}
	sub := &hubSub{tables: set, notify: make(chan struct{}, 1)}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	h.subs[id] = sub
	return id, sub.notify
}

func (h *Hub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}
