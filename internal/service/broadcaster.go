package service

import (
	"sync"

	"copilot/internal/model"
)

// broadcaster 向订阅者推送快照
// 每个订阅者缓冲 1 个，慢订阅者只会丢掉旧快照，拿到最新的，发布方永不阻塞
type broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan model.Snapshot
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan model.Snapshot)}
}

// subscribe 注册订阅者并放入初始快照，返回的 cancel 可重复调用
func (b *broadcaster) subscribe(initial model.Snapshot) (<-chan model.Snapshot, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan model.Snapshot, 1)
	ch <- initial
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// publish 非阻塞推送
func (b *broadcaster) publish(snap model.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		snap := snap.Clone()
		select {
		case ch <- snap:
			continue
		default:
		}
		// 丢弃未读的旧快照
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// count 订阅者数量
func (b *broadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
