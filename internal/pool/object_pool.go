// Package pool 提供逐帧音频计算使用的对象池，以及后台写入使用的有界协程池。
package pool

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// Pool 泛型对象池，记录取用与新建次数
type Pool[T any] struct {
	pool  sync.Pool
	reset func(*T)

	gets    atomic.Int64
	created atomic.Int64
}

// NewPool 创建对象池，reset 在归还时调用，可为 nil
func NewPool[T any](newFn func() T, reset func(*T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() any {
		p.created.Add(1)
		return newFn()
	}
	return p
}

// Get 取出一个对象
func (p *Pool[T]) Get() T {
	p.gets.Add(1)
	return p.pool.Get().(T)
}

// Put 重置并归还对象
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(&obj)
	}
	p.pool.Put(obj)
}

// Stats 返回取用统计
func (p *Pool[T]) Stats() Stats {
	return Stats{Gets: p.gets.Load(), Created: p.created.Load()}
}

// Stats 对象池统计
type Stats struct {
	Gets    int64 `json:"gets"`
	Created int64 `json:"created"`
}

// Reused 返回复用比例，未取用时为 0
func (s Stats) Reused() float64 {
	if s.Gets == 0 {
		return 0
	}
	return float64(s.Gets-s.Created) / float64(s.Gets)
}

// KeyedPool 按键懒创建子池，用于按窗口大小缓存变换计划
type KeyedPool[K comparable, T any] struct {
	pools sync.Map // K -> *Pool[T]
	newFn func(K) T
	reset func(*T)
}

// NewKeyedPool 创建按键分组的对象池
func NewKeyedPool[K comparable, T any](newFn func(K) T, reset func(*T)) *KeyedPool[K, T] {
	return &KeyedPool[K, T]{newFn: newFn, reset: reset}
}

// Get 取出 key 对应的对象
func (k *KeyedPool[K, T]) Get(key K) T { return k.sub(key).Get() }

// Put 归还 key 对应的对象
func (k *KeyedPool[K, T]) Put(key K, obj T) { k.sub(key).Put(obj) }

// Stats 返回每个键的统计
func (k *KeyedPool[K, T]) Stats() map[K]Stats {
	out := make(map[K]Stats)
	k.pools.Range(func(key, p any) bool {
		out[key.(K)] = p.(*Pool[T]).Stats()
		return true
	})
	return out
}

func (k *KeyedPool[K, T]) sub(key K) *Pool[T] {
	if p, ok := k.pools.Load(key); ok {
		return p.(*Pool[T])
	}
	p, _ := k.pools.LoadOrStore(key, NewPool(func() T { return k.newFn(key) }, k.reset))
	return p.(*Pool[T])
}

// BufferPool 复用请求体缓冲，超过上限的缓冲不回收
type BufferPool struct {
	pool        *Pool[*bytes.Buffer]
	maxRetained int
}

// NewBufferPool 创建缓冲池，initial 为新缓冲的初始容量
func NewBufferPool(initial, maxRetained int) *BufferPool {
	return &BufferPool{
		pool: NewPool(func() *bytes.Buffer {
			return bytes.NewBuffer(make([]byte, 0, initial))
		}, nil),
		maxRetained: maxRetained,
	}
}

// Get 取出一个空缓冲
func (b *BufferPool) Get() *bytes.Buffer { return b.pool.Get() }

// Put 归还缓冲，容量过大时丢弃
func (b *BufferPool) Put(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > b.maxRetained {
		return
	}
	buf.Reset()
	b.pool.Put(buf)
}

// Stats 返回取用统计
func (b *BufferPool) Stats() Stats { return b.pool.Stats() }

// UploadBuffers 上传音频的 multipart 请求体缓冲；一句话的 8kHz WAV 通常在 64KB 以内
var UploadBuffers = NewBufferPool(64<<10, 1<<20)
