package call

import (
	"errors"
	"hash/fnv"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrDuplicateSession 表示流标识已被注册
var ErrDuplicateSession = errors.New("call: duplicate session")

const defaultShards = 32

type registryShard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// Registry 是按流标识分片的并发会话表
type Registry struct {
	shards []*registryShard
	logger *zap.Logger
}

// NewRegistry 创建会话注册表；shards <= 0 时使用默认分片数
func NewRegistry(shards int, logger *zap.Logger) *Registry {
	if shards <= 0 {
		shards = defaultShards
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		shards: make([]*registryShard, shards),
		logger: logger.With(zap.String("component", "session_registry")),
	}
	for i := range r.shards {
		r.shards[i] = &registryShard{sessions: make(map[string]*Session)}
	}
	return r
}

func (r *Registry) shard(streamSID string) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(streamSID))
	return r.shards[h.Sum32()%uint32(len(r.shards))]
}

// Register 注册会话；同一流标识重复注册返回 ErrDuplicateSession
func (r *Registry) Register(s *Session) error {
	sh := r.shard(s.StreamSID())
	sh.mu.Lock()
	if _, exists := sh.sessions[s.StreamSID()]; exists {
		sh.mu.Unlock()
		return ErrDuplicateSession
	}
	sh.sessions[s.StreamSID()] = s
	sh.mu.Unlock()

	if others := r.ByCaller(s.CallerKey()); len(others) > 1 {
		r.logger.Warn("caller has concurrent sessions",
			zap.String("caller", s.CallerKey()),
			zap.Int("sessions", len(others)),
		)
	}
	return nil
}

// Get 按流标识查找会话
func (r *Registry) Get(streamSID string) (*Session, bool) {
	sh := r.shard(streamSID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok := sh.sessions[streamSID]
	return s, ok
}

// Remove 移除会话，返回是否存在
func (r *Registry) Remove(streamSID string) bool {
	sh := r.shard(streamSID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.sessions[streamSID]; !ok {
		return false
	}
	delete(sh.sessions, streamSID)
	return true
}

// Len 返回会话数
func (r *Registry) Len() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}

// Range 遍历会话，fn 返回 false 时停止。fn 在分片读锁内执行，不得回调 Registry 写方法。
func (r *Registry) Range(fn func(*Session) bool) {
	for _, sh := range r.shards {
		sh.mu.RLock()
		for _, s := range sh.sessions {
			if !fn(s) {
				sh.mu.RUnlock()
				return
			}
		}
		sh.mu.RUnlock()
	}
}

// ByCaller 返回同一来电号码的所有会话
func (r *Registry) ByCaller(callerKey string) []*Session {
	var out []*Session
	r.Range(func(s *Session) bool {
		if s.CallerKey() == callerKey {
			out = append(out, s)
		}
		return true
	})
	return out
}

// Snapshot 返回按开始时间排序的会话快照
func (r *Registry) Snapshot() []SessionInfo {
	var out []SessionInfo
	r.Range(func(s *Session) bool {
		out = append(out, s.Info())
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StreamSID < out[j].StreamSID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}
