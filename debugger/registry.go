package debugger

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/fansqz/gdber/config"
	"github.com/fansqz/gdber/metrics"
	"github.com/fansqz/gdber/utils"
)

// sessionEntry 注册表里的一个会话和它的回收计时器
type sessionEntry struct {
	session *Session
	reaper  *utils.TimeoutManager
}

// Registry 会话注册表
// 按会话id懒创建会话。最后一个客户端断开后留一个宽限期再回收，
// 宽限期内重连可以无缝接回原会话，断点、日志和进程都还在。
type Registry struct {
	lock    sync.Mutex
	entries map[string]*sessionEntry
	config  *config.Config
	spawn   SpawnFunc
}

func NewRegistry(cfg *config.Config, spawn SpawnFunc) *Registry {
	return &Registry{
		entries: make(map[string]*sessionEntry),
		config:  cfg,
		spawn:   spawn,
	}
}

// GetOrCreate 获取会话，不存在时创建
func (r *Registry) GetOrCreate(id string) *Session {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.entryLocked(id).session
}

// Get 获取已存在的会话
func (r *Registry) Get(id string) (*Session, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return entry.session, true
}

// Attach 把一个客户端通道接入会话，取消可能在跑的回收计时
// 接入和回收都串行在注册表锁上，重连不会接到一个正在被回收的会话。
func (r *Registry) Attach(id string, channel Channel) *Session {
	r.lock.Lock()
	defer r.lock.Unlock()
	entry := r.entryLocked(id)
	entry.reaper.Cancel()
	entry.session.Attach(channel)
	return entry.session
}

// Detach 把一个客户端通道从会话移除，没有客户端时启动回收计时
func (r *Registry) Detach(id string, channelID string) {
	r.lock.Lock()
	entry, ok := r.entries[id]
	r.lock.Unlock()
	if !ok {
		return
	}
	if entry.session.Detach(channelID) > 0 {
		return
	}
	grace := r.config.Session.GracePeriod
	if grace <= 0 {
		r.reap(id)
		return
	}
	logrus.Infof("[registry] session idle, reap in %s, session = %s", grace, id)
	entry.reaper.Start(context.Background(), grace, func() {
		r.reap(id)
	})
}

// Count 当前会话数
func (r *Registry) Count() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.entries)
}

// Shutdown 关闭所有会话
func (r *Registry) Shutdown() error {
	r.lock.Lock()
	entries := make([]*sessionEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	r.entries = make(map[string]*sessionEntry)
	metrics.ActiveSessions.Set(0)
	r.lock.Unlock()

	var errs error
	for _, entry := range entries {
		entry.reaper.Cancel()
		if err := entry.session.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

func (r *Registry) entryLocked(id string) *sessionEntry {
	if entry, ok := r.entries[id]; ok {
		return entry
	}
	entry := &sessionEntry{
		session: NewSession(id, r.config, r.spawn),
		reaper:  utils.NewTimeoutManager(),
	}
	r.entries[id] = entry
	metrics.ActiveSessions.Set(float64(len(r.entries)))
	logrus.Infof("[registry] session created, session = %s", id)
	return entry
}

// reap 回收一个空闲会话，宽限期内有客户端重连则放弃
func (r *Registry) reap(id string) {
	var victim *sessionEntry
	r.lock.Lock()
	if entry, ok := r.entries[id]; ok && entry.session.SubscriberCount() == 0 {
		delete(r.entries, id)
		metrics.ActiveSessions.Set(float64(len(r.entries)))
		victim = entry
	}
	r.lock.Unlock()
	if victim == nil {
		return
	}
	logrus.Infof("[registry] session reaped, session = %s", id)
	if err := victim.session.Close(); err != nil {
		logrus.Errorf("[registry] close session fail, session = %s, err = %v", id, err)
	}
}
