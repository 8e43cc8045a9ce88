package utils

import (
	"sync"

	"github.com/fansqz/gdber/constants"
)

// StatusManager 记录调试会话状态的
// 状态只会在会话的处理循环中被修改，读取可能来自任意协程。
type StatusManager struct {
	lock   sync.RWMutex
	status constants.Status
}

func NewStatusManager() *StatusManager {
	return &StatusManager{
		status: constants.StatusReady,
	}
}

func (s *StatusManager) Set(status constants.Status) {
	defer s.lock.Unlock()
	s.lock.Lock()
	s.status = status
}

func (s *StatusManager) Get() constants.Status {
	defer s.lock.RUnlock()
	s.lock.RLock()
	return s.status
}

func (s *StatusManager) Is(statusList ...constants.Status) bool {
	defer s.lock.RUnlock()
	s.lock.RLock()
	for _, status := range statusList {
		if s.status == status {
			return true
		}
	}
	return false
}
