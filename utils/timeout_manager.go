package utils

import (
	"context"
	"sync"
	"time"

	"github.com/fansqz/gdber/utils/gosync"
)

// TimeoutManager 一个计时器
// 如果在timeout时间内没有执行Reset或Cancel，就会执行fun函数
// 会话注册表用它实现断连之后的回收宽限期。
type TimeoutManager struct {
	lock          sync.Mutex
	timer         *time.Timer
	timeout       time.Duration
	resetChannel  chan struct{}
	cancelChannel chan struct{}
	running       bool
	fun           func()
}

// NewTimeoutManager 创建一个新的计时器实例
func NewTimeoutManager() *TimeoutManager {
	return &TimeoutManager{}
}

// Start 开始计时
// 在timeout时间内没有执行Reset或Cancel命令，就会执行fun函数
func (t *TimeoutManager) Start(ctx context.Context, timeout time.Duration, fun func()) {
	t.lock.Lock()
	if t.running {
		t.lock.Unlock()
		t.Reset()
		return
	}
	t.timer = time.NewTimer(timeout)
	t.timeout = timeout
	t.fun = fun
	t.resetChannel = make(chan struct{})
	t.cancelChannel = make(chan struct{})
	t.running = true
	t.lock.Unlock()

	gosync.Go(ctx, func(ctx context.Context) {
		for {
			select {
			case <-t.timer.C:
				t.setStopped()
				t.fun()
				return
			case <-t.resetChannel:
				if !t.timer.Stop() {
					<-t.timer.C
				}
				t.timer.Reset(t.timeout)
			case <-t.cancelChannel:
				if !t.timer.Stop() {
					select {
					case <-t.timer.C:
					default:
					}
				}
				t.setStopped()
				return
			}
		}
	})
}

// Reset 重置计时器
func (t *TimeoutManager) Reset() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.running {
		return
	}
	select {
	case t.resetChannel <- struct{}{}:
	default:
		// 计时已经到期，重置无效
	}
}

// Cancel 取消计时
func (t *TimeoutManager) Cancel() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.running {
		return
	}
	select {
	case t.cancelChannel <- struct{}{}:
	default:
		// 计时循环已经结束
	}
}

func (t *TimeoutManager) setStopped() {
	t.lock.Lock()
	t.running = false
	t.lock.Unlock()
}
