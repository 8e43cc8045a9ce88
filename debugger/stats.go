package debugger

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"

	"github.com/fansqz/gdber/protocol"
	"github.com/fansqz/gdber/utils/gosync"
)

// startStats 开始采样被调试进程的资源占用
// pid来自thread-group-started通知，每次目标程序启动都会换新的采样协程。
func (s *Session) startStats(pid int) {
	interval := s.config.Session.StatsInterval
	if interval <= 0 {
		return
	}
	s.statsLock.Lock()
	defer s.statsLock.Unlock()
	if s.statsCancel != nil {
		s.statsCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.statsCancel = cancel
	gosync.Go(ctx, func(ctx context.Context) {
		s.pollStats(ctx, int32(pid), interval)
	})
}

// stopStats 停止采样
func (s *Session) stopStats() {
	s.statsLock.Lock()
	defer s.statsLock.Unlock()
	if s.statsCancel != nil {
		s.statsCancel()
		s.statsCancel = nil
	}
}

// pollStats 周期读取cpu和内存占用并广播，进程消失时自动退出
func (s *Session) pollStats(ctx context.Context, pid int32, interval time.Duration) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		logrus.Warnf("[session] stats attach fail, pid = %d, err = %v", pid, err)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closed:
			return
		case <-ticker.C:
			cpu, err := proc.CPUPercent()
			if err != nil {
				// 进程已经退出
				return
			}
			payload := protocol.ProcStatsPayload{
				Pid:        int(pid),
				CPUPercent: cpu,
			}
			if info, err := proc.MemoryInfo(); err == nil && info != nil {
				payload.RSSBytes = info.RSS
			}
			s.broadcaster.Broadcast(protocol.NewProcStatsMessage(payload))
		}
	}
}
