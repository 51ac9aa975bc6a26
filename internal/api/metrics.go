package api

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ServerMetrics собирает сведения о процессе для /api/server
type ServerMetrics struct {
	StartTime time.Time
}

// ServerInfo - ответ /api/server
type ServerInfo struct {
	Name          string  `json:"name"`
	Version       string  `json:"version"`
	Status        string  `json:"status"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	MemoryMB      float64 `json:"memory_mb"`
	HeapMB        float64 `json:"heap_mb"`
	SystemMemPct  float64 `json:"system_memory_percent"`
	CPUPercent    float64 `json:"cpu_percent"`
	Goroutines    int     `json:"goroutines"`
	NumGC         uint32  `json:"num_gc"`
}

// NewServerMetrics создает новый экземпляр метрик
func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{
		StartTime: time.Now(),
	}
}

// GetUptime возвращает время работы сервера
func (sm *ServerMetrics) GetUptime() string {
	return formatUptime(time.Since(sm.StartTime))
}

func formatUptime(uptime time.Duration) string {
	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}

// GetMemoryUsage возвращает резидентную память процесса в MB.
// Если gopsutil недоступен, используется runtime.MemStats.Sys.
func (sm *ServerMetrics) GetMemoryUsage() (float64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err == nil {
		if info, err := proc.MemoryInfo(); err == nil {
			return float64(info.RSS) / 1024 / 1024, nil
		}
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.Sys) / 1024 / 1024, err
}

// GetCPUUsage возвращает использование CPU процессом в процентах
func (sm *ServerMetrics) GetCPUUsage() (float64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		// Если не удалось получить метрику процесса, попробуем системную
		cpuPercents, err := cpu.Percent(100*time.Millisecond, false)
		if err != nil || len(cpuPercents) == 0 {
			return 0, err
		}
		return cpuPercents[0], nil
	}

	return cpuPercent, nil
}

// GetSystemMemoryPercent возвращает занятую память системы в процентах
func (sm *ServerMetrics) GetSystemMemoryPercent() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

// Collect собирает ServerInfo; недоступные показатели остаются нулевыми
func (sm *ServerMetrics) Collect(version string) ServerInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	memoryMB, _ := sm.GetMemoryUsage()
	cpuPercent, _ := sm.GetCPUUsage()
	sysPct, _ := sm.GetSystemMemoryPercent()

	return ServerInfo{
		Name:          "layoutd",
		Version:       version,
		Status:        "running",
		Uptime:        sm.GetUptime(),
		UptimeSeconds: int64(time.Since(sm.StartTime).Seconds()),
		MemoryMB:      round1(memoryMB),
		HeapMB:        round1(float64(m.HeapAlloc) / 1024 / 1024),
		SystemMemPct:  round1(sysPct),
		CPUPercent:    round1(cpuPercent),
		Goroutines:    runtime.NumGoroutine(),
		NumGC:         m.NumGC,
	}
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
