package telemetry

import (
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/gardenlab/pestnet-go/internal/logger"
)

const lowMemoryMB = 512

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("telemetry")
	})
	return serviceLogger
}

// SystemInfo is what LogSystemInfo reports.
type SystemInfo struct {
	GOOS            string
	GOARCH          string
	CPUs            int
	TotalMemoryMB   uint64
	AvailableMemory uint64 // MB
}

// CollectSystemInfo reads CPU count and memory. Memory fields stay zero when
// the platform does not expose them.
func CollectSystemInfo() (SystemInfo, error) {
	info := SystemInfo{
		GOOS:   runtime.GOOS,
		GOARCH: runtime.GOARCH,
		CPUs:   runtime.NumCPU(),
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return info, err
	}
	info.TotalMemoryMB = vm.Total / 1024 / 1024
	info.AvailableMemory = vm.Available / 1024 / 1024
	return info, nil
}

// LogSystemInfo logs host facts once at startup and warns when available
// memory is below lowMemoryMB.
func LogSystemInfo(log logger.Logger) {
	info, err := CollectSystemInfo()
	fields := []logger.Field{
		logger.String("os", info.GOOS),
		logger.String("arch", info.GOARCH),
		logger.Int("cpus", info.CPUs),
	}
	if err != nil {
		log.Warn("cannot read memory statistics", append(fields, logger.Error(err))...)
		return
	}
	fields = append(fields,
		logger.Uint64("memory_total_mb", info.TotalMemoryMB),
		logger.Uint64("memory_available_mb", info.AvailableMemory))
	log.Info("system information", fields...)
	if info.AvailableMemory > 0 && info.AvailableMemory < lowMemoryMB {
		log.Warn("available memory is low", logger.Uint64("memory_available_mb", info.AvailableMemory))
	}
}
