// Package syshealth reports CPU/memory/temperature/disk metrics for the
// heartbeat payload and feeds the watchdog's memory-pressure check, falling
// back to raw /proc reads for the Linux-only signals gopsutil doesn't cover
// (thermal zone temperature, SD-card cumulative write count).
package syshealth

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// Health is a point-in-time system snapshot. Pointer fields are nil when
// the signal isn't available on the running platform (temperature on
// non-Linux, disk_writes_total without /proc/diskstats).
type Health struct {
	CPULoad         float64  `json:"cpu_load"`
	CPUPercent      float64  `json:"cpu_percent"`
	MemoryUsed      uint64   `json:"memory_used"`
	MemoryTotal     uint64   `json:"memory_total"`
	MemoryPercent   float64  `json:"memory_percent"`
	TemperatureC    *float64 `json:"temperature"`
	DiskFreeBytes   *uint64  `json:"disk_free"`
	DiskWritesTotal *uint64  `json:"disk_writes_total"`
}

// Get collects the current system snapshot. It never returns an error:
// every probe degrades to a zero/nil value on failure — a heartbeat should
// never be blocked by one missing sensor.
func Get() Health {
	var h Health

	if loadAvg, err := load.Avg(); err == nil {
		h.CPULoad = loadAvg.Load1
		ncpu := runtime.NumCPU()
		if ncpu < 1 {
			ncpu = 1
		}
		pct := loadAvg.Load1 / float64(ncpu) * 100.0
		if pct > 100.0 {
			pct = 100.0
		}
		h.CPUPercent = round1(pct)
	} else if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		h.CPUPercent = round1(pcts[0])
		h.CPULoad = pcts[0] / 100.0
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		h.MemoryUsed = vm.Used
		h.MemoryTotal = vm.Total
	}
	if h.MemoryTotal > 0 {
		h.MemoryPercent = round1(float64(h.MemoryUsed) / float64(h.MemoryTotal) * 100.0)
	}

	if t, ok := readThermalZone0(); ok {
		h.TemperatureC = &t
	}

	if usage, err := disk.Usage("/"); err == nil {
		free := usage.Free
		h.DiskFreeBytes = &free
	}

	if writes, ok := readDiskWritesTotal(); ok {
		h.DiskWritesTotal = &writes
	}

	return h
}

func round1(f float64) float64 {
	return float64(int64(f*10+0.5)) / 10
}

// readThermalZone0 is a Raspberry Pi-specific fallback; gopsutil has no
// cross-platform thermal-zone reader.
func readThermalZone0() (float64, bool) {
	data, err := os.ReadFile("/sys/class/thermal/thermal_zone0/temp")
	if err != nil {
		return 0, false
	}
	milliDeg, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return float64(milliDeg) / 1000.0, true
}

// readDiskWritesTotal sums sectors written across mmcblk*/sd* whole-disk
// devices from /proc/diskstats, for SD-card wear tracking on Pi-class
// hardware. gopsutil's disk.IOCounters covers this on Linux too, but the
// raw /proc path skips partitions directly without depending on gopsutil's
// counter-key format.
func readDiskWritesTotal() (uint64, bool) {
	data, err := os.ReadFile("/proc/diskstats")
	if err != nil {
		return 0, false
	}
	var totalSectors uint64
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 10 {
			continue
		}
		dev := fields[2]
		isWholeMMC := strings.HasPrefix(dev, "mmcblk") && !strings.Contains(dev, "p")
		isWholeSD := strings.HasPrefix(dev, "sd") && len(dev) > 0 && isAlpha(dev[len(dev)-1])
		if !isWholeMMC && !isWholeSD {
			continue
		}
		sectors, err := strconv.ParseUint(fields[9], 10, 64)
		if err != nil {
			continue
		}
		totalSectors += sectors
	}
	if totalSectors == 0 {
		return 0, false
	}
	return totalSectors * 512, true
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
