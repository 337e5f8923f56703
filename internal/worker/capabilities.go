package worker

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/dreamware/swarmweave/internal/cluster"
)

// StaticCapacity seeds the fields CollectCapabilities cannot read from the
// host (GPU memory, reputation, concurrency ceiling); it is provided once at
// worker startup from configuration.
type StaticCapacity struct {
	TotalMemoryMB int64
	GPUMemoryMB   int64
	GPUAvailable  bool
	MaxConcurrent int
	Reputation    float64
}

// CollectCapabilities samples live CPU/memory usage and merges it with the
// static capacity a worker was configured with. It never fails: when
// /proc/meminfo is unavailable (any non-Linux host), it falls back to
// static.TotalMemoryMB for both total and available memory rather than
// reporting a hard error back to the caller.
func CollectCapabilities(static StaticCapacity, activeRequests int, shardLoaded bool) cluster.Capabilities {
	totalMB, availMB, ok := readProcMeminfo()
	if !ok {
		totalMB = static.TotalMemoryMB
		availMB = static.TotalMemoryMB
	}

	return cluster.Capabilities{
		CPUCores:        runtime.NumCPU(),
		CPUUsagePercent: 0, // sampling instantaneous CPU load needs two readings; left at 0 until a periodic sampler is wired in
		TotalMemoryMB:   totalMB,
		AvailMemoryMB:   availMB,
		GPUMemoryMB:     static.GPUMemoryMB,
		GPUUsagePercent: 0,
		GPUAvailable:    static.GPUAvailable,
		Reputation:      static.Reputation,
		ShardLoaded:     shardLoaded,
		ActiveRequests:  activeRequests,
		MaxConcurrent:   static.MaxConcurrent,
	}
}

// readProcMeminfo parses /proc/meminfo for MemTotal/MemAvailable in KiB,
// returning megabytes. ok is false if the file cannot be read or parsed,
// letting the caller fall back to its static configuration.
func readProcMeminfo() (totalMB, availMB int64, ok bool) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	var total, avail int64
	var haveTotal, haveAvail bool

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			if kb, ok := parseMeminfoLine(line); ok {
				total = kb
				haveTotal = true
			}
		case strings.HasPrefix(line, "MemAvailable:"):
			if kb, ok := parseMeminfoLine(line); ok {
				avail = kb
				haveAvail = true
			}
		}
		if haveTotal && haveAvail {
			break
		}
	}
	if !haveTotal || !haveAvail {
		return 0, 0, false
	}
	return total / 1024, avail / 1024, true
}

func parseMeminfoLine(line string) (int64, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, false
	}
	kb, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return kb, true
}
