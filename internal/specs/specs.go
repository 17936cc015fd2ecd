package specs

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

const unknown = "unknown"

// Collect reads host metrics once and formats them as displayable strings.
// A metric that cannot be read reports "unknown" instead of failing the
// whole call.
func Collect() map[string]string {
	out := map[string]string{
		"CPU Cores":    unknown,
		"CPU Model":    unknown,
		"CPU Usage":    unknown,
		"Platform":     unknown,
		"Architecture": runtime.GOARCH,
		"Total Memory": unknown,
		"Free Memory":  unknown,
		"Memory Usage": unknown,
		"Load Average": unknown,
	}

	if n, err := cpu.Counts(true); err == nil {
		out["CPU Cores"] = strconv.Itoa(n)
	}
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 && infos[0].ModelName != "" {
		out["CPU Model"] = infos[0].ModelName
	}
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		out["CPU Usage"] = fmt.Sprintf("%.1f%%", pcts[0])
	}
	if info, err := host.Info(); err == nil {
		out["Platform"] = fmt.Sprintf("%s %s %s", info.Platform, info.PlatformVersion, info.KernelVersion)
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		out["Total Memory"] = formatBytes(vm.Total)
		out["Free Memory"] = formatBytes(vm.Available)
		out["Memory Usage"] = fmt.Sprintf("%.1f%%", vm.UsedPercent)
	}
	if avg, err := load.Avg(); err == nil {
		out["Load Average"] = fmt.Sprintf("%.2f", avg.Load1)
	}

	return out
}

func formatBytes(b uint64) string {
	const (
		mib = 1 << 20
		gib = 1 << 30
	)
	if b >= gib {
		return fmt.Sprintf("%.2f GB", float64(b)/gib)
	}
	return fmt.Sprintf("%.2f MB", float64(b)/mib)
}
