// Host diagnostics: a one-time summary logged when the scheduler is built,
// so an operator can sanity check the worker pool size (and the backoff
// timings, which are geared to the clock tick) against the host it
// actually landed on. Ties together every host-facing dependency this
// stack pulls in, each otherwise a single-purpose helper.

package pftask_internal

import (
	"fmt"
	"runtime"
	"time"

	"github.com/docker/go-units"
)

// AvailableCPUCount is the number of CPUs usable by this process,
// determined once at package init time from the scheduling affinity mask
// (Linux) or runtime.NumCPU (elsewhere).
var AvailableCPUCount = GetAvailableCPUCount()

// HostDiagnosticsSummary renders a single human-readable line combining
// CPU count, clock tick rate, host uptime and current process memory
// footprint, for the scheduler's startup log line.
func HostDiagnosticsSummary() string {
	clktck, err := GetSysClktck()
	clktckStr := "n/a"
	if err == nil {
		clktckStr = fmt.Sprintf("%d/s", clktck)
	}

	uptimeStr := "n/a"
	if bootTime, err := GetOsBootTime(); err == nil {
		uptimeStr = time.Since(bootTime).Truncate(time.Second).String()
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return fmt.Sprintf(
		"cpus=%d clktck=%s host_uptime=%s heap_in_use=%s",
		AvailableCPUCount, clktckStr, uptimeStr, units.HumanSize(float64(memStats.HeapInuse)),
	)
}
