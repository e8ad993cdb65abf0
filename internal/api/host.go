package api

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/seantiz/agentflow/internal/errors"
	"github.com/seantiz/agentflow/internal/model"
)

const bytesPerMB = 1 << 20

// hostCapacity is what the serving host can offer a workflow.
type hostCapacity struct {
	CPUs              int    `json:"cpus"`
	MemoryTotalMB     uint64 `json:"memory_total_mb"`
	MemoryAvailableMB uint64 `json:"memory_available_mb"`
}

// fits reports whether est fits in the host's currently available capacity.
// GPUs are not probed.
func (h hostCapacity) fits(est model.ResourceEstimate) bool {
	return est.CPU <= h.CPUs && uint64(est.MemoryMB) <= h.MemoryAvailableMB
}

func probeHost() (hostCapacity, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return hostCapacity{}, errors.Wrap(err, "failed to get memory stats")
	}
	return hostCapacity{
		CPUs:              runtime.NumCPU(),
		MemoryTotalMB:     v.Total / bytesPerMB,
		MemoryAvailableMB: v.Available / bytesPerMB,
	}, nil
}
