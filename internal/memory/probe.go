// Package memory reports accelerator, host and process memory and forces
// reclamation passes between model loads.
package memory

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
)

const mib = 1 << 20

// DeviceMemory is accelerator memory in bytes.
type DeviceMemory struct {
	Name      string `json:"name,omitempty"`
	Total     uint64 `json:"total"`
	Reserved  uint64 `json:"reserved"`
	Allocated uint64 `json:"allocated"`
	Free      uint64 `json:"free"`
}

// HostMemory is system RAM in bytes.
type HostMemory struct {
	Total     uint64 `json:"total"`
	Available uint64 `json:"available"`
	Used      uint64 `json:"used"`
}

// ProcessMemory is the Go heap of this process in bytes.
type ProcessMemory struct {
	HeapAlloc uint64 `json:"heap_alloc"`
	HeapSys   uint64 `json:"heap_sys"`
	NumGC     uint32 `json:"num_gc"`
}

// Snapshot is a point-in-time reading. GPU is nil when no accelerator is
// present.
type Snapshot struct {
	AcceleratorAvailable bool
	GPU                  *DeviceMemory
	Host                 *HostMemory
	Process              ProcessMemory
	CapturedAt           time.Time
}

// MarshalJSON renders a missing accelerator as the "unavailable" marker.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var gpu any = "unavailable"
	if s.GPU != nil {
		gpu = s.GPU
	}
	return json.Marshal(struct {
		GPU                  any           `json:"gpu"`
		AcceleratorAvailable bool          `json:"accelerator_available"`
		Host                 *HostMemory   `json:"host,omitempty"`
		Process              ProcessMemory `json:"process"`
		CapturedAt           time.Time     `json:"captured_at"`
	}{gpu, s.AcceleratorAvailable, s.Host, s.Process, s.CapturedAt})
}

// Budget returns the bytes a new model may use on the given device kind:
// free accelerator memory, or available host memory otherwise. ok is false
// when the figure is unknown.
func (s Snapshot) Budget(accelerator bool) (n uint64, ok bool) {
	if accelerator {
		if s.GPU == nil {
			return 0, false
		}
		return s.GPU.Free, true
	}
	if s.Host == nil {
		return 0, false
	}
	return s.Host.Available, true
}

// Prober is what the model lifecycle needs from this package.
type Prober interface {
	Snapshot(ctx context.Context) Snapshot
	Reclaim()
}

// QueryFunc returns raw nvidia-smi CSV output.
type QueryFunc func(ctx context.Context) ([]byte, error)

// Probe reads GPU memory through nvidia-smi and host memory through gopsutil.
type Probe struct {
	query QueryFunc
	host  func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

// NewProbe returns a Probe backed by nvidia-smi. If the binary is not on
// PATH the accelerator is reported unavailable.
func NewProbe() *Probe {
	return &Probe{query: nvidiaSMI, host: mem.VirtualMemoryWithContext}
}

// NewProbeWithQuery is used by tests to inject nvidia-smi output.
func NewProbeWithQuery(q QueryFunc) *Probe {
	return &Probe{query: q, host: mem.VirtualMemoryWithContext}
}

// Snapshot never fails; unreadable sources are left empty.
func (p *Probe) Snapshot(ctx context.Context) Snapshot {
	s := Snapshot{CapturedAt: time.Now()}

	if p.query != nil {
		if out, err := p.query(ctx); err == nil {
			if gpu, err := ParseNvidiaSMI(out); err == nil {
				s.GPU = gpu
				s.AcceleratorAvailable = true
			}
		}
	}

	if p.host != nil {
		if vm, err := p.host(ctx); err == nil {
			s.Host = &HostMemory{Total: vm.Total, Available: vm.Available, Used: vm.Used}
		}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.Process = ProcessMemory{HeapAlloc: ms.HeapAlloc, HeapSys: ms.HeapSys, NumGC: ms.NumGC}

	return s
}

// Reclaim runs a full collection and returns freed pages to the OS.
func (p *Probe) Reclaim() {
	runtime.GC()
	debug.FreeOSMemory()
}

func nvidiaSMI(ctx context.Context) ([]byte, error) {
	bin, err := exec.LookPath("nvidia-smi")
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, bin,
		"--query-gpu=name,memory.total,memory.used,memory.free",
		"--format=csv,noheader,nounits",
	).Output()
}

// ParseNvidiaSMI reads the first device line of
// "name, total, used, free" (MiB). Reserved is whatever the driver keeps
// outside used and free.
func ParseNvidiaSMI(out []byte) (*DeviceMemory, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 4 {
			return nil, fmt.Errorf("unexpected nvidia-smi line %q", line)
		}
		var vals [3]uint64
		for i, f := range fields[1:] {
			n, err := strconv.ParseUint(strings.TrimSpace(f), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse nvidia-smi field %q: %w", f, err)
			}
			vals[i] = n * mib
		}
		total, used, free := vals[0], vals[1], vals[2]
		var reserved uint64
		if total > used+free {
			reserved = total - used - free
		}
		return &DeviceMemory{
			Name:      strings.TrimSpace(fields[0]),
			Total:     total,
			Reserved:  reserved,
			Allocated: used,
			Free:      free,
		}, nil
	}
	return nil, fmt.Errorf("no devices in nvidia-smi output")
}
