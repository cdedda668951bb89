// Package hardware captures device metadata for the diagnostic report.
package hardware

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/exec"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sweeney/phone-diagnostics/internal/logic"
)

const bytesPerGB = 1 << 30

// Prober collects hardware metadata. Each source is a function so tests can
// replace it.
type Prober struct {
	hostInfo  func(ctx context.Context) (*host.InfoStat, error)
	memory    func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	readFile  func(name string) ([]byte, error)
	getprop   func(ctx context.Context, key string) (string, error)
	dmiVendor string
	dmiModel  string
}

// NewProber creates a Prober backed by the running system.
func NewProber() *Prober {
	return &Prober{
		hostInfo:  host.InfoWithContext,
		memory:    mem.VirtualMemoryWithContext,
		readFile:  os.ReadFile,
		getprop:   androidProp,
		dmiVendor: "/sys/class/dmi/id/sys_vendor",
		dmiModel:  "/sys/class/dmi/id/product_name",
	}
}

// Capture returns the device metadata. Every field is best effort; whatever
// cannot be determined is left for Hardware.Normalize to fill with defaults.
func (p *Prober) Capture(ctx context.Context) logic.Hardware {
	var hw logic.Hardware

	if info, err := p.hostInfo(ctx); err != nil {
		log.Printf("hardware: host info: %v", err)
	} else {
		hw.OSVersion = osVersion(info)
		hw.IsPhysicalDevice = info.VirtualizationRole != "guest"
	}

	if vm, err := p.memory(ctx); err != nil {
		log.Printf("hardware: memory: %v", err)
	} else {
		hw.RAMGB = RoundGB(vm.Total)
	}

	hw.Brand = p.first(ctx, p.dmiVendor, "ro.product.manufacturer")
	hw.Model = p.first(ctx, p.dmiModel, "ro.product.model")

	return hw.Normalize()
}

// first returns the DMI value at path, falling back to the Android property.
func (p *Prober) first(ctx context.Context, path, prop string) string {
	if data, err := p.readFile(path); err == nil {
		if v := clean(string(data)); v != "" {
			return v
		}
	}
	if v, err := p.getprop(ctx, prop); err == nil {
		return clean(v)
	}
	return ""
}

// RoundGB converts a byte count to whole gigabytes, rounding to nearest.
// Kernels reserve some memory, so a 4 GB device reports slightly less.
func RoundGB(total uint64) float64 {
	return math.Round(float64(total) / bytesPerGB)
}

func osVersion(info *host.InfoStat) string {
	switch {
	case info.Platform != "" && info.PlatformVersion != "":
		return info.Platform + " " + info.PlatformVersion
	case info.PlatformVersion != "":
		return info.PlatformVersion
	case info.KernelVersion != "":
		return info.OS + " " + info.KernelVersion
	}
	return ""
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "unknown", "to be filled by o.e.m.", "default string", "system product name":
		return ""
	}
	return s
}

func androidProp(ctx context.Context, key string) (string, error) {
	path, err := exec.LookPath("getprop")
	if err != nil {
		return "", err
	}
	out, err := exec.CommandContext(ctx, path, key).Output()
	if err != nil {
		return "", fmt.Errorf("getprop %s: %w", key, err)
	}
	return string(out), nil
}

// Override replaces captured fields with any non-empty operator-supplied values.
func Override(hw logic.Hardware, brand, model string) logic.Hardware {
	if brand != "" {
		hw.Brand = brand
	}
	if model != "" {
		hw.Model = model
	}
	return hw
}
