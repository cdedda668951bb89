package hardware

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sweeney/phone-diagnostics/internal/logic"
)

func fakeProber(files map[string]string, props map[string]string) *Prober {
	return &Prober{
		hostInfo: func(context.Context) (*host.InfoStat, error) {
			return &host.InfoStat{Platform: "postmarketos", PlatformVersion: "v24.06", VirtualizationRole: "host"}, nil
		},
		memory: func(context.Context) (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Total: 3*bytesPerGB - 150<<20}, nil
		},
		readFile: func(name string) ([]byte, error) {
			if v, ok := files[name]; ok {
				return []byte(v), nil
			}
			return nil, os.ErrNotExist
		},
		getprop: func(_ context.Context, key string) (string, error) {
			if v, ok := props[key]; ok {
				return v, nil
			}
			return "", errors.New("no such property")
		},
		dmiVendor: "vendor",
		dmiModel:  "model",
	}
}

func TestCaptureFromDMI(t *testing.T) {
	p := fakeProber(map[string]string{"vendor": "Pine64\n", "model": "PinePhone Pro\n"}, nil)
	got := p.Capture(context.Background())
	want := logic.Hardware{
		Brand:            "Pine64",
		Model:            "PinePhone Pro",
		RAMGB:            3,
		OSVersion:        "postmarketos v24.06",
		IsPhysicalDevice: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Capture mismatch (-want +got):\n%s", diff)
	}
}

func TestCaptureFallsBackToGetprop(t *testing.T) {
	p := fakeProber(
		map[string]string{"vendor": "To Be Filled By O.E.M.\n"},
		map[string]string{"ro.product.manufacturer": "Fairphone\n", "ro.product.model": "FP5\n"},
	)
	got := p.Capture(context.Background())
	if got.Brand != "Fairphone" || got.Model != "FP5" {
		t.Errorf("got brand=%q model=%q", got.Brand, got.Model)
	}
}

func TestCaptureAllSourcesFail(t *testing.T) {
	p := fakeProber(nil, nil)
	p.hostInfo = func(context.Context) (*host.InfoStat, error) { return nil, errors.New("no host") }
	p.memory = func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, errors.New("no mem") }

	got := p.Capture(context.Background())
	want := logic.Hardware{}.Normalize()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("expected defaults (-want +got):\n%s", diff)
	}
}

func TestCaptureGuestIsNotPhysical(t *testing.T) {
	p := fakeProber(nil, nil)
	p.hostInfo = func(context.Context) (*host.InfoStat, error) {
		return &host.InfoStat{OS: "linux", KernelVersion: "6.6.0", VirtualizationRole: "guest"}, nil
	}
	got := p.Capture(context.Background())
	if got.IsPhysicalDevice {
		t.Error("guest should not be a physical device")
	}
	if got.OSVersion != "linux 6.6.0" {
		t.Errorf("OSVersion: got %q", got.OSVersion)
	}
}

func TestRoundGB(t *testing.T) {
	tests := []struct {
		total uint64
		want  float64
	}{
		{0, 0},
		{bytesPerGB / 4, 0},
		{bytesPerGB - 100<<20, 1},
		{4 * bytesPerGB, 4},
		{5*bytesPerGB + bytesPerGB/2 + 1, 6},
	}
	for _, tt := range tests {
		if got := RoundGB(tt.total); got != tt.want {
			t.Errorf("RoundGB(%d): got %v, want %v", tt.total, got, tt.want)
		}
	}
}

func TestOverride(t *testing.T) {
	hw := logic.Hardware{Brand: "Pine64", Model: "PinePhone"}
	if got := Override(hw, "", "Bench Rig"); got.Brand != "Pine64" || got.Model != "Bench Rig" {
		t.Errorf("unexpected override result: %+v", got)
	}
}
