package detect

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/open-edge-platform/devenv-composer/internal/condition"
	"github.com/open-edge-platform/devenv-composer/internal/utils/shell"
)

const hybridLspci = `00:02.0 VGA compatible controller: Intel Corporation Alder Lake-P Integrated Graphics Controller (rev 0c)
00:14.0 USB controller: Intel Corporation Alder Lake PCH USB 3.2 xHCI Host Controller (rev 01)
01:00.0 3D controller: NVIDIA Corporation GA107M [GeForce RTX 3050 Mobile] (rev a1)
`

// fakeRoot builds a sysfs tree holding the given files.
func fakeRoot(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestParseLspci(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []condition.GPUVendor
	}{
		{"hybrid laptop", hybridLspci, []condition.GPUVendor{condition.VendorIntel, condition.VendorNvidia}},
		{"amd", "03:00.0 VGA compatible controller: Advanced Micro Devices, Inc. [AMD/ATI] Navi 21\n", []condition.GPUVendor{condition.VendorAMD}},
		{"display controller", "00:08.0 Display controller: Intel Corporation Device\n", []condition.GPUVendor{condition.VendorIntel}},
		{"non display devices ignored", "00:1f.3 Audio device: NVIDIA Corporation HDMI Audio\n", nil},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ParseLspci(tt.output)); diff != "" {
				t.Errorf("ParseLspci() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDetectASUSLaptop(t *testing.T) {
	root := fakeRoot(t, map[string]string{
		"sys/class/dmi/id/chassis_type": "10\n",
		"sys/class/dmi/id/sys_vendor":   "ASUSTeK COMPUTER INC.\n",
		"sys/class/dmi/id/product_name": "ROG Zephyrus G14\n",
	})
	mock := shell.NewMockExecutor([]shell.MockCommand{
		{Pattern: "^lspci$", Output: hybridLspci},
		{Pattern: "systemd-detect-virt", Output: "none\n", Error: errors.New("exit status 1")},
	})

	d := &Detector{Root: root, Exec: mock}
	facts := d.Detect()

	want := condition.FactSnapshot{
		GPUVendors:     []condition.GPUVendor{condition.VendorIntel, condition.VendorNvidia},
		IsLaptop:       true,
		IsAsusHardware: true,
	}
	if diff := cmp.Diff(want, facts); diff != "" {
		t.Errorf("Detect() mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectVirtualMachine(t *testing.T) {
	mock := shell.NewMockExecutor([]shell.MockCommand{
		{Pattern: "^lspci$", Output: "00:02.0 VGA compatible controller: Red Hat, Inc. Virtio GPU\n"},
		{Pattern: "systemd-detect-virt", Output: "kvm\n"},
	})
	d := &Detector{Root: fakeRoot(t, nil), Exec: mock}
	facts := d.Detect()
	if !facts.IsVirtualMachine {
		t.Error("Expected kvm to be detected as a VM")
	}
	if len(facts.GPUVendors) != 0 || facts.IsLaptop || facts.IsAsusHardware {
		t.Errorf("Unexpected facts %+v", facts)
	}
}

func TestContainerIsNotVirtualMachine(t *testing.T) {
	mock := shell.NewMockExecutor([]shell.MockCommand{
		{Pattern: "^systemd-detect-virt --vm$", Output: "none\n", Error: errors.New("exit status 1")},
		{Pattern: "^systemd-detect-virt$", Output: "docker\n"},
	})
	d := &Detector{Root: fakeRoot(t, nil), Exec: mock}
	if d.IsVirtualMachine() {
		t.Error("A container host must not be reported as a VM")
	}
	if diff := cmp.Diff([]string{"systemd-detect-virt --vm"}, mock.Recorded()); diff != "" {
		t.Errorf("Unexpected probe commands (-want +got):\n%s", diff)
	}
}

func TestVirtualMachineFromDMI(t *testing.T) {
	root := fakeRoot(t, map[string]string{
		"sys/class/dmi/id/product_name": "VirtualBox\n",
	})
	mock := shell.NewMockExecutor(nil)
	d := &Detector{Root: root, Exec: mock}
	if !d.IsVirtualMachine() {
		t.Error("Expected VirtualBox product name to mark a VM")
	}
}

func TestLaptopFromBattery(t *testing.T) {
	root := fakeRoot(t, map[string]string{
		"sys/class/dmi/id/chassis_type":        "3\n",
		"sys/class/power_supply/BAT0/capacity": "80\n",
	})
	d := &Detector{Root: root}
	if !d.IsLaptop() {
		t.Error("Expected a battery to mark a laptop")
	}
}

func TestDesktop(t *testing.T) {
	root := fakeRoot(t, map[string]string{
		"sys/class/dmi/id/chassis_type":    "3\n",
		"sys/class/dmi/id/sys_vendor":      "Micro-Star International Co., Ltd.\n",
		"sys/class/power_supply/AC/online": "1\n",
	})
	d := &Detector{Root: root}
	if d.IsLaptop() {
		t.Error("Desktop chassis without a battery is not a laptop")
	}
	if d.IsAsus() {
		t.Error("MSI is not ASUS")
	}
}

func TestProbeFailuresAreNotFatal(t *testing.T) {
	mock := shell.NewMockExecutor(nil)
	d := &Detector{Root: filepath.Join(t.TempDir(), "missing"), Exec: mock}

	facts := d.Detect()
	if diff := cmp.Diff(condition.FactSnapshot{}, facts); diff != "" {
		t.Errorf("Failed probes must leave facts unset (-want +got):\n%s", diff)
	}
	if len(mock.Recorded()) != 2 {
		t.Errorf("Expected lspci and systemd-detect-virt to be tried, got %v", mock.Recorded())
	}
}
