// Package detect gathers the host facts hardware conditions are evaluated
// against. Every probe is best effort: a failing probe is logged and leaves
// its fact unset.
package detect

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/open-edge-platform/devenv-composer/internal/condition"
	"github.com/open-edge-platform/devenv-composer/internal/utils/logger"
	"github.com/open-edge-platform/devenv-composer/internal/utils/shell"
)

const (
	dmiDir          = "sys/class/dmi/id"
	powerSupplyGlob = "sys/class/power_supply/BAT*"
)

// Portable chassis types from the SMBIOS specification.
var laptopChassis = map[int]struct{}{
	8:  {}, // portable
	9:  {}, // laptop
	10: {}, // notebook
	11: {}, // hand held
	14: {}, // sub notebook
	30: {}, // tablet
	31: {}, // convertible
	32: {}, // detachable
}

var vmMarkers = []string{"virtualbox", "vmware", "qemu", "kvm", "bochs", "virtual machine", "xen"}

// Detector probes the host. Root is prefixed to every sysfs path so tests
// can point it at a fake tree.
type Detector struct {
	Root string
	Exec shell.Executor
	Log  *zap.SugaredLogger
}

// New returns a Detector for the live system.
func New() *Detector {
	return &Detector{Root: "/", Exec: shell.Default, Log: logger.Logger()}
}

// Detect runs every probe and returns the resulting snapshot.
func (d *Detector) Detect() condition.FactSnapshot {
	facts := condition.FactSnapshot{}.WithGPU(d.GPUVendors()...)
	facts.IsLaptop = d.IsLaptop()
	facts.IsVirtualMachine = d.IsVirtualMachine()
	facts.IsAsusHardware = d.IsAsus()

	d.log().Infof("Detected facts: gpu=%v laptop=%t vm=%t asus=%t",
		facts.GPUVendors, facts.IsLaptop, facts.IsVirtualMachine, facts.IsAsusHardware)
	return facts
}

func (d *Detector) log() *zap.SugaredLogger {
	if d.Log == nil {
		return zap.NewNop().Sugar()
	}
	return d.Log
}

func (d *Detector) exec() shell.Executor {
	if d.Exec == nil {
		return shell.Default
	}
	return d.Exec
}

func (d *Detector) path(rel string) string {
	root := d.Root
	if root == "" {
		root = "/"
	}
	return filepath.Join(root, rel)
}

func (d *Detector) readDMI(field string) string {
	data, err := os.ReadFile(d.path(filepath.Join(dmiDir, field)))
	if err != nil {
		d.log().Debugf("DMI field %s unavailable: %v", field, err)
		return ""
	}
	return strings.TrimSpace(string(data))
}

// GPUVendors lists the vendors of every display controller lspci reports.
func (d *Detector) GPUVendors() []condition.GPUVendor {
	out, err := d.exec().ExecCmd("lspci", false, nil)
	if err != nil {
		d.log().Warnf("GPU detection failed, assuming no GPU facts: %v", err)
		return nil
	}
	return ParseLspci(out)
}

// ParseLspci extracts GPU vendors from lspci output.
func ParseLspci(output string) []condition.GPUVendor {
	var vendors []condition.GPUVendor
	for _, line := range strings.Split(output, "\n") {
		if !isDisplayController(line) {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "nvidia"):
			vendors = append(vendors, condition.VendorNvidia)
		case strings.Contains(lower, "advanced micro devices"),
			strings.Contains(lower, "amd"),
			strings.Contains(lower, "ati technologies"),
			strings.Contains(lower, "radeon"):
			vendors = append(vendors, condition.VendorAMD)
		case strings.Contains(lower, "intel"):
			vendors = append(vendors, condition.VendorIntel)
		}
	}
	return vendors
}

func isDisplayController(line string) bool {
	return strings.Contains(line, "VGA compatible controller") ||
		strings.Contains(line, "3D controller") ||
		strings.Contains(line, "Display controller")
}

// IsLaptop checks the DMI chassis type, then falls back to looking for a
// battery.
func (d *Detector) IsLaptop() bool {
	if raw := d.readDMI("chassis_type"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			if _, ok := laptopChassis[n]; ok {
				return true
			}
		} else {
			d.log().Debugf("Unparseable chassis_type %q", raw)
		}
	}

	batteries, err := filepath.Glob(d.path(powerSupplyGlob))
	if err != nil {
		d.log().Debugf("Battery lookup failed: %v", err)
		return false
	}
	return len(batteries) > 0
}

// IsVirtualMachine asks systemd-detect-virt about hypervisors only, then
// falls back to DMI product strings. Containers are not virtual machines.
func (d *Detector) IsVirtualMachine() bool {
	out, err := d.exec().ExecCmd("systemd-detect-virt --vm", false, nil)
	virt := strings.TrimSpace(out)
	switch {
	case err == nil && virt != "" && virt != "none":
		return true
	case err != nil && virt != "none":
		d.log().Debugf("systemd-detect-virt unavailable: %v", err)
	}

	for _, field := range []string{"product_name", "sys_vendor", "board_vendor"} {
		value := strings.ToLower(d.readDMI(field))
		if value == "" {
			continue
		}
		for _, marker := range vmMarkers {
			if strings.Contains(value, marker) {
				return true
			}
		}
	}
	return false
}

// IsAsus reports ASUS hardware from the DMI system or board vendor.
func (d *Detector) IsAsus() bool {
	for _, field := range []string{"sys_vendor", "board_vendor"} {
		if strings.Contains(strings.ToUpper(d.readDMI(field)), "ASUS") {
			return true
		}
	}
	return false
}
