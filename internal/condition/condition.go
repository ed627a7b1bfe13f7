// Package condition decides whether a named package-list condition holds for
// a host, given detected hardware facts and the user's opt-in preferences.
package condition

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Kind is the closed set of conditions the evaluator understands.
type Kind int

const (
	Unknown Kind = iota
	Nvidia
	AMD
	Intel
	Gaming
	Laptop
	VM
	Asus
)

var kindNames = map[string]Kind{
	"nvidia": Nvidia,
	"amd":    AMD,
	"intel":  Intel,
	"gaming": Gaming,
	"laptop": Laptop,
	"vm":     VM,
	"asus":   Asus,
}

// Parse maps a condition name onto its Kind. Matching ignores case and
// surrounding whitespace; anything else is Unknown.
func Parse(name string) Kind {
	if k, ok := kindNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return k
	}
	return Unknown
}

func (k Kind) String() string {
	for name, kind := range kindNames {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

// GPUVendor names a graphics vendor as reported by detection or a hardware
// profile.
type GPUVendor string

const (
	VendorNvidia GPUVendor = "nvidia"
	VendorAMD    GPUVendor = "amd"
	VendorIntel  GPUVendor = "intel"
)

// FactSnapshot is the set of host facts hardware conditions are evaluated
// against. It is a plain value; callers copy and merge it freely.
type FactSnapshot struct {
	GPUVendors       []GPUVendor `json:"gpu_vendors" yaml:"gpu_vendors"`
	IsLaptop         bool        `json:"laptop" yaml:"laptop"`
	IsVirtualMachine bool        `json:"vm" yaml:"vm"`
	IsAsusHardware   bool        `json:"asus" yaml:"asus"`
}

// HasGPU reports whether vendor is among the detected GPU vendors.
func (f FactSnapshot) HasGPU(vendor GPUVendor) bool {
	for _, v := range f.GPUVendors {
		if v == vendor {
			return true
		}
	}
	return false
}

// WithGPU returns a copy of f with vendor added, keeping the vendor list
// sorted and free of repeats.
func (f FactSnapshot) WithGPU(vendors ...GPUVendor) FactSnapshot {
	out := f
	out.GPUVendors = append([]GPUVendor(nil), f.GPUVendors...)
	for _, v := range vendors {
		v = GPUVendor(strings.ToLower(strings.TrimSpace(string(v))))
		if v == "" || out.HasGPU(v) {
			continue
		}
		out.GPUVendors = append(out.GPUVendors, v)
	}
	sort.Slice(out.GPUVendors, func(i, j int) bool { return out.GPUVendors[i] < out.GPUVendors[j] })
	return out
}

// Preferences is the set of tokens the user opted into, such as "gaming".
type Preferences map[string]struct{}

// NewPreferences builds a preference set, normalising each token the same
// way condition names are normalised.
func NewPreferences(tokens ...string) Preferences {
	p := make(Preferences, len(tokens))
	for _, t := range tokens {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			p[t] = struct{}{}
		}
	}
	return p
}

func (p Preferences) Has(token string) bool {
	_, ok := p[strings.ToLower(strings.TrimSpace(token))]
	return ok
}

// List returns the tokens in sorted order.
func (p Preferences) List() []string {
	out := make([]string, 0, len(p))
	for t := range p {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Union returns a new set holding the tokens of p and other.
func (p Preferences) Union(other Preferences) Preferences {
	out := make(Preferences, len(p)+len(other))
	for t := range p {
		out[t] = struct{}{}
	}
	for t := range other {
		out[t] = struct{}{}
	}
	return out
}

// Holds evaluates a parsed condition. Hardware kinds come from facts only;
// Gaming comes from preferences only. Unknown is always false.
func Holds(kind Kind, facts FactSnapshot, prefs Preferences) bool {
	switch kind {
	case Nvidia:
		return facts.HasGPU(VendorNvidia)
	case AMD:
		return facts.HasGPU(VendorAMD)
	case Intel:
		return facts.HasGPU(VendorIntel)
	case Laptop:
		return facts.IsLaptop
	case VM:
		return facts.IsVirtualMachine
	case Asus:
		return facts.IsAsusHardware
	case Gaming:
		return prefs.Has("gaming")
	default:
		return false
	}
}

// Evaluator evaluates condition names and reports each distinct
// unrecognised name once. It is safe for concurrent use.
type Evaluator struct {
	log     *zap.SugaredLogger
	mu      sync.Mutex
	unknown map[string]struct{}
}

// NewEvaluator returns an Evaluator that reports unknown conditions to log.
// A nil log silences the reports.
func NewEvaluator(log *zap.SugaredLogger) *Evaluator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Evaluator{log: log, unknown: make(map[string]struct{})}
}

// Evaluate reports whether condition holds. The result depends only on the
// three arguments.
func (e *Evaluator) Evaluate(condition string, facts FactSnapshot, prefs Preferences) bool {
	kind := Parse(condition)
	if kind == Unknown {
		e.reportUnknown(condition)
		return false
	}
	return Holds(kind, facts, prefs)
}

// Unrecognized returns the distinct unknown condition names seen so far.
func (e *Evaluator) Unrecognized() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]string, 0, len(e.unknown))
	for name := range e.unknown {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (e *Evaluator) reportUnknown(condition string) {
	key := strings.ToLower(strings.TrimSpace(condition))
	e.mu.Lock()
	_, seen := e.unknown[key]
	if !seen {
		e.unknown[key] = struct{}{}
	}
	e.mu.Unlock()

	if !seen {
		e.log.Warnf("Unrecognized condition %q, treating as false", condition)
	}
}
