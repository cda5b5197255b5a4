package variant

// Variant is one of the two mutually exclusive accelerator builds.
type Variant string

const (
	// CPU keeps the pure Python module and the default torch build.
	CPU Variant = "cpu"
	// GPU keeps the compiled module and installs CUDA builds.
	GPU Variant = "gpu"
)

// Modules names the two shipped files, relative to the companion folder.
type Modules struct {
	// CPU is the non-accelerated module.
	CPU string
	// GPU is the accelerated module.
	GPU string
}

// Obsolete returns the module file that has to go once v is selected.
func (m Modules) Obsolete(v Variant) string {
	if v == GPU {
		return m.CPU
	}

	return m.GPU
}

// Plan is the outcome of looking at the platform and the shipped files.
type Plan struct {
	// Applicable is false unless both modules are still on disk.
	Applicable bool
	// AskUser is true when the user may pick the GPU build.
	AskUser bool
	// Forced is the variant used without asking.
	Forced Variant
}

// noCUDAPlatforms never get CUDA builds of torch.
//
//nolint:gochecknoglobals // Read-only lookup table.
var noCUDAPlatforms = map[string]struct{}{
	"darwin": {},
}

// Decide builds the plan for goos given which module files exist.
func Decide(goos string, cpuPresent, gpuPresent bool) Plan {
	if !cpuPresent || !gpuPresent {
		return Plan{}
	}

	if _, found := noCUDAPlatforms[goos]; found {
		return Plan{Applicable: true, Forced: CPU}
	}

	return Plan{Applicable: true, AskUser: true}
}

// Choose turns the user's answer into a variant, honouring a forced plan.
func (p Plan) Choose(wantsGPU bool) Variant {
	if !p.AskUser {
		if p.Forced == "" {
			return CPU
		}

		return p.Forced
	}

	if wantsGPU {
		return GPU
	}

	return CPU
}
