package backend

import "time"

// Status is the capability status of a resolution.
type Status string

// Capability statuses.
const (
	StatusComplete     Status = "complete"
	StatusIncomplete   Status = "incomplete"
	StatusImportFailed Status = "import_failed"
)

// Method records how a descriptor was produced.
type Method string

// Resolution methods.
const (
	MethodCache      Method = "cache"
	MethodConfigured Method = "configured"
	MethodFallback   Method = "fallback"
	MethodNone       Method = "none"
)

// Descriptor is the live outcome of one resolution attempt. Capabilities
// holds callable handles and must never be serialized; use Snapshot for
// anything that leaves the process.
type Descriptor struct {
	Success                  bool
	BackendName              string
	FallbackName             string
	ResolvedPath             string
	ModuleVersion            string
	Capabilities             Table
	UsedFallback             bool
	Code                     ErrorCode
	Message                  string
	AttemptedPaths           []string
	FallbacksTried           []string
	MissingCapabilities      []string
	NonInvocableCapabilities []string
	Status                   Status
	Method                   Method
	Cached                   bool
	Timestamp                time.Time
}

// Clone returns an independent copy. Handles are shared, containers are not.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	c := *d
	if d.Capabilities != nil {
		c.Capabilities = make(Table, len(d.Capabilities))
		for k, v := range d.Capabilities {
			c.Capabilities[k] = v
		}
	}
	c.AttemptedPaths = cloneStrings(d.AttemptedPaths)
	c.FallbacksTried = cloneStrings(d.FallbacksTried)
	c.MissingCapabilities = cloneStrings(d.MissingCapabilities)
	c.NonInvocableCapabilities = cloneStrings(d.NonInvocableCapabilities)
	return &c
}

// Err returns the sentinel for Code wrapped with Message, or nil on success.
func (d *Descriptor) Err() error {
	if d == nil || d.Success {
		return nil
	}
	return &loadError{code: d.Code, err: wrapMessage(d.Code.Err(), d.Message)}
}

// Snapshot is the serializable export form of a Descriptor.
type Snapshot struct {
	Name            string    `json:"name" yaml:"name"`
	Path            string    `json:"path,omitempty" yaml:"path,omitempty"`
	UsedFallback    bool      `json:"usedFallback" yaml:"usedFallback"`
	Fallback        string    `json:"fallback,omitempty" yaml:"fallback,omitempty"`
	CapabilityNames []string  `json:"capabilityNames" yaml:"capabilityNames"`
	Success         bool      `json:"success" yaml:"success"`
	Status          Status    `json:"status" yaml:"status"`
	Code            ErrorCode `json:"errorCode,omitempty" yaml:"errorCode,omitempty"`
	Method          Method    `json:"method" yaml:"method"`
	Cached          bool      `json:"cached" yaml:"cached"`
	Timestamp       time.Time `json:"timestamp" yaml:"timestamp"`
}

// Snapshot converts d to its export form.
func (d *Descriptor) Snapshot() Snapshot {
	names := d.Capabilities.Names()
	return Snapshot{
		Name:            d.BackendName,
		Path:            d.ResolvedPath,
		UsedFallback:    d.UsedFallback,
		Fallback:        d.FallbackName,
		CapabilityNames: names,
		Success:         d.Success,
		Status:          d.Status,
		Code:            d.Code,
		Method:          d.Method,
		Cached:          d.Cached,
		Timestamp:       d.Timestamp,
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
