// pkg/registry/schema.go
package registry

// ActivityRegistry describes the service tasks this module can serve, so BPMN
// authors can check task types, variables and thrown error codes.
type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

type Activity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Version     string `json:"version"`
	TaskType    string `json:"taskType"`
	// InputVariables and OutputVariables name the process variables read and set.
	InputVariables  []string `json:"inputVariables"`
	OutputVariables []string `json:"outputVariables"`
	// ErrorCodes are the BPMN error codes the worker may throw.
	ErrorCodes []string `json:"errorCodes"`
	Timeout    string   `json:"timeout"`
	Retries    int      `json:"retries"`
	Tags       []string `json:"tags"`
}
