// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse activity registry %s: %w", path, err)
	}
	return &reg, nil
}

// Find returns the activity served under taskType.
func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// CheckTimeout reports when the worker's configured job timeout differs from the
// one the activity advertises to BPMN authors. An activity without a timeout
// accepts any value.
func (a *Activity) CheckTimeout(configured time.Duration) error {
	if a.Timeout == "" {
		return nil
	}
	declared, err := time.ParseDuration(a.Timeout)
	if err != nil {
		return fmt.Errorf("activity %s: timeout %q: %w", a.ID, a.Timeout, err)
	}
	if declared != configured {
		return fmt.Errorf("activity %s declares timeout %s but the worker uses %s", a.ID, declared, configured)
	}
	return nil
}

// Validate reports every malformed or duplicated activity at once.
func (r *ActivityRegistry) Validate() error {
	var result *multierror.Error
	seen := make(map[string]bool, len(r.Activities))

	for i, a := range r.Activities {
		if a.ID == "" || a.TaskType == "" {
			result = multierror.Append(result, fmt.Errorf("activities[%d]: id and taskType are required", i))
			continue
		}
		if seen[a.TaskType] {
			result = multierror.Append(result, fmt.Errorf("activities[%d]: duplicate taskType %q", i, a.TaskType))
		}
		seen[a.TaskType] = true
		if a.Timeout != "" {
			if _, err := time.ParseDuration(a.Timeout); err != nil {
				result = multierror.Append(result, fmt.Errorf("activities[%d]: timeout %q: %w", i, a.Timeout, err))
			}
		}
		if a.Retries < 0 {
			result = multierror.Append(result, fmt.Errorf("activities[%d]: retries must not be negative", i))
		}
	}
	return result.ErrorOrNil()
}
