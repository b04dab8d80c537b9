// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("registry %s: %w", path, err)
	}
	return &reg, nil
}

// Lookup finds the activity serving taskType.
func (r *ActivityRegistry) Lookup(taskType string) (Activity, bool) {
	for _, a := range r.Activities {
		if a.TaskType == taskType {
			return a, true
		}
	}
	return Activity{}, false
}

// Check reports task types that have no registry entry, and entries that
// claim a task type twice.
func (r *ActivityRegistry) Check(taskTypes []string) error {
	var problems []string

	seen := make(map[string]bool, len(r.Activities))
	for _, a := range r.Activities {
		if seen[a.TaskType] {
			problems = append(problems, fmt.Sprintf("task type %q registered twice", a.TaskType))
		}
		seen[a.TaskType] = true
	}

	missing := make([]string, 0)
	for _, t := range taskTypes {
		if !seen[t] {
			missing = append(missing, t)
		}
	}
	sort.Strings(missing)
	for _, t := range missing {
		problems = append(problems, fmt.Sprintf("task type %q is not registered", t))
	}

	if len(problems) > 0 {
		return fmt.Errorf("activity registry: %s", strings.Join(problems, "; "))
	}
	return nil
}
