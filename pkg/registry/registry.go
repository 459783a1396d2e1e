package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"customer-insights/internal/common/validation"
)

// ActivityRegistry describes the job types this service implements.
type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

type Activity struct {
	ID           string                 `json:"id"`
	DisplayName  string                 `json:"displayName"`
	Description  string                 `json:"description"`
	Category     string                 `json:"category"`
	Version      string                 `json:"version"`
	TaskType     string                 `json:"taskType"`
	InputSchema  map[string]interface{} `json:"inputSchema"`
	OutputSchema map[string]interface{} `json:"outputSchema"`
	ErrorCodes   []string               `json:"errorCodes"`
	Timeout      string                 `json:"timeout"` // Go duration, e.g. "45s"
	Retries      int                    `json:"retries"`
	Tags         []string               `json:"tags"`
}

// TimeoutDuration parses Timeout, returning fallback when it is empty or invalid.
func (a Activity) TimeoutDuration(fallback time.Duration) time.Duration {
	if a.Timeout == "" {
		return fallback
	}
	d, err := time.ParseDuration(a.Timeout)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRegistry(data)
}

func ParseRegistry(data []byte) (*ActivityRegistry, error) {
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse activity registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Validate checks naming and that every input schema compiles.
func (r *ActivityRegistry) Validate() error {
	seen := make(map[string]bool, len(r.Activities))
	for _, a := range r.Activities {
		if err := validation.ValidateActivityNaming(a.ID); err != nil {
			return fmt.Errorf("activity %s: %w", a.ID, err)
		}
		if err := validation.ValidateTaskType(a.TaskType); err != nil {
			return fmt.Errorf("activity %s: %w", a.ID, err)
		}
		if seen[a.TaskType] {
			return fmt.Errorf("duplicate task type %s", a.TaskType)
		}
		seen[a.TaskType] = true
		if len(a.InputSchema) > 0 {
			if _, err := validation.Compile(a.InputSchema); err != nil {
				return fmt.Errorf("activity %s input schema: %w", a.ID, err)
			}
		}
	}
	return nil
}

func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// Validator validates job inputs against the registry's input schemas,
// compiling each schema once.
type Validator struct {
	registry *ActivityRegistry
	mu       sync.Mutex
	schemas  map[string]*validation.Schema
}

func NewValidator(reg *ActivityRegistry) *Validator {
	return &Validator{registry: reg, schemas: make(map[string]*validation.Schema)}
}

// ValidateInput reports a valid result for task types without a registered schema.
func (v *Validator) ValidateInput(taskType string, input map[string]interface{}) (*validation.ValidationResult, error) {
	schema, err := v.schemaFor(taskType)
	if err != nil {
		return nil, err
	}
	if schema == nil {
		return &validation.ValidationResult{Valid: true}, nil
	}
	return schema.Validate(input)
}

func (v *Validator) schemaFor(taskType string) (*validation.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.schemas[taskType]; ok {
		return s, nil
	}
	if v.registry == nil {
		return nil, nil
	}
	activity, ok := v.registry.Find(taskType)
	if !ok || len(activity.InputSchema) == 0 {
		v.schemas[taskType] = nil
		return nil, nil
	}
	s, err := validation.Compile(activity.InputSchema)
	if err != nil {
		return nil, err
	}
	v.schemas[taskType] = s
	return s, nil
}
