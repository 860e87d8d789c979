package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/hashicorp/go-version"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateEntityName validates that a step or service name follows proper conventions
func ValidateEntityName(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return ValidationError{Field: field, Value: name, Message: "is required"}
	}
	if len(name) > 100 {
		return ValidationError{Field: field, Value: name, Message: "must not exceed 100 characters"}
	}
	if strings.ContainsAny(name, " \t") {
		return ValidationError{Field: field, Value: name, Message: "cannot contain spaces"}
	}
	return nil
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

var (
	platformNames  = []string{PlatformLinux, PlatformMacOS, "darwin", PlatformWindows, PlatformUnix}
	actionPlatKeys = []string{PlatformLinux, PlatformMacOS, PlatformWindows, PlatformUnix, PlatformDefault}
)

// Validate checks the whole configuration and returns every problem found as
// ValidationErrors, or nil.
func (c StackpilotConfig) Validate() error {
	var errs ValidationErrors

	if c.Bootstrap.StepTimeout < 0 {
		errs.Add("bootstrap.stepTimeout", "must not be negative", c.Bootstrap.StepTimeout.Std().String())
	}

	steps := make(map[string]bool)
	addStep := func(field, name string) {
		if err := ValidateEntityName(field, name); err != nil {
			errs = append(errs, err.(ValidationError))
			return
		}
		if steps[name] {
			errs.Add(field, fmt.Sprintf("duplicate step name %q", name), name)
		}
		steps[name] = true
	}
	for i, t := range c.Tools {
		addStep(fmt.Sprintf("tools[%d].name", i), t.Name)
	}
	for i, s := range c.Configure {
		addStep(fmt.Sprintf("configure[%d].name", i), s.Name)
	}

	for i, t := range c.Tools {
		prefix := fmt.Sprintf("tools[%d]", i)
		validateDependsOn(&errs, prefix, t.Name, t.DependsOn, steps)
		validatePlatforms(&errs, prefix+".platforms", t.Platforms)
		validateCheck(&errs, prefix+".when", t.When)
		if t.Check.IsZero() {
			errs.Add(prefix+".check", "is required for tools")
		}
		validateCheck(&errs, prefix+".check", t.Check)
		validateCheck(&errs, prefix+".verify", t.Verify)
		if len(t.Install) == 0 {
			errs.Add(prefix+".install", "must define actions for at least one platform")
		}
		for key, actions := range t.Install {
			field := fmt.Sprintf("%s.install.%s", prefix, key)
			if err := ValidateOneOf(field, key, actionPlatKeys); err != nil {
				errs = append(errs, err.(ValidationError))
			}
			for j, a := range actions {
				validateAction(&errs, fmt.Sprintf("%s[%d]", field, j), a)
			}
		}
	}

	for i, s := range c.Configure {
		prefix := fmt.Sprintf("configure[%d]", i)
		validateDependsOn(&errs, prefix, s.Name, s.DependsOn, steps)
		validatePlatforms(&errs, prefix+".platforms", s.Platforms)
		validateCheck(&errs, prefix+".when", s.When)
		if len(s.Patches) == 0 && len(s.Commands) == 0 {
			errs.Add(prefix, "must define patches or commands")
		}
		for j, p := range s.Patches {
			validatePatch(&errs, fmt.Sprintf("%s.patches[%d]", prefix, j), p)
		}
		for j, a := range s.OnChange {
			validateAction(&errs, fmt.Sprintf("%s.onChange[%d]", prefix, j), a)
		}
		for j, g := range s.Commands {
			field := fmt.Sprintf("%s.commands[%d]", prefix, j)
			validateAction(&errs, field, g.ActionDefinition)
			validatePlatforms(&errs, field+".platforms", g.Platforms)
			validateCheck(&errs, field+".unless", g.Unless)
		}
	}

	services := make(map[string]bool)
	for i, s := range c.Services {
		prefix := fmt.Sprintf("services[%d]", i)
		if err := ValidateEntityName(prefix+".name", s.Name); err != nil {
			errs = append(errs, err.(ValidationError))
		} else if services[s.Name] {
			errs.Add(prefix+".name", fmt.Sprintf("duplicate service name %q", s.Name), s.Name)
		}
		services[s.Name] = true
		if strings.TrimSpace(s.Match) == "" {
			errs.Add(prefix+".match", "is required so running instances can be detected")
		}
		if len(s.Command) == 0 {
			errs.Add(prefix+".command", "is required")
		}
		if s.Port < 0 || s.Port > 65535 {
			errs.Add(prefix+".port", "must be between 0 and 65535", s.Port)
		}
		validatePlatforms(&errs, prefix+".platforms", s.Platforms)
	}

	if c.UI.URL != "" {
		if u, err := url.Parse(c.UI.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs.Add("ui.url", "must be an absolute http(s) URL", c.UI.URL)
		}
	}
	if c.Readiness.Timeout < 0 {
		errs.Add("readiness.timeout", "must not be negative")
	}
	if c.Readiness.Interval < 0 {
		errs.Add("readiness.interval", "must not be negative")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateDependsOn(errs *ValidationErrors, prefix, name string, deps []string, steps map[string]bool) {
	for _, d := range deps {
		switch {
		case d == name:
			errs.Add(prefix+".dependsOn", "a step cannot depend on itself", d)
		case !steps[d]:
			errs.Add(prefix+".dependsOn", fmt.Sprintf("unknown step %q", d), d)
		}
	}
}

func validatePlatforms(errs *ValidationErrors, field string, names []string) {
	for _, n := range names {
		if err := ValidateOneOf(field, strings.ToLower(n), platformNames); err != nil {
			*errs = append(*errs, err.(ValidationError))
		}
	}
}

func validateCheck(errs *ValidationErrors, field string, c CheckDefinition) {
	if c.Match != "" {
		if c.Shell == "" {
			errs.Add(field+".match", "requires shell")
		}
		if _, err := regexp.Compile(c.Match); err != nil {
			errs.Add(field+".match", fmt.Sprintf("invalid regular expression: %v", err), c.Match)
		}
	}
	if c.EmptyOutput && c.Shell == "" {
		errs.Add(field+".emptyOutput", "requires shell")
	}
	if c.MinVersion != "" {
		if c.Version == "" {
			errs.Add(field+".minVersion", "requires version")
		}
		if _, err := version.NewConstraint(c.MinVersion); err != nil {
			errs.Add(field+".minVersion", fmt.Sprintf("invalid version constraint: %v", err), c.MinVersion)
		}
	}
}

func validateAction(errs *ValidationErrors, field string, a ActionDefinition) {
	hasShell := strings.TrimSpace(a.Shell) != ""
	hasRun := len(a.Run) > 0
	if hasShell == hasRun {
		errs.Add(field, "exactly one of shell or run is required")
	}
	if a.Timeout < 0 {
		errs.Add(field+".timeout", "must not be negative")
	}
}

func validatePatch(errs *ValidationErrors, field string, p PatchDefinition) {
	if (p.File == "") == !p.Profiles {
		errs.Add(field, "exactly one of file or profiles is required")
	}
	if p.Match == "" && p.Append == "" {
		errs.Add(field, "match or append is required")
	}
	if p.Match != "" {
		if _, err := regexp.Compile(p.Match); err != nil {
			errs.Add(field+".match", fmt.Sprintf("invalid regular expression: %v", err), p.Match)
		}
	}
}
