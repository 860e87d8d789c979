package config

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigurationError represents a structured error that occurs during configuration loading
type ConfigurationError struct {
	FilePath    string   `json:"filePath"`    // Full path to the file that caused the error
	FileName    string   `json:"fileName"`    // Base name of the file
	ErrorType   string   `json:"errorType"`   // Type of error (parse, validation, io)
	Message     string   `json:"message"`     // Human-readable error message
	Details     string   `json:"details"`     // Additional details about the error
	LineNumber  int      `json:"lineNumber"`  // Line number where error occurred (if available)
	Suggestions []string `json:"suggestions"` // Actionable suggestions to fix the error
	Err         error    `json:"-"`
}

// Error implements the error interface
func (ce ConfigurationError) Error() string {
	if ce.LineNumber > 0 {
		return fmt.Sprintf("%s:%d: %s", ce.FileName, ce.LineNumber, ce.Message)
	}
	return fmt.Sprintf("%s: %s", ce.FileName, ce.Message)
}

// Unwrap returns the underlying cause.
func (ce ConfigurationError) Unwrap() error {
	return ce.Err
}

// DetailedError returns a detailed error message with all context
func (ce ConfigurationError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Configuration Error in %s", ce.FileName))
	parts = append(parts, fmt.Sprintf("  File: %s", ce.FilePath))
	parts = append(parts, fmt.Sprintf("  Type: %s", ce.ErrorType))

	if ce.LineNumber > 0 {
		parts = append(parts, fmt.Sprintf("  Line: %d", ce.LineNumber))
	}

	parts = append(parts, fmt.Sprintf("  Error: %s", ce.Message))

	if ce.Details != "" {
		parts = append(parts, fmt.Sprintf("  Details: %s", ce.Details))
	}

	if len(ce.Suggestions) > 0 {
		parts = append(parts, "  Suggestions:")
		for _, suggestion := range ce.Suggestions {
			parts = append(parts, fmt.Sprintf("    - %s", suggestion))
		}
	}

	return strings.Join(parts, "\n")
}

// newParseError wraps a YAML decoding failure.
func newParseError(filePath, fileName string, err error) ConfigurationError {
	ce := ConfigurationError{
		FilePath:  filePath,
		FileName:  fileName,
		ErrorType: "parse",
		Message:   "invalid YAML",
		Details:   err.Error(),
		Err:       err,
		Suggestions: []string{
			"Check indentation and that lists use '- ' items",
			"Durations are strings such as \"20m\" or \"500ms\"",
		},
	}
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		ce.Message = "configuration has fields of the wrong type"
		ce.Details = strings.Join(typeErr.Errors, "; ")
	}
	ce.LineNumber = yamlLine(err.Error())
	return ce
}

// newValidationError wraps the collected validation failures.
func newValidationError(filePath, fileName string, errs ValidationErrors) ConfigurationError {
	suggestions := make([]string, 0, len(errs))
	for _, e := range errs {
		suggestions = append(suggestions, e.Error())
	}
	return ConfigurationError{
		FilePath:    filePath,
		FileName:    fileName,
		ErrorType:   "validation",
		Message:     errs.Error(),
		Err:         errs,
		Suggestions: suggestions,
	}
}

// yamlLine extracts "line N" from a yaml.v3 error message.
func yamlLine(msg string) int {
	idx := strings.Index(msg, "line ")
	if idx < 0 {
		return 0
	}
	n := 0
	for _, r := range msg[idx+len("line "):] {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}
