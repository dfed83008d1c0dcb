// Package workflow persists a catalogue of parameterised command templates
// and resolves them, together with user-supplied argument bindings, into
// executable command strings.
package workflow

import (
	"errors"
	"fmt"

	"github.com/warpterm/warpterm/internal/shared/id"
)

// ArgumentType is the declared kind of a workflow argument.
type ArgumentType string

const (
	TypeText      ArgumentType = "text"
	TypeNumber    ArgumentType = "number"
	TypeBoolean   ArgumentType = "boolean"
	TypeFilePath  ArgumentType = "file_path"
	TypeDirectory ArgumentType = "directory_path"
	TypeURL       ArgumentType = "url"
	TypeEmail     ArgumentType = "email"
	TypeChoice    ArgumentType = "choice"
)

var knownTypes = map[ArgumentType]bool{
	TypeText:      true,
	TypeNumber:    true,
	TypeBoolean:   true,
	TypeFilePath:  true,
	TypeDirectory: true,
	TypeURL:       true,
	TypeEmail:     true,
	TypeChoice:    true,
}

// Validation carries optional value constraints for an argument.
type Validation struct {
	Pattern   string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	MinLength *int     `yaml:"min_length,omitempty" json:"min_length,omitempty"`
	MaxLength *int     `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	MinValue  *float64 `yaml:"min_value,omitempty" json:"min_value,omitempty"`
	MaxValue  *float64 `yaml:"max_value,omitempty" json:"max_value,omitempty"`
}

// Argument is one parameter of a workflow's command template.
type Argument struct {
	Name         string       `yaml:"name" json:"name"`
	Description  string       `yaml:"description,omitempty" json:"description,omitempty"`
	DefaultValue *string      `yaml:"default_value,omitempty" json:"default_value,omitempty"`
	Required     bool         `yaml:"required,omitempty" json:"required,omitempty"`
	Type         ArgumentType `yaml:"argument_type,omitempty" json:"argument_type,omitempty"`
	Options      []string     `yaml:"options,omitempty" json:"options,omitempty"`
	Validation   *Validation  `yaml:"validation,omitempty" json:"validation,omitempty"`
}

// Workflow is a named, parameterised command template. The id is assigned by
// the engine and is not part of the file format.
type Workflow struct {
	ID          id.WorkflowID `yaml:"-" json:"id"`
	Name        string        `yaml:"name" json:"name"`
	Command     string        `yaml:"command" json:"command"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Tags        []string      `yaml:"tags,omitempty" json:"tags,omitempty"`
	Shells      []string      `yaml:"shells,omitempty" json:"shells,omitempty"`
	Arguments   []Argument    `yaml:"arguments,omitempty" json:"arguments,omitempty"`

	// Collection names the sub-directory the workflow was loaded from.
	Collection string `yaml:"-" json:"collection,omitempty"`
}

// Argument returns the named argument declaration, if present.
func (w *Workflow) Argument(name string) (*Argument, bool) {
	for i := range w.Arguments {
		if w.Arguments[i].Name == name {
			return &w.Arguments[i], true
		}
	}
	return nil, false
}

// PermitsShell reports whether the workflow allows the given shell kind.
// An empty shells list permits any shell.
func (w *Workflow) PermitsShell(shell string) bool {
	if len(w.Shells) == 0 {
		return true
	}
	for _, s := range w.Shells {
		if s == shell {
			return true
		}
	}
	return false
}

// Collection is the metadata carried by a collection.yml in a catalogue
// sub-directory.
type Collection struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Author      string `yaml:"author,omitempty" json:"author,omitempty"`
	SourceURL   string `yaml:"source_url,omitempty" json:"source_url,omitempty"`
	Version     string `yaml:"version,omitempty" json:"version,omitempty"`
}

// ParseError reports a workflow file that failed to parse or validate.
// Parse errors are isolated per file and do not abort catalogue loading.
type ParseError struct {
	Path   string `json:"path"`
	Detail string `json:"detail"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Path, e.Detail)
}

// MissingArgumentError reports a required argument with neither a binding
// nor a default.
type MissingArgumentError struct {
	Name string
}

func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("missing argument %q", e.Name)
}

// ValidationError reports a bound value that failed its argument's kind or
// validation rules.
type ValidationError struct {
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("argument %q: %s", e.Name, e.Reason)
}

// ErrUnresolvedPlaceholder is returned by Resolve when a placeholder remains
// without a value after substitution.
var ErrUnresolvedPlaceholder = errors.New("unresolved placeholder")

// ErrNameCollision is returned by Save when the target file already belongs
// to a different workflow.
var ErrNameCollision = errors.New("workflow name collision")

// ErrNotFound is returned for unknown workflow ids.
var ErrNotFound = errors.New("workflow not found")
