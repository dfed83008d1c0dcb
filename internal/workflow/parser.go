package workflow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/warpterm/warpterm/internal/terminal"
)

// placeholderRe matches {{name}} tokens. Double-brace only; legacy
// single-brace variants are rejected at parse time.
var placeholderRe = regexp.MustCompile(`\{\{([A-Za-z0-9_.-]+)\}\}`)

// Placeholders returns the distinct placeholder names in a command template,
// in order of first occurrence.
func Placeholders(command string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(command, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Parse unmarshals and validates one workflow definition.
func Parse(data []byte) (*Workflow, error) {
	var w Workflow
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	if err := Validate(&w); err != nil {
		return nil, err
	}
	return &w, nil
}

// Validate checks a workflow definition's internal consistency.
func Validate(w *Workflow) error {
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(w.Command) == "" {
		return fmt.Errorf("command is required")
	}

	names := make(map[string]bool, len(w.Arguments))
	for i := range w.Arguments {
		arg := &w.Arguments[i]
		if arg.Name == "" {
			return fmt.Errorf("argument %d: name is required", i)
		}
		if names[arg.Name] {
			return fmt.Errorf("duplicate argument %q", arg.Name)
		}
		names[arg.Name] = true

		if arg.Type == "" {
			arg.Type = TypeText
		}
		if !knownTypes[arg.Type] {
			return fmt.Errorf("argument %q: unknown argument_type %q", arg.Name, arg.Type)
		}
		if arg.Type == TypeChoice && len(arg.Options) == 0 {
			return fmt.Errorf("argument %q: choice requires a non-empty options list", arg.Name)
		}
		if v := arg.Validation; v != nil && v.Pattern != "" {
			if _, err := regexp.Compile(v.Pattern); err != nil {
				return fmt.Errorf("argument %q: invalid pattern: %v", arg.Name, err)
			}
		}
		if arg.DefaultValue != nil {
			if err := CheckValue(arg, *arg.DefaultValue); err != nil {
				return fmt.Errorf("argument %q: default_value rejected: %v", arg.Name, err)
			}
		}
	}

	for _, s := range w.Shells {
		if !terminal.IsKnownShell(s) {
			return fmt.Errorf("unknown shell %q", s)
		}
	}

	// Every placeholder must name a declared argument.
	for _, ph := range Placeholders(w.Command) {
		if !names[ph] {
			return fmt.Errorf("placeholder {{%s}} names no declared argument", ph)
		}
	}

	// Reject legacy single-brace placeholder attempts.
	if name, found := singleBracePlaceholder(w.Command, names); found {
		return fmt.Errorf("single-brace placeholder {%s} is not supported; use {{%s}}", name, name)
	}

	return nil
}

// singleBracePlaceholder finds a {name} token naming a declared argument in
// the template outside any double-brace placeholder.
func singleBracePlaceholder(command string, args map[string]bool) (string, bool) {
	stripped := placeholderRe.ReplaceAllString(command, "")
	for _, m := range regexp.MustCompile(`\{([A-Za-z0-9_.-]+)\}`).FindAllStringSubmatch(stripped, -1) {
		if args[m[1]] {
			return m[1], true
		}
	}
	return "", false
}

// Marshal serialises a workflow in the canonical key order, suitable for
// byte-identical save/load/save round-trips.
func Marshal(w *Workflow) ([]byte, error) {
	return yaml.Marshal(w)
}

// CheckValue type-checks value against the argument's kind, then applies its
// validation rules. Path kinds are checked syntactically only.
func CheckValue(arg *Argument, value string) error {
	switch arg.Type {
	case TypeNumber:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return &ValidationError{Name: arg.Name, Reason: fmt.Sprintf("%q is not a number", value)}
		}
		if v := arg.Validation; v != nil {
			if v.MinValue != nil && n < *v.MinValue {
				return &ValidationError{Name: arg.Name, Reason: fmt.Sprintf("%v is below minimum %v", n, *v.MinValue)}
			}
			if v.MaxValue != nil && n > *v.MaxValue {
				return &ValidationError{Name: arg.Name, Reason: fmt.Sprintf("%v is above maximum %v", n, *v.MaxValue)}
			}
		}
	case TypeBoolean:
		if value != "true" && value != "false" {
			return &ValidationError{Name: arg.Name, Reason: fmt.Sprintf("%q is not true or false", value)}
		}
	case TypeURL:
		if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
			return &ValidationError{Name: arg.Name, Reason: "url must start with http:// or https://"}
		}
	case TypeEmail:
		if !strings.Contains(value, "@") {
			return &ValidationError{Name: arg.Name, Reason: "email must contain @"}
		}
	case TypeChoice:
		ok := false
		for _, opt := range arg.Options {
			if value == opt {
				ok = true
				break
			}
		}
		if !ok {
			return &ValidationError{Name: arg.Name, Reason: fmt.Sprintf("%q is not one of %v", value, arg.Options)}
		}
	case TypeFilePath, TypeDirectory:
		if strings.ContainsRune(value, 0) {
			return &ValidationError{Name: arg.Name, Reason: "path contains NUL"}
		}
	}

	if v := arg.Validation; v != nil && isStringKind(arg.Type) {
		if v.MinLength != nil && len(value) < *v.MinLength {
			return &ValidationError{Name: arg.Name, Reason: fmt.Sprintf("shorter than minimum length %d", *v.MinLength)}
		}
		if v.MaxLength != nil && len(value) > *v.MaxLength {
			return &ValidationError{Name: arg.Name, Reason: fmt.Sprintf("longer than maximum length %d", *v.MaxLength)}
		}
	}
	if v := arg.Validation; v != nil && v.Pattern != "" {
		// Full match, not substring.
		re, err := regexp.Compile(`\A(?:` + v.Pattern + `)\z`)
		if err != nil {
			return &ValidationError{Name: arg.Name, Reason: fmt.Sprintf("invalid pattern: %v", err)}
		}
		if !re.MatchString(value) {
			return &ValidationError{Name: arg.Name, Reason: fmt.Sprintf("%q does not match pattern %q", value, v.Pattern)}
		}
	}
	return nil
}

func isStringKind(t ArgumentType) bool {
	switch t {
	case TypeText, TypeFilePath, TypeDirectory, TypeURL, TypeEmail, TypeChoice, "":
		return true
	}
	return false
}
