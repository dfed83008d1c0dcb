package workflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const grepWorkflow = `name: Search logs
command: "grep -rn '{{pattern}}' {{dir}}"
description: Recursive search under a directory
tags:
  - search
arguments:
  - name: pattern
    required: true
  - name: dir
    default_value: "."
    argument_type: directory_path
`

func TestParseWorkflow(t *testing.T) {
	wf, err := Parse([]byte(grepWorkflow))
	require.NoError(t, err)

	assert.Equal(t, "Search logs", wf.Name)
	assert.Equal(t, []string{"search"}, wf.Tags)
	require.Len(t, wf.Arguments, 2)
	assert.True(t, wf.Arguments[0].Required)
	assert.Equal(t, TypeText, wf.Arguments[0].Type, "omitted argument_type defaults to text")
	assert.Equal(t, TypeDirectory, wf.Arguments[1].Type)
	require.NotNil(t, wf.Arguments[1].DefaultValue)
	assert.Equal(t, ".", *wf.Arguments[1].DefaultValue)
}

func TestPlaceholdersOrderAndDedup(t *testing.T) {
	names := Placeholders("echo {{a}} {{b}} {{a}} {{c}}")
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestParseRejectsUndeclaredPlaceholder(t *testing.T) {
	_, err := Parse([]byte("name: bad\ncommand: \"echo {{missing}}\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{{missing}}")
}

func TestParseRejectsSingleBracePlaceholder(t *testing.T) {
	src := `name: legacy
command: "echo {target}"
arguments:
  - name: target
`
	_, err := Parse([]byte(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single-brace")
}

func TestSingleBraceInsideJSONLiteralIsAllowed(t *testing.T) {
	// Braces that do not name a declared argument are plain text.
	src := `name: curl json
command: "curl -d '{\"k\": 1}' {{url}}"
arguments:
  - name: url
    argument_type: url
`
	_, err := Parse([]byte(src))
	assert.NoError(t, err)
}

func TestParseRejectsChoiceWithoutOptions(t *testing.T) {
	src := `name: deploy
command: "deploy {{env}}"
arguments:
  - name: env
    argument_type: choice
`
	_, err := Parse([]byte(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "options")
}

func TestParseRejectsDefaultFailingValidation(t *testing.T) {
	src := `name: port
command: "nc localhost {{port}}"
arguments:
  - name: port
    argument_type: number
    default_value: "70000"
    validation:
      max_value: 65535
`
	_, err := Parse([]byte(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_value rejected")
}

func TestParseRejectsUnknownShell(t *testing.T) {
	_, err := Parse([]byte("name: x\ncommand: ls\nshells:\n  - tcsh\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tcsh")
}

func TestParseRejectsDuplicateArguments(t *testing.T) {
	src := `name: dup
command: "echo {{a}}"
arguments:
  - name: a
  - name: a
`
	_, err := Parse([]byte(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestMarshalRoundTrip(t *testing.T) {
	wf, err := Parse([]byte(grepWorkflow))
	require.NoError(t, err)

	data, err := Marshal(wf)
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, wf.Name, again.Name)
	assert.Equal(t, wf.Command, again.Command)
	assert.Equal(t, wf.Arguments, again.Arguments)
}

func TestCheckValue(t *testing.T) {
	f64 := func(v float64) *float64 { return &v }
	intPtr := func(v int) *int { return &v }

	tests := []struct {
		name    string
		arg     Argument
		value   string
		wantErr string
	}{
		{"text ok", Argument{Name: "a"}, "anything", ""},
		{"number ok", Argument{Name: "n", Type: TypeNumber}, "3.5", ""},
		{"number bad", Argument{Name: "n", Type: TypeNumber}, "three", "not a number"},
		{"number below min", Argument{Name: "n", Type: TypeNumber, Validation: &Validation{MinValue: f64(1)}}, "0", "below minimum"},
		{"boolean ok", Argument{Name: "b", Type: TypeBoolean}, "true", ""},
		{"boolean bad", Argument{Name: "b", Type: TypeBoolean}, "yes", "not true or false"},
		{"url ok", Argument{Name: "u", Type: TypeURL}, "https://example.com", ""},
		{"url bad", Argument{Name: "u", Type: TypeURL}, "example.com", "http"},
		{"email bad", Argument{Name: "e", Type: TypeEmail}, "nobody", "@"},
		{"choice ok", Argument{Name: "c", Type: TypeChoice, Options: []string{"dev", "prod"}}, "dev", ""},
		{"choice bad", Argument{Name: "c", Type: TypeChoice, Options: []string{"dev", "prod"}}, "staging", "not one of"},
		{"length bound", Argument{Name: "t", Validation: &Validation{MaxLength: intPtr(3)}}, "abcd", "maximum length"},
		{"pattern full match", Argument{Name: "v", Validation: &Validation{Pattern: `v\d+`}}, "v12", ""},
		{"pattern substring rejected", Argument{Name: "v", Validation: &Validation{Pattern: `v\d+`}}, "xv12y", "does not match"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckValue(&tt.arg, tt.value)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "got %v", err)
		})
	}
}
