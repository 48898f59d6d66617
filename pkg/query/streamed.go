package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Target record types in `bazel query --output=streamed_jsonproto`.
const (
	typeRule          = "RULE"
	typeSourceFile    = "SOURCE_FILE"
	typeGeneratedFile = "GENERATED_FILE"
	typePackageGroup  = "PACKAGE_GROUP"
	typeEnvironment   = "ENVIRONMENT_GROUP"
)

type streamedTarget struct {
	Type          string         `json:"type"`
	Rule          *streamedRule  `json:"rule"`
	SourceFile    *streamedFile  `json:"sourceFile"`
	GeneratedFile *generatedFile `json:"generatedFile"`
}

type streamedRule struct {
	Name      string      `json:"name"`
	RuleClass string      `json:"ruleClass"`
	Location  string      `json:"location"`
	Attribute []attribute `json:"attribute"`
}

type streamedFile struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

type generatedFile struct {
	Name           string `json:"name"`
	GeneratingRule string `json:"generatingRule"`
}

type attribute struct {
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	StringValue     string   `json:"stringValue"`
	StringListValue []string `json:"stringListValue"`
	BooleanValue    *bool    `json:"booleanValue"`
	IntValue        *int     `json:"intValue"`
}

func (a attribute) boolean() bool {
	if a.BooleanValue != nil {
		return *a.BooleanValue
	}
	return a.IntValue != nil && *a.IntValue != 0
}

// ReadStreamedJSON parses the output of
// `bazel query --output=streamed_jsonproto`: one JSON Target per line.
func ReadStreamedJSON(r io.Reader) (*Summary, error) {
	s := NewSummary()
	dec := json.NewDecoder(r)
	for n := 1; ; n++ {
		var t streamedTarget
		if err := dec.Decode(&t); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("query output record %d: %w", n, err)
		}
		switch t.Type {
		case typeRule:
			if t.Rule == nil {
				return nil, fmt.Errorf("query output record %d: RULE without rule body", n)
			}
			s.AddRule(ruleFromStreamed(t.Rule))
		case typeSourceFile:
			if t.SourceFile != nil {
				s.AddSourceFile(t.SourceFile.Name)
			}
		case typeGeneratedFile:
			if t.GeneratedFile != nil {
				s.AddGeneratedFile(t.GeneratedFile.Name, t.GeneratedFile.GeneratingRule)
			}
		case typePackageGroup, typeEnvironment:
			// Not part of the dependency graph.
		default:
			return nil, fmt.Errorf("query output record %d: unknown target type %q", n, t.Type)
		}
	}
	return s, nil
}

func ruleFromStreamed(sr *streamedRule) Rule {
	r := Rule{Label: sr.Name, Kind: sr.RuleClass}
	for _, a := range sr.Attribute {
		switch a.Name {
		case "srcs":
			r.Sources = append(r.Sources, a.StringListValue...)
		case "deps":
			r.Deps = append(r.Deps, a.StringListValue...)
		case "runtime_deps":
			r.RuntimeDeps = append(r.RuntimeDeps, a.StringListValue...)
		case "exports":
			r.Exports = append(r.Exports, a.StringListValue...)
		case "tags":
			r.Tags = append(r.Tags, a.StringListValue...)
		case "testonly":
			r.TestOnly = a.boolean()
		}
	}
	return r
}
