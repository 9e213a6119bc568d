package course

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// SupportedMajor is the course definition major version this build reads.
const SupportedMajor = "v1"

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// Load reads and parses a course definition file.
func Load(path string) (*Course, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read course %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse course %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML course definition, validates its shape against the
// embedded schema and checks the version.
func Parse(data []byte) (*Course, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Reason: "course file is not valid YAML", Err: err}
	}

	doc, err := toJSONValue(raw)
	if err != nil {
		return nil, &ConfigError{Reason: "course file cannot be represented as JSON", Err: err}
	}

	sch, err := courseSchema()
	if err != nil {
		return nil, fmt.Errorf("compile course schema: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, &ConfigError{Reason: "course file does not match the course schema", Err: err}
	}

	var c Course
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, &ConfigError{Reason: "course file has invalid field values", Err: err}
	}

	if err := checkVersion(c.Version); err != nil {
		return nil, err
	}
	return &c, nil
}

func checkVersion(v string) error {
	if !semver.IsValid(v) {
		return &ConfigError{
			Reason: "course version must be a semantic version",
			Detail: fmt.Sprintf("got %q, want e.g. v1.0.0", v),
		}
	}
	if major := semver.Major(v); major != SupportedMajor {
		return &ConfigError{
			Reason: "course version is not supported",
			Detail: fmt.Sprintf("major %s, supported %s", major, SupportedMajor),
		}
	}
	return nil
}

// toJSONValue normalizes a decoded YAML tree into the value types produced
// by encoding/json, which is what the schema validator expects.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func courseSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		var def any
		if err := json.Unmarshal(schemaJSON, &def); err != nil {
			schemaErr = fmt.Errorf("parse schema definition: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		const url = "schema://course.json"
		if err := c.AddResource(url, def); err != nil {
			schemaErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(url)
	})
	return compiledSchema, schemaErr
}
