package structs

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/minesim/minesim/pkg/errors"
)

// Recognized top-level sections of a discovery configuration.
// Unknown sections are ignored unless strict mode is on; the discovery
// engine owns the semantics of everything in here, we only check shape.
var configSections = map[string]bool{
	"version":                    true,
	"common":                     true,
	"preprocessing":              true,
	"control_flow":               true,
	"resource_model":             true,
	"extraneous_activity_delays": true,
	"simulation":                 true,
}

const (
	configLogPathKey     = "train_log_path"
	configTestLogPathKey = "test_log_path"
)

// ConfigSections lists the recognized top-level configuration sections.
func ConfigSections() []string {
	out := make([]string, 0, len(configSections))
	for k := range configSections {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ValidateConfig checks that raw parses as a structurally valid discovery
// configuration: a YAML mapping with a numeric version (if present).
// It does no semantic validation of discovery parameters.
func ValidateConfig(raw []byte, strict bool) error {
	doc, err := decodeConfig(raw)
	if err != nil {
		return err
	}
	if v, ok := doc["version"]; ok {
		switch v.(type) {
		case int, float64:
		default:
			return fmt.Errorf("%w configuration version must be a number, got %T", errors.ErrValidation, v)
		}
	}
	if !strict {
		return nil
	}
	for k := range doc {
		if !configSections[k] {
			return fmt.Errorf("%w unknown configuration section %q", errors.ErrValidation, k)
		}
	}
	return nil
}

// RewriteConfig points the configuration's train log at the stored event log
// and drops any test log reference (the test log isn't part of a submission).
// A nil / empty raw yields a minimal configuration for the given log.
func RewriteConfig(raw []byte, logPath string) ([]byte, error) {
	var doc map[string]interface{}
	if len(raw) == 0 {
		doc = map[string]interface{}{}
	} else {
		var err error
		doc, err = decodeConfig(raw)
		if err != nil {
			return nil, err
		}
	}

	common, ok := doc["common"].(map[string]interface{})
	if !ok {
		common = map[string]interface{}{}
	}
	common[configLogPathKey] = logPath
	common[configTestLogPathKey] = nil
	doc["common"] = common

	return yaml.Marshal(doc)
}

func decodeConfig(raw []byte) (map[string]interface{}, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w configuration is not valid yaml: %v", errors.ErrValidation, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w configuration is empty", errors.ErrValidation)
	}
	return doc, nil
}
