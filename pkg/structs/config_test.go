package structs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"

	"github.com/minesim/minesim/pkg/errors"
)

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		Name   string
		Given  string
		Strict bool
		Expect error
	}{
		{
			"Minimal",
			"version: 5\n",
			false,
			nil,
		},
		{
			"FullSections",
			"version: 5\ncommon: {}\npreprocessing: {}\ncontrol_flow: {}\nresource_model: {}\n",
			true,
			nil,
		},
		{
			"NotYaml",
			"{{{{",
			false,
			errors.ErrValidation,
		},
		{
			"Empty",
			"",
			false,
			errors.ErrValidation,
		},
		{
			"NonNumericVersion",
			"version: five\n",
			false,
			errors.ErrValidation,
		},
		{
			"UnknownSectionLenient",
			"version: 5\nextra_bits: {}\n",
			false,
			nil,
		},
		{
			"UnknownSectionStrict",
			"version: 5\nextra_bits: {}\n",
			true,
			errors.ErrValidation,
		},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			err := ValidateConfig([]byte(c.Given), c.Strict)

			if c.Expect == nil {
				assert.Nil(t, err)
			} else {
				assert.ErrorIs(t, err, c.Expect)
			}
		})
	}
}

func TestRewriteConfig(t *testing.T) {
	given := "version: 5\ncommon:\n  train_log_path: /someone/machine/log.csv\n  test_log_path: /someone/machine/test.csv\n  num_evaluations: 10\n"

	out, err := RewriteConfig([]byte(given), "jobs/abc/input/log.csv")

	assert.Nil(t, err)

	var doc map[string]interface{}
	assert.Nil(t, yaml.Unmarshal(out, &doc))

	common := doc["common"].(map[string]interface{})
	assert.Equal(t, "jobs/abc/input/log.csv", common["train_log_path"])
	assert.Nil(t, common["test_log_path"])
	assert.Equal(t, 10, common["num_evaluations"])
	assert.Equal(t, 5, doc["version"])
}

func TestRewriteConfigFromNothing(t *testing.T) {
	out, err := RewriteConfig(nil, "jobs/abc/input/log.csv")

	assert.Nil(t, err)

	var doc map[string]interface{}
	assert.Nil(t, yaml.Unmarshal(out, &doc))
	common := doc["common"].(map[string]interface{})
	assert.Equal(t, "jobs/abc/input/log.csv", common["train_log_path"])
}

func TestConfigSections(t *testing.T) {
	sections := ConfigSections()

	assert.Contains(t, sections, "version")
	assert.Contains(t, sections, "common")
	assert.Contains(t, sections, "control_flow")
	assert.IsIncreasing(t, sections)
}
