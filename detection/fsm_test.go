package detection_test

import (
	"errors"
	"testing"

	_ "embed"

	"anarchy.ttfm/storefront/blockchains"
	"anarchy.ttfm/storefront/decimal"
	"anarchy.ttfm/storefront/detection"
	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

//go:embed tests/scenarios.yaml
var scenarios []byte

func Test_Machine(t *testing.T) {
	type Step struct {
		Event         detection.EventKind `yaml:"event"`
		Received      string              `yaml:"received"`
		Confirmations int                 `yaml:"confirmations"`
		Error         string              `yaml:"error"`
		State         detection.State     `yaml:"state"`
		Failures      int                 `yaml:"failures"`
		Invalid       bool                `yaml:"invalid"`
	}
	type Test struct {
		Name     string `yaml:"name"`
		Expected string `yaml:"expected"`
		Steps    []Step `yaml:"steps"`
	}

	var tests []Test
	err := yaml.Unmarshal(scenarios, &tests)
	if !assert.Nil(t, err, "failed to load scenarios") {
		return
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			assertions := assert.New(t)

			machine := detection.NewMachine(detection.DefaultPolicy(), decimal.MustParse(test.Expected))
			assertions.Equal(detection.StateIdle, machine.State())

			for index, step := range test.Steps {
				event := detection.Event{Kind: step.Event}
				if step.Received != "" {
					event.Confirmation = blockchains.Confirmation{
						Confirmations: step.Confirmations,
						Received:      decimal.MustParse(step.Received),
					}
				}
				if step.Error != "" {
					event.Err = errors.New(step.Error)
				}

				state, err := machine.Apply(event)
				if step.Invalid {
					assertions.ErrorIs(err, detection.ErrInvalidTransition, "step %d", index)
				} else {
					assertions.Nil(err, "step %d", index)
				}
				assertions.Equal(step.State, state, "step %d", index)
				assertions.Equal(step.Failures, machine.Progress().Failures, "step %d", index)
				if step.Error != "" && !step.Invalid {
					assertions.Equal(step.Error, machine.Progress().LastError, "step %d", index)
				}
			}
		})
	}
}

func Test_DisplayClamp(t *testing.T) {
	assertions := assert.New(t)

	machine := detection.NewMachine(detection.DefaultPolicy(), decimal.MustParse("1"))
	assertions.Nil(machine.Start())
	assertions.Nil(machine.Observe(blockchains.Confirmation{Confirmations: 240, Received: decimal.MustParse("0.5")}))
	assertions.Equal(blockchains.DefaultConfirmationCap, machine.Progress().Confirmations)
	assertions.Equal(detection.StateDetecting, machine.State())
}

func Test_Policy(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		assertions := assert.New(t)

		policy := detection.DefaultPolicy()
		assertions.Nil(policy.Validate())
		assertions.True(policy.Received(decimal.MustParse("95"), decimal.MustParse("100")))
		assertions.False(policy.Received(decimal.MustParse("94.99"), decimal.MustParse("100")))
		assertions.False(policy.Final(1))
		assertions.True(policy.Final(2))
	})
	t.Run("Invalid", func(t *testing.T) {
		mutations := map[string]func(p *detection.Policy){
			"Zero tolerance":  func(p *detection.Policy) { p.Tolerance = decimal.Zero },
			"Above one":       func(p *detection.Policy) { p.Tolerance = decimal.MustParse("1.01") },
			"No confirmation": func(p *detection.Policy) { p.MinConfirmations = 0 },
			"Cap below min":   func(p *detection.Policy) { p.ConfirmationCap = 1 },
			"No interval":     func(p *detection.Policy) { p.Interval = 0 },
			"Short duration":  func(p *detection.Policy) { p.MaxDuration = p.Interval / 2 },
		}
		for name, mutate := range mutations {
			t.Run(name, func(t *testing.T) {
				assertions := assert.New(t)

				policy := detection.DefaultPolicy()
				mutate(&policy)
				assertions.ErrorIs(policy.Validate(), detection.ErrInvalidPolicy)
			})
		}
	})
}
