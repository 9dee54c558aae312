// Package config loads the Truth Engine's tunable constants: supplier
// freshness window, time-decay threshold, delta-history capacity, and
// circuit-breaker ratio. Defaults match the engine's hard-coded behavior
// exactly; an optional YAML override file is validated against an embedded
// CUE schema before any value from it is accepted, the way the teacher's
// compiler package validates CUE concept specs before turning them into IR.
package config

import (
	"encoding/json"
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/donizo-labs/truthengine/internal/pricing"
)

//go:embed schema.cue
var schemaCUE string

// SchemaVersion is the override file's expected schema_version field. Bump
// when the override shape changes in a way old files can't satisfy.
const SchemaVersion = 1

// override is the YAML shape an override file may provide. Fields are
// pointers so "not present" is distinguishable from "present and zero" —
// a config that wants a zero freshness window has to say so explicitly.
type override struct {
	SchemaVersion            int    `yaml:"schema_version"`
	SupplierFreshnessSeconds *int64 `yaml:"supplier_freshness_seconds"`
	DecayThresholdSeconds    *int64 `yaml:"decay_threshold_seconds"`
	MaxDeltaHistory          *int   `yaml:"max_delta_history"`
	CircuitBreakerRatioPct   *int64 `yaml:"circuit_breaker_ratio_pct"`
}

// Load returns pricing.DefaultParams() when path is empty. When path is
// given, the file is parsed as YAML, validated against the embedded CUE
// schema, and any fields it sets override the defaults.
func Load(path string) (pricing.Params, error) {
	params := pricing.DefaultParams()
	if path == "" {
		return params, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return params, fmt.Errorf("read config override: %w", err)
	}

	if err := validateAgainstSchema(raw); err != nil {
		return params, fmt.Errorf("config override failed schema validation: %w", err)
	}

	var ov override
	if err := yaml.Unmarshal(raw, &ov); err != nil {
		return params, fmt.Errorf("parse config override: %w", err)
	}

	if ov.SupplierFreshnessSeconds != nil {
		params.SupplierFreshnessSeconds = *ov.SupplierFreshnessSeconds
	}
	if ov.DecayThresholdSeconds != nil {
		params.DecayThresholdSeconds = *ov.DecayThresholdSeconds
	}
	if ov.MaxDeltaHistory != nil {
		params.MaxDeltaHistory = *ov.MaxDeltaHistory
	}
	if ov.CircuitBreakerRatioPct != nil {
		params.CircuitBreakerRatioPct = *ov.CircuitBreakerRatioPct
	}

	return params, nil
}

// validateAgainstSchema converts the override YAML to JSON, compiles that
// as CUE data, and unifies it with the embedded schema. Any constraint
// violation — wrong type, out-of-range value — surfaces as a CUE error.
// The schema struct is open, so fields it does not name are not rejected;
// Load ignores them.
func validateAgainstSchema(yamlBytes []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("internal: embedded config schema is invalid CUE: %w", err)
	}

	data, err := yamlToJSON(yamlBytes)
	if err != nil {
		return fmt.Errorf("decode override as data: %w", err)
	}

	instance := ctx.CompileBytes(data)
	if err := instance.Err(); err != nil {
		return formatCUEErr(err)
	}

	unified := schema.Unify(instance)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEErr(err)
	}

	return nil
}

func yamlToJSON(yamlBytes []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(yamlBytes, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func formatCUEErr(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	return errs[0]
}
