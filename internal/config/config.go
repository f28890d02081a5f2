package config

import (
	"fmt"
	"math"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// CorpusPathEnv overrides policy.corpus_path when set.
const CorpusPathEnv = "PARKPLAN_POLICY_CORPUS"

// Defaults applied by Validate when a field is omitted.
const (
	DefaultMaxSubsidyFraction = 1.0
	DefaultInclusionThreshold = 0.3
	DefaultHorizonYears       = 10
	DefaultDiscountRate       = 0.08
	DefaultLogLevel           = "info"
)

// PlannerConfig represents the top-level parkplan.yml configuration
type PlannerConfig struct {
	Version     string          `yaml:"version"`
	Policy      *PolicyConfig   `yaml:"policy,omitempty"`
	Screener    *ScreenerConfig `yaml:"screener,omitempty"`
	Finance     *FinanceConfig  `yaml:"finance,omitempty"`
	ReviewRules []ReviewRule    `yaml:"review_rules,omitempty"`
	Events      *EventsConfig   `yaml:"events,omitempty"`
	Logging     *LoggingConfig  `yaml:"logging,omitempty"`
}

// PolicyConfig locates the policy corpus and bounds subsidy stacking
type PolicyConfig struct {
	CorpusPath         string   `yaml:"corpus_path,omitempty"`          // Empty = bundled sample corpus
	MaxSubsidyFraction *float64 `yaml:"max_subsidy_fraction,omitempty"` // Cumulative subsidy cap as a fraction of CAPEX (default 1.0)
}

// ScreenerConfig tunes the measure screener
type ScreenerConfig struct {
	InclusionThreshold *float64       `yaml:"inclusion_threshold,omitempty"` // Measures must score above this (default 0.3)
	Weights            *WeightsConfig `yaml:"weights,omitempty"`
}

// WeightsConfig weighs the three applicability sub-scores. Weights are normalized.
type WeightsConfig struct {
	Tendency  float64 `yaml:"tendency"`
	Readiness float64 `yaml:"readiness"`
	Prior     float64 `yaml:"prior"`
}

// FinanceConfig sets the evaluation horizon and the fallback discount rate
type FinanceConfig struct {
	HorizonYears *int     `yaml:"horizon_years,omitempty"` // Default 10
	DiscountRate *float64 `yaml:"discount_rate,omitempty"` // Used when the scenario has none (default 0.08)
}

// ReviewRule raises a review checkpoint when its CEL condition holds for a stage result.
// The expression sees `metrics` (map of double), `labels` (map of string),
// `gap_count` and `high_gap_count` (int).
type ReviewRule struct {
	ID              string   `yaml:"id"`
	Stage           string   `yaml:"stage"`
	When            string   `yaml:"when"`
	Issue           string   `yaml:"issue"`
	SuggestedAction string   `yaml:"suggested_action,omitempty"`
	Severity        string   `yaml:"severity,omitempty"` // low, medium (default) or high
	EditableFields  []string `yaml:"editable_fields,omitempty"`
}

// EventsConfig enables run-event publishing over Redis
type EventsConfig struct {
	RedisURL string `yaml:"redis_url,omitempty"`
	Instance string `yaml:"instance,omitempty"`
}

// LoggingConfig selects the log level
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "info" or "debug"
}

// Default returns a validated configuration with every default applied.
func Default() *PlannerConfig {
	cfg := &PlannerConfig{Version: "1.0"}
	if err := cfg.Validate(); err != nil {
		// Defaults are static; failing here is a programming error
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

// DefaultReviewRules returns the checkpoints installed when review_rules is omitted.
func DefaultReviewRules() []ReviewRule {
	return []ReviewRule{
		{
			ID:              "geo_low_completeness",
			Stage:           "geo",
			When:            "metrics.data_completeness < 0.6",
			Issue:           "Data completeness score below 0.6",
			SuggestedAction: "Confirm selection boundary and upload missing GIS layers.",
			Severity:        "high",
			EditableFields:  []string{"available_layers", "area_km2"},
		},
		{
			ID:              "baseline_proxy_warning",
			Stage:           "baseline",
			When:            "metrics.metered == 0.0 && metrics.data_completeness < 0.6",
			Issue:           "Baseline relies on proxy intensities. Confirm before continuing.",
			SuggestedAction: "Replace with metered load profile if available.",
			Severity:        "high",
			EditableFields:  []string{"facility.metered_electricity_mwh", "facility.metered_thermal_mwh"},
		},
		{
			ID:              "policy_no_match",
			Stage:           "policy",
			When:            "metrics.matched_clause_count == 0.0",
			Issue:           "No policy clause matched any candidate measure.",
			SuggestedAction: "Provide admin_codes/industry_codes or replace the sample corpus with production data.",
			Severity:        "medium",
			EditableFields:  []string{"admin_codes", "industry_codes"},
		},
		{
			ID:              "finance_payback_warning",
			Stage:           "finance",
			When:            "has(metrics.portfolio_payback_years) && metrics.portfolio_payback_years > metrics.horizon_years",
			Issue:           "Portfolio payback exceeds finance horizon.",
			SuggestedAction: "Revisit portfolio mix or update discount rate assumptions.",
			Severity:        "medium",
			EditableFields:  []string{"discount_rate", "measures"},
		},
	}
}

// Validate performs strict validation on the configuration and applies defaults
func (c *PlannerConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Policy defaults
	if c.Policy == nil {
		c.Policy = &PolicyConfig{}
	}
	if c.Policy.MaxSubsidyFraction == nil {
		v := DefaultMaxSubsidyFraction
		c.Policy.MaxSubsidyFraction = &v
	}
	if f := *c.Policy.MaxSubsidyFraction; f <= 0 || f > 1 || math.IsNaN(f) {
		return fmt.Errorf("policy.max_subsidy_fraction must be within (0, 1], got %v", f)
	}

	// Screener defaults
	if c.Screener == nil {
		c.Screener = &ScreenerConfig{}
	}
	if c.Screener.InclusionThreshold == nil {
		v := DefaultInclusionThreshold
		c.Screener.InclusionThreshold = &v
	}
	if th := *c.Screener.InclusionThreshold; th < 0 || th >= 1 {
		return fmt.Errorf("screener.inclusion_threshold must be within [0, 1), got %v", th)
	}
	if c.Screener.Weights == nil {
		c.Screener.Weights = &WeightsConfig{Tendency: 0.4, Readiness: 0.4, Prior: 0.2}
	}
	if err := c.Screener.Weights.Validate(); err != nil {
		return fmt.Errorf("screener.weights: %w", err)
	}

	// Finance defaults
	if c.Finance == nil {
		c.Finance = &FinanceConfig{}
	}
	if c.Finance.HorizonYears == nil {
		v := DefaultHorizonYears
		c.Finance.HorizonYears = &v
	}
	if *c.Finance.HorizonYears < 1 {
		return fmt.Errorf("finance.horizon_years must be >= 1, got %d", *c.Finance.HorizonYears)
	}
	if c.Finance.DiscountRate == nil {
		v := DefaultDiscountRate
		c.Finance.DiscountRate = &v
	}
	if *c.Finance.DiscountRate <= -1 {
		return fmt.Errorf("finance.discount_rate must be > -1, got %v", *c.Finance.DiscountRate)
	}

	// Review rules
	if c.ReviewRules == nil {
		c.ReviewRules = DefaultReviewRules()
	}
	seen := make(map[string]bool)
	for i := range c.ReviewRules {
		rule := &c.ReviewRules[i]
		if err := rule.Validate(); err != nil {
			return err
		}
		if seen[rule.ID] {
			return fmt.Errorf("duplicate review rule id '%s'", rule.ID)
		}
		seen[rule.ID] = true
	}

	// Events are optional, but an instance without a URL is a mistake
	if c.Events != nil && c.Events.Instance != "" && c.Events.RedisURL == "" {
		return fmt.Errorf("events.redis_url is required when events.instance is set")
	}
	if c.Events != nil && c.Events.RedisURL != "" && c.Events.Instance == "" {
		c.Events.Instance = "default"
	}
	if c.Events != nil && c.Events.Instance != "" {
		if err := validateInstanceName(c.Events.Instance); err != nil {
			return err
		}
	}

	// Logging
	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Level != "info" && c.Logging.Level != "debug" {
		return fmt.Errorf("invalid logging.level: %s (must be 'info' or 'debug')", c.Logging.Level)
	}

	return nil
}

// Validate checks the weights are usable for a weighted mean
func (w *WeightsConfig) Validate() error {
	if w.Tendency < 0 || w.Readiness < 0 || w.Prior < 0 {
		return fmt.Errorf("weights must be >= 0 (tendency=%v, readiness=%v, prior=%v)", w.Tendency, w.Readiness, w.Prior)
	}
	if w.Tendency+w.Readiness+w.Prior <= 0 {
		return fmt.Errorf("weights must not all be zero")
	}
	return nil
}

// Validate performs validation on a single review rule and applies its defaults
func (r *ReviewRule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("review rule: id is required")
	}

	switch r.Stage {
	case "geo", "baseline", "measures", "policy", "finance":
	default:
		return fmt.Errorf("review rule '%s': invalid stage: %s (must be 'geo', 'baseline', 'measures', 'policy', or 'finance')", r.ID, r.Stage)
	}

	if r.When == "" {
		return fmt.Errorf("review rule '%s': when is required", r.ID)
	}
	if r.Issue == "" {
		return fmt.Errorf("review rule '%s': issue is required", r.ID)
	}

	if r.Severity == "" {
		r.Severity = "medium"
	}
	if r.Severity != "low" && r.Severity != "medium" && r.Severity != "high" {
		return fmt.Errorf("review rule '%s': invalid severity: %s (must be 'low', 'medium', or 'high')", r.ID, r.Severity)
	}

	return nil
}

// ApplyEnv overlays environment overrides onto the configuration
func (c *PlannerConfig) ApplyEnv() {
	if path := os.Getenv(CorpusPathEnv); path != "" {
		if c.Policy == nil {
			c.Policy = &PolicyConfig{}
		}
		c.Policy.CorpusPath = path
	}
}

// Load reads and validates parkplan.yml from the specified path
func Load(path string) (*PlannerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config PlannerConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// instanceNamePattern keeps instance names safe inside Redis channel names.
var instanceNamePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

const maxInstanceNameLength = 63

func validateInstanceName(name string) error {
	if len(name) > maxInstanceNameLength {
		return fmt.Errorf("events.instance too long: %d characters (max: %d)", len(name), maxInstanceNameLength)
	}
	if !instanceNamePattern.MatchString(name) {
		return fmt.Errorf("invalid events.instance '%s': must be lowercase alphanumeric with hyphens (not at start/end)", name)
	}
	return nil
}
