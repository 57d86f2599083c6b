package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"promptduel/internal/fault"
)

// Promotion modes.
const (
	ModeAutoApply = "auto_apply"
	ModeRecommend = "recommend"
)

// Adapter kinds.
const (
	AdapterScript = "script"
	AdapterLocal  = "local"
	AdapterGemini = "gemini"
)

// Improvement modes.
const (
	ImprovementCases       = "cases"
	ImprovementPassRatePP  = "pass_rate_pp"
	DefaultConfigFile      = "duel.yaml"
	DefaultMetricsTextfile = "metrics.prom"
)

// Config holds all promptduel configuration.
type Config struct {
	// Mode selects whether promotions rewrite the prompt files (auto_apply)
	// or only emit a recommendation and a suggested challenger (recommend).
	Mode    string `yaml:"mode" validate:"oneof=auto_apply recommend"`
	RunRoot string `yaml:"run_root" validate:"required"`

	Prompts    PromptsConfig    `yaml:"prompts"`
	Dataset    DatasetConfig    `yaml:"dataset"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Promotion  PromotionConfig  `yaml:"promotion"`
	Rounds     RoundsConfig     `yaml:"rounds"`
	Store      StoreConfig      `yaml:"store"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// PromptsConfig locates the champion (A) and challenger (B) prompt files.
type PromptsConfig struct {
	ChampionFile   string `yaml:"champion_file" validate:"required"`
	ChallengerFile string `yaml:"challenger_file" validate:"required"`
}

// DatasetConfig configures the case file and the holdout split.
type DatasetConfig struct {
	File             string `yaml:"file" validate:"required"`
	HoldoutMod       int    `yaml:"holdout_mod" validate:"gt=1"`
	HoldoutRemainder int    `yaml:"holdout_remainder" validate:"gte=0,ltfield=HoldoutMod"`
}

// EvaluationConfig configures how prompts are evaluated.
type EvaluationConfig struct {
	Adapter string `yaml:"adapter" validate:"oneof=script local gemini"`

	// Timeout applies to one model call (per case).
	Timeout string `yaml:"timeout" validate:"duration"`
	// CallTimeout bounds one whole adapter invocation.
	CallTimeout string `yaml:"call_timeout" validate:"duration"`

	MaxCasesTrain   int `yaml:"max_cases_train" validate:"gte=0"`
	MaxCasesHoldout int `yaml:"max_cases_holdout" validate:"gte=0"`

	Script ScriptConfig `yaml:"script"`
	Local  LocalConfig  `yaml:"local"`
	Gemini GeminiConfig `yaml:"gemini"`
}

// ScriptConfig configures an external evaluation executable.
type ScriptConfig struct {
	Command      string   `yaml:"command"`
	Args         []string `yaml:"args,omitempty"`
	Backend      string   `yaml:"backend"`
	ModelPath    string   `yaml:"model_path"`
	LiteRTLMDir  string   `yaml:"litertlm_dir"`
	BinaryPath   string   `yaml:"binary_path"`
	SkipSetup    bool     `yaml:"skip_setup"`
	SkipDownload bool     `yaml:"skip_download"`
}

// LocalConfig configures the in-process runner backed by a local model binary.
type LocalConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ModelPath  string `yaml:"model_path"`
	Backend    string `yaml:"backend" validate:"omitempty,oneof=cpu gpu"`
}

// GeminiConfig configures the in-process runner backed by the Gemini API.
type GeminiConfig struct {
	APIKey            string  `yaml:"api_key"`
	Model             string  `yaml:"model"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"` // 0 disables rate limiting
}

// PromotionConfig holds the promotion thresholds.
type PromotionConfig struct {
	ImprovementMode    string  `yaml:"improvement_mode" validate:"oneof=cases pass_rate_pp"`
	MinImprovement     float64 `yaml:"min_improvement" validate:"gte=0"`
	MaxCategoryDropPP  float64 `yaml:"max_category_drop_pp" validate:"gte=0"`
	MinHoldoutPassRate float64 `yaml:"min_holdout_pass_rate" validate:"gte=0,lte=100"`
	HoldoutEnabled     bool    `yaml:"holdout_enabled"`
}

// RoundsConfig bounds the tournament.
type RoundsConfig struct {
	MaxRounds int `yaml:"max_rounds" validate:"gt=0"`
	Patience  int `yaml:"patience" validate:"gt=0"`
}

// StoreConfig configures the sqlite run index.
type StoreConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path" validate:"required_if=Enabled true"`
}

// MetricsConfig configures the prometheus textfile export.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Textfile string `yaml:"textfile"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Mode:    ModeRecommend,
		RunRoot: filepath.Join(".duel", "runs"),

		Prompts: PromptsConfig{
			ChampionFile:   filepath.Join("prompts", "prompt_a.txt"),
			ChallengerFile: filepath.Join("prompts", "prompt_b.txt"),
		},

		Dataset: DatasetConfig{
			File:             filepath.Join("datasets", "cases.jsonl"),
			HoldoutMod:       5,
			HoldoutRemainder: 0,
		},

		Evaluation: EvaluationConfig{
			Adapter:     AdapterScript,
			Timeout:     "30s",
			CallTimeout: "1h",
			Script: ScriptConfig{
				Backend: "cpu",
			},
			Local: LocalConfig{
				Backend: "cpu",
			},
			Gemini: GeminiConfig{
				Model:             "gemini-2.5-flash",
				RequestsPerSecond: 2,
			},
		},

		Promotion: PromotionConfig{
			ImprovementMode:    ImprovementCases,
			MinImprovement:     1,
			MaxCategoryDropPP:  3.0,
			MinHoldoutPassRate: 90.0,
			HoldoutEnabled:     true,
		},

		Rounds: RoundsConfig{
			MaxRounds: 6,
			Patience:  2,
		},

		Store: StoreConfig{
			Enabled:      true,
			DatabasePath: filepath.Join(".duel", "duel.db"),
		},

		Metrics: MetricsConfig{
			Enabled:  true,
			Textfile: DefaultMetricsTextfile,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fault.Configuration("failed to read config", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fault.Configuration("failed to parse config", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if root := os.Getenv("DUEL_RUN_ROOT"); root != "" {
		c.RunRoot = root
	}
	if path := os.Getenv("DUEL_DATASET"); path != "" {
		c.Dataset.File = path
	}
	if mode := os.Getenv("DUEL_MODE"); mode != "" {
		c.Mode = mode
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Evaluation.Gemini.APIKey = key
	}
}

// GetEvalTimeout returns the per-case evaluation timeout.
func (c *Config) GetEvalTimeout() time.Duration {
	d, err := time.ParseDuration(c.Evaluation.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetCallTimeout returns the timeout for one whole adapter invocation.
func (c *Config) GetCallTimeout() time.Duration {
	d, err := time.ParseDuration(c.Evaluation.CallTimeout)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// MetricsPath returns where the metrics textfile goes inside runDir.
func (c *Config) MetricsPath(runDir string) string {
	name := c.Metrics.Textfile
	if name == "" {
		name = DefaultMetricsTextfile
	}
	return filepath.Join(runDir, name)
}

var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("duration", validateDuration)
}

// validateDuration accepts empty strings (meaning "use the default") and
// positive Go durations.
func validateDuration(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	d, err := time.ParseDuration(s)
	return err == nil && d > 0
}

// Validate validates field values and the cross-field adapter requirements.
// It does not touch the filesystem; see CheckFiles.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describeFieldError(fe))
			}
			return fault.Configuration("invalid configuration", errors.New(strings.Join(msgs, "; ")))
		}
		return fault.Configuration("invalid configuration", err)
	}
	if err := c.Logging.validateCategories(); err != nil {
		return err
	}

	switch c.Evaluation.Adapter {
	case AdapterScript:
		if c.Evaluation.Script.Command == "" {
			return fault.Configurationf("evaluation.script.command is required for the script adapter")
		}
	case AdapterLocal:
		if c.Evaluation.Local.BinaryPath == "" || c.Evaluation.Local.ModelPath == "" {
			return fault.Configurationf("evaluation.local.binary_path and evaluation.local.model_path are required for the local adapter")
		}
	case AdapterGemini:
		if c.Evaluation.Gemini.APIKey == "" {
			return fault.Configurationf("Gemini API key not configured (set GEMINI_API_KEY or evaluation.gemini.api_key)")
		}
		if c.Evaluation.Gemini.Model == "" {
			return fault.Configurationf("evaluation.gemini.model is required for the gemini adapter")
		}
	}

	return nil
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Namespace())
	field = strings.TrimPrefix(field, "config.")
	if fe.Param() != "" {
		return fmt.Sprintf("%s fails %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s fails %s (got %v)", field, fe.Tag(), fe.Value())
}

// CheckFiles verifies that every file the run reads exists.
func (c *Config) CheckFiles() error {
	required := map[string]string{
		"prompts.champion_file":   c.Prompts.ChampionFile,
		"prompts.challenger_file": c.Prompts.ChallengerFile,
		"dataset.file":            c.Dataset.File,
	}
	switch c.Evaluation.Adapter {
	case AdapterScript:
		if strings.ContainsRune(c.Evaluation.Script.Command, os.PathSeparator) {
			required["evaluation.script.command"] = c.Evaluation.Script.Command
		}
	case AdapterLocal:
		required["evaluation.local.binary_path"] = c.Evaluation.Local.BinaryPath
		required["evaluation.local.model_path"] = c.Evaluation.Local.ModelPath
	}

	for _, key := range []string{
		"prompts.champion_file",
		"prompts.challenger_file",
		"dataset.file",
		"evaluation.script.command",
		"evaluation.local.binary_path",
		"evaluation.local.model_path",
	} {
		path, ok := required[key]
		if !ok {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			return fault.Configuration(fmt.Sprintf("%s not found: %s", key, path), err)
		}
		if info.IsDir() && key != "evaluation.local.model_path" {
			return fault.Configurationf("%s is a directory: %s", key, path)
		}
	}
	return nil
}
