package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config holds all runtime configuration for the converter.
// Load returns it by value; callers treat it as immutable and hand
// sub-sections to the stages that need them.
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Limits    LimitsConfig    `yaml:"limits" envconfig:"LIMITS"`
	Mapping   MappingConfig   `yaml:"mapping" envconfig:"MAPPING"`
	Fill      FillConfig      `yaml:"fill" envconfig:"FILL"`
	Prefill   PrefillConfig   `yaml:"prefill" envconfig:"PREFILL"`
	Dedupe    DedupeConfig    `yaml:"dedupe" envconfig:"DEDUPE"`
	CrossRef  CrossRefConfig  `yaml:"crossref" envconfig:"CROSSREF"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server settings for headless mode.
type ServerConfig struct {
	Port             int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout      time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout     time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout      time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	OperationTimeout time.Duration `yaml:"operation_timeout" envconfig:"OPERATION_TIMEOUT" validate:"gt=0"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout stderr"`
}

// PathsConfig contains directory settings.
type PathsConfig struct {
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	LogsDir   string `yaml:"logs_dir" envconfig:"LOGS_DIR" validate:"required"`
}

// LimitsConfig bounds how much of a workbook the converter will read.
type LimitsConfig struct {
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes" envconfig:"MAX_FILE_SIZE_BYTES" validate:"gt=0"`
	MaxScanRows      int   `yaml:"max_scan_rows" envconfig:"MAX_SCAN_ROWS" validate:"gt=0"`
	HeaderSearchRows int   `yaml:"header_search_rows" envconfig:"HEADER_SEARCH_ROWS" validate:"gt=0"`
}

// FillConfig drives the forward-fill pass that runs after row mapping.
type FillConfig struct {
	Columns       []string `yaml:"columns" envconfig:"COLUMNS" validate:"min=1"`
	StartRow      int      `yaml:"start_row" envconfig:"START_ROW" validate:"gt=0"`
	MaxIterations int      `yaml:"max_iterations" envconfig:"MAX_ITERATIONS" validate:"gt=0"`
}

// PrefillConfig lists, per sheet type, the source columns forward-filled
// before mapping so blank and merged cells inherit the value above them.
type PrefillConfig struct {
	Columns map[string][]string `yaml:"columns" validate:"required"`
}

// DedupeConfig drives NA-row removal and seasonal-demand merging.
type DedupeConfig struct {
	IndicatorColumn  string   `yaml:"indicator_column" envconfig:"INDICATOR_COLUMN" validate:"required"`
	NAValues         []string `yaml:"na_values" envconfig:"NA_VALUES"`
	Marker           string   `yaml:"marker" envconfig:"MARKER" validate:"required"`
	KeyColumns       []string `yaml:"key_columns" envconfig:"KEY_COLUMNS" validate:"min=1"`
	ClearColumns     []string `yaml:"clear_columns" envconfig:"CLEAR_COLUMNS"`
	FrequencyColumn  string   `yaml:"frequency_column" envconfig:"FREQUENCY_COLUMN" validate:"required"`
	DefaultFrequency string   `yaml:"default_frequency" envconfig:"DEFAULT_FREQUENCY" validate:"required"`
	StartRow         int      `yaml:"start_row" envconfig:"START_ROW" validate:"gt=0"`
}

// CrossRefConfig drives the applicability matrix built in the final stage.
type CrossRefConfig struct {
	ListColumn         string `yaml:"list_column" envconfig:"LIST_COLUMN" validate:"required"`
	StartRow           int    `yaml:"start_row" envconfig:"START_ROW" validate:"gt=0"`
	HeaderRow          int    `yaml:"header_row" envconfig:"HEADER_ROW" validate:"gt=0"`
	FirstArticleColumn string `yaml:"first_article_column" envconfig:"FIRST_ARTICLE_COLUMN" validate:"required"`
	EmptyStreakStop    int    `yaml:"empty_streak_stop" envconfig:"EMPTY_STREAK_STOP" validate:"gt=0"`
	ColumnSlack        int    `yaml:"column_slack" envconfig:"COLUMN_SLACK" validate:"gte=0"`
}

// WebSocketConfig contains progress hub settings.
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" validate:"gt=0"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" validate:"gt=0"`
	BroadcastRate   float64       `yaml:"broadcast_rate" envconfig:"BROADCAST_RATE" validate:"gt=0"`
	BroadcastBurst  int           `yaml:"broadcast_burst" envconfig:"BROADCAST_BURST" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" validate:"gt=0"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" validate:"gt=0"`
}

var validate = validator.New()

// columnRe matches a spreadsheet column reference such as "B" or "AA".
var columnRe = regexp.MustCompile(`^[A-Z]{1,3}$`)

// Load reads configuration from defaults, an optional YAML file, and
// environment variables, in that order of precedence (environment wins).
// The YAML file comes from TSS_CONFIG_FILE when set, otherwise from the
// first of ./config.yaml and ./configs/config.yaml that exists.
func Load() (Config, error) {
	cfg := Default()

	if path := configFilePath(); path != "" {
		if err := loadFromFile(&cfg, path); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// configFilePath returns the YAML file to load, or "" when none applies.
// A file named by TSS_CONFIG_FILE is returned even if missing so the
// caller fails loudly instead of silently ignoring an explicit setting.
func configFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG_FILE"); path != "" {
		return path
	}
	for _, loc := range []string{DefaultConfigFile, "configs/" + DefaultConfigFile} {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// loadFromFile merges YAML settings over the current values. Map-valued
// sections such as the mapping tables merge per key, so a file may
// override one sheet type and inherit the rest.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// Validate checks tag constraints plus the cross-field rules tags cannot
// express: column references must be well formed and mapping tables must
// not write two rules to the same target.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if err := checkColumns("fill.columns", c.Fill.Columns...); err != nil {
		return err
	}
	if err := checkColumns("dedupe.indicator_column", c.Dedupe.IndicatorColumn); err != nil {
		return err
	}
	if err := checkColumns("dedupe.key_columns", c.Dedupe.KeyColumns...); err != nil {
		return err
	}
	if err := checkColumns("dedupe.clear_columns", c.Dedupe.ClearColumns...); err != nil {
		return err
	}
	if err := checkColumns("dedupe.frequency_column", c.Dedupe.FrequencyColumn); err != nil {
		return err
	}
	if err := checkColumns("crossref.list_column", c.CrossRef.ListColumn); err != nil {
		return err
	}
	if err := checkColumns("crossref.first_article_column", c.CrossRef.FirstArticleColumn); err != nil {
		return err
	}

	if err := c.Mapping.validate(); err != nil {
		return err
	}
	if err := c.Prefill.validate(); err != nil {
		return err
	}

	return nil
}

func checkColumns(field string, columns ...string) error {
	for _, col := range columns {
		if !columnRe.MatchString(col) {
			return fmt.Errorf("%s: %q is not a column reference", field, col)
		}
	}
	return nil
}

// Default returns the configuration used when no file or environment
// overrides are present. Every field carries a working value so a bare
// binary converts files without any setup.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:             8091,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			ShutdownTimeout:  10 * time.Second,
			OperationTimeout: DefaultOperationTimeout,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Paths: PathsConfig{
			OutputDir: "output",
			LogsDir:   "logs",
		},
		Limits: LimitsConfig{
			MaxFileSizeBytes: MaxInputFileSize,
			MaxScanRows:      1000,
			HeaderSearchRows: 50,
		},
		Mapping: defaultMapping(),
		Fill: FillConfig{
			Columns:       []string{"D", "E", "F"},
			StartRow:      11,
			MaxIterations: 1000,
		},
		Prefill: defaultPrefill(),
		Dedupe: DedupeConfig{
			IndicatorColumn:  "H",
			NAValues:         []string{"", "NA", "-"},
			Marker:           "SD",
			KeyColumns:       []string{"B", "C", "D", "E", "F", "I", "J"},
			ClearColumns:     []string{"K", "L", "M"},
			FrequencyColumn:  "N",
			DefaultFrequency: "Yearly",
			StartRow:         11,
		},
		CrossRef: CrossRefConfig{
			ListColumn:         "Q",
			StartRow:           11,
			HeaderRow:          1,
			FirstArticleColumn: "R",
			EmptyStreakStop:    5,
			ColumnSlack:        10,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			BroadcastRate:   20,
			BroadcastBurst:  40,
			WriteTimeout:    10 * time.Second,
			PongWait:        WebSocketPongWait,
			PingPeriod:      WebSocketPingPeriod,
		},
	}
}
