package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/mobility-stats/internal/geo"
	"github.com/sells-group/mobility-stats/internal/stats"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Stats  StatsConfig  `yaml:"stats" mapstructure:"stats"`
}

// StoreConfig configures the record store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	RateLimit   float64  `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second on stats endpoints
	RateBurst   int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StatsConfig holds the constants of the statistics model.
type StatsConfig struct {
	VersionField    string             `yaml:"version_field" mapstructure:"version_field"`
	RouteFactor     float64            `yaml:"route_factor" mapstructure:"route_factor"`
	HexCoefficient  float64            `yaml:"hex_coefficient" mapstructure:"hex_coefficient"`
	HexCoefficients map[string]float64 `yaml:"hex_coefficients" mapstructure:"hex_coefficients"`
	SubResolution   int                `yaml:"sub_resolution" mapstructure:"sub_resolution"`
	WeeksPerYear    float64            `yaml:"weeks_per_year" mapstructure:"weeks_per_year"`
	RoundTrip       float64            `yaml:"round_trip" mapstructure:"round_trip"`
	LegacyProScale  int                `yaml:"legacy_pro_scale" mapstructure:"legacy_pro_scale"`
	TrainShare      float64            `yaml:"train_share" mapstructure:"train_share"`
	Areas           geo.AreaThresholds `yaml:"areas" mapstructure:"areas"`
	// EmissionFactors in g/pkm. A negative value removes the mode from the
	// table, e.g. to leave elec_moto unrated.
	EmissionFactors map[string]float64 `yaml:"emission_factors" mapstructure:"emission_factors"`
	RecoAliases     map[string]string  `yaml:"reco_aliases" mapstructure:"reco_aliases"`
	Concurrency     int                `yaml:"concurrency" mapstructure:"concurrency"`
}

// Params builds the immutable engine parameters.
func (s StatsConfig) Params() stats.Params {
	p := stats.DefaultParams()
	if s.VersionField != "" {
		p.VersionField = s.VersionField
	}
	if s.WeeksPerYear > 0 {
		p.WeeksPerYear = s.WeeksPerYear
	}
	if s.RoundTrip > 0 {
		p.RoundTrip = s.RoundTrip
	}
	if s.LegacyProScale > 0 {
		p.LegacyProScale = s.LegacyProScale
	}
	if s.TrainShare > 0 && s.TrainShare <= 1 {
		p.TrainShare = s.TrainShare
	}
	if s.Areas != (geo.AreaThresholds{}) {
		p.Areas = s.Areas
	}
	if len(s.EmissionFactors) > 0 {
		p.EmissionFactors = map[string]float64{}
		for mode, f := range s.EmissionFactors {
			if f >= 0 {
				p.EmissionFactors[mode] = f
			}
		}
	}
	if len(s.RecoAliases) > 0 {
		p.RecoAliases = s.RecoAliases
	}

	opts := []geo.Option{
		geo.WithRouteFactor(s.RouteFactor),
		geo.WithDefaultHexCoefficient(s.HexCoefficient),
	}
	if len(s.HexCoefficients) > 0 {
		opts = append(opts, geo.WithHexCoefficients(s.HexCoefficients))
	}
	if s.SubResolution > 0 {
		opts = append(opts, geo.WithSubResolution(s.SubResolution))
	}
	p.Estimator = geo.NewEstimator(opts...)
	return p
}

// Validate checks the settings required by a command mode: "stats",
// "campaign", "import" or "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "stats", "campaign", "import", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	if mode == "serve" {
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.RateLimit <= 0 {
			problems = append(problems, "server.rate_limit must be > 0")
		}
	}

	s := c.Stats
	if s.TrainShare < 0 || s.TrainShare > 1 {
		problems = append(problems, "stats.train_share must be between 0 and 1")
	}
	if s.WeeksPerYear < 0 || s.RoundTrip < 0 || s.RouteFactor < 0 || s.HexCoefficient < 0 {
		problems = append(problems, "stats factors must be >= 0")
	}
	if a := s.Areas; a != (geo.AreaThresholds{}) && !(a.LocalKM < a.NationalKM && a.NationalKM < a.EuropeKM) {
		problems = append(problems, "stats.areas must be increasing (local_km < national_km < europe_km)")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MOBILITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "mobility.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.cors_origins", []string{"*"})

	d := stats.DefaultParams()
	areas := geo.DefaultAreaThresholds()
	hex := map[string]float64{}
	for _, m := range geo.DefaultHexModes {
		hex[m] = geo.DefaultHexCoefficient
	}
	v.SetDefault("stats.version_field", d.VersionField)
	v.SetDefault("stats.route_factor", geo.DefaultRouteFactor)
	v.SetDefault("stats.hex_coefficient", geo.DefaultHexCoefficient)
	v.SetDefault("stats.hex_coefficients", hex)
	v.SetDefault("stats.sub_resolution", geo.DefaultSubResolution)
	v.SetDefault("stats.weeks_per_year", d.WeeksPerYear)
	v.SetDefault("stats.round_trip", d.RoundTrip)
	v.SetDefault("stats.legacy_pro_scale", d.LegacyProScale)
	v.SetDefault("stats.train_share", d.TrainShare)
	v.SetDefault("stats.areas.local_km", areas.LocalKM)
	v.SetDefault("stats.areas.national_km", areas.NationalKM)
	v.SetDefault("stats.areas.europe_km", areas.EuropeKM)
	v.SetDefault("stats.emission_factors", d.EmissionFactors)
	v.SetDefault("stats.reco_aliases", d.RecoAliases)
	v.SetDefault("stats.concurrency", 0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
