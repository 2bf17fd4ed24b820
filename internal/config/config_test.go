package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/mobility-stats/internal/geo"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "mobility.db", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 10, cfg.Server.RateLimit, 0.001)
	assert.Equal(t, 20, cfg.Server.RateBurst)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)

	assert.Equal(t, "data.version", cfg.Stats.VersionField)
	assert.InDelta(t, 1.3, cfg.Stats.RouteFactor, 0.001)
	assert.InDelta(t, 1.22, cfg.Stats.HexCoefficient, 0.001)
	assert.InDelta(t, 1.22, cfg.Stats.HexCoefficients["plane"], 0.001)
	assert.Equal(t, 9, cfg.Stats.SubResolution)
	assert.InDelta(t, 45, cfg.Stats.WeeksPerYear, 0.001)
	assert.InDelta(t, 2, cfg.Stats.RoundTrip, 0.001)
	assert.Equal(t, 12, cfg.Stats.LegacyProScale)
	assert.InDelta(t, 0.8, cfg.Stats.TrainShare, 0.001)
	assert.Equal(t, geo.DefaultAreaThresholds(), cfg.Stats.Areas)
	assert.InDelta(t, 186, cfg.Stats.EmissionFactors["car"], 0.001)
	assert.InDelta(t, 82, cfg.Stats.EmissionFactors["elec_moto"], 0.001)
	assert.Equal(t, "carpool", cfg.Stats.RecoAliases["covoit"])
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/mobility
log:
  level: debug
  format: console
server:
  port: 9090
stats:
  weeks_per_year: 47
  areas:
    local_km: 25
    national_km: 400
    europe_km: 2000
  emission_factors:
    elec_moto: -1
    car: 170
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 47, cfg.Stats.WeeksPerYear, 0.001)
	assert.InDelta(t, 25, cfg.Stats.Areas.LocalKM, 0.001)
	// Defaults still apply for unset values
	assert.InDelta(t, 2, cfg.Stats.RoundTrip, 0.001)

	p := cfg.Stats.Params()
	assert.InDelta(t, 47, p.WeeksPerYear, 0.001)
	assert.Equal(t, "national", p.Areas.Classify(30))
	f, ok := p.Factor("car")
	require.True(t, ok)
	assert.InDelta(t, 170, f, 0.001)
	_, ok = p.Factor("elec_moto")
	assert.False(t, ok)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("MOBILITY_STORE_DRIVER", "postgres")
	t.Setenv("MOBILITY_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("MOBILITY_SERVER_PORT", "3000")
	t.Setenv("MOBILITY_STATS_TRAIN_SHARE", "0.7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.InDelta(t, 0.7, cfg.Stats.TrainShare, 0.001)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "mobility.db"
	cfg.Server.Port = 8080
	cfg.Server.RateLimit = 10
	cfg.Stats.TrainShare = 0.8
	cfg.Stats.Areas = geo.DefaultAreaThresholds()
	return cfg
}

func TestValidate_AllModes(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"stats", "campaign", "import", "serve"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidate_StoreProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("stats")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0
	cfg.Server.RateLimit = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
	assert.Contains(t, err.Error(), "server.rate_limit must be > 0")

	// Only serve checks the server section.
	assert.NoError(t, cfg.Validate("stats"))
}

func TestValidateStatsBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Stats.TrainShare = 1.5
	cfg.Stats.Areas = geo.AreaThresholds{LocalKM: 500, NationalKM: 20, EuropeKM: 1500}

	err := cfg.Validate("stats")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "train_share")
	assert.Contains(t, err.Error(), "stats.areas must be increasing")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestStatsConfigParamsDefaults(t *testing.T) {
	p := StatsConfig{}.Params()

	assert.Equal(t, "data.version", p.VersionField)
	assert.InDelta(t, 45, p.WeeksPerYear, 0)
	assert.NotNil(t, p.Estimator)
	assert.InDelta(t,
		geo.GreatCircle(46.5, 6.6, 46.2, 6.1),
		p.Estimator.GreatCircle(46.5, 6.6, 46.2, 6.1),
		1e-9,
	)
}

func TestStatsConfigParamsEstimator(t *testing.T) {
	p := StatsConfig{RouteFactor: 1}.Params()
	raw := p.Estimator.GreatCircle(46.5, 6.6, 46.2, 6.1)
	assert.InDelta(t, geo.GreatCircle(46.5, 6.6, 46.2, 6.1)/geo.DefaultRouteFactor, raw, 1e-9)
}
