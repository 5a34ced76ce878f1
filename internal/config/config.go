package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Logger     LoggerConfig
	Dataset    DatasetConfig
	Upload     UploadConfig
	Auth       AuthConfig
	History    HistoryConfig
	Archive    ArchiveConfig
	Models     ModelsConfig
	Kubernetes KubernetesConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type LoggerConfig struct {
	Level  string
	Format string
}

type DatasetConfig struct {
	DataDir          string
	TemplatePath     string
	IdentifierColumn string
	NumericColumns   []string
}

type UploadConfig struct {
	MaxBytes int64
	// RatePerSecond limits uploads per user. Zero disables the limiter.
	RatePerSecond float64
	Burst         int
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type HistoryConfig struct {
	Path         string
	DatabaseURL  string
	BatchHistory bool
}

type ArchiveConfig struct {
	// Backend is "local", "gcs" or "none".
	Backend string
	Dir     string
	Bucket  string
	Prefix  string
}

type ModelsConfig struct {
	CatalogPath string
	Timeout     time.Duration
}

type KubernetesConfig struct {
	Enabled        bool
	InCluster      bool
	KubeConfigPath string
	DefaultNS      string
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "json")
	v.SetDefault("DATA_DIR", "./data/users")
	v.SetDefault("TEMPLATE_DATASET_PATH", "./data/template.csv")
	v.SetDefault("IDENTIFIER_COLUMN", "customerID")
	v.SetDefault("NUMERIC_COLUMNS", "tenure,MonthlyCharges,TotalCharges,AvgMonthlyCharges,MonthlyChargesToTotalChargesRatio")
	v.SetDefault("UPLOAD_MAX_BYTES", 32<<20)
	v.SetDefault("UPLOAD_RPS", 1.0)
	v.SetDefault("UPLOAD_BURST", 3)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("HISTORY_PATH", "./data/history.csv")
	v.SetDefault("HISTORY_DATABASE_URL", "")
	v.SetDefault("PREDICTION_BATCH_HISTORY", false)
	v.SetDefault("ARCHIVE_BACKEND", "local")
	v.SetDefault("ARCHIVE_DIR", "./data/uploads")
	v.SetDefault("ARCHIVE_BUCKET", "")
	v.SetDefault("ARCHIVE_PREFIX", "uploads")
	v.SetDefault("MODEL_CATALOG_PATH", "./models.yaml")
	v.SetDefault("MODEL_TIMEOUT", "30s")
	v.SetDefault("K8S_ENABLED", false)
	v.SetDefault("K8S_IN_CLUSTER", false)
	v.SetDefault("K8S_KUBECONFIG", "")
	v.SetDefault("K8S_NAMESPACE", "model-serving")

	// Env
	v.AutomaticEnv()

	timeout, err := time.ParseDuration(v.GetString("MODEL_TIMEOUT"))
	if err != nil {
		timeout = 30 * time.Second
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
		Dataset: DatasetConfig{
			DataDir:          v.GetString("DATA_DIR"),
			TemplatePath:     v.GetString("TEMPLATE_DATASET_PATH"),
			IdentifierColumn: v.GetString("IDENTIFIER_COLUMN"),
			NumericColumns:   splitList(v.GetString("NUMERIC_COLUMNS")),
		},
		Upload: UploadConfig{
			MaxBytes:      v.GetInt64("UPLOAD_MAX_BYTES"),
			RatePerSecond: v.GetFloat64("UPLOAD_RPS"),
			Burst:         v.GetInt("UPLOAD_BURST"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
			Issuer:    v.GetString("JWT_ISSUER"),
		},
		History: HistoryConfig{
			Path:         v.GetString("HISTORY_PATH"),
			DatabaseURL:  v.GetString("HISTORY_DATABASE_URL"),
			BatchHistory: v.GetBool("PREDICTION_BATCH_HISTORY"),
		},
		Archive: ArchiveConfig{
			Backend: strings.ToLower(v.GetString("ARCHIVE_BACKEND")),
			Dir:     v.GetString("ARCHIVE_DIR"),
			Bucket:  v.GetString("ARCHIVE_BUCKET"),
			Prefix:  v.GetString("ARCHIVE_PREFIX"),
		},
		Models: ModelsConfig{
			CatalogPath: v.GetString("MODEL_CATALOG_PATH"),
			Timeout:     timeout,
		},
		Kubernetes: KubernetesConfig{
			Enabled:        v.GetBool("K8S_ENABLED"),
			InCluster:      v.GetBool("K8S_IN_CLUSTER"),
			KubeConfigPath: v.GetString("K8S_KUBECONFIG"),
			DefaultNS:      v.GetString("K8S_NAMESPACE"),
		},
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
