package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gicatesis/backend/internal/pkg/registry"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

type Config struct {
	Server        ServerConfig            `yaml:"server"`
	Database      DatabaseConfig          `yaml:"database"`
	Data          DataConfig              `yaml:"data"`
	Generation    GenerationConfig        `yaml:"generation"`
	PDF           PDFConfig               `yaml:"pdf"`
	Cache         CacheConfig             `yaml:"cache"`
	Watcher       WatcherConfig           `yaml:"watcher"`
	DefaultOrg    string                  `yaml:"default_organization"`
	Organizations []registry.Organization `yaml:"organizations"`
}

type ServerConfig struct {
	Port         string   `yaml:"port"`
	Mode         string   `yaml:"mode"` // debug, release
	AllowOrigins []string `yaml:"allow_origins"`
}

type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite, mysql
	DSN  string `yaml:"dsn"`
}

// DataConfig 目录布局，留空的子目录由 Dir 推导
type DataConfig struct {
	Dir        string `yaml:"dir"`
	FormatsDir string `yaml:"formats_dir"`
	OutputDir  string `yaml:"output_dir"`
	CacheDir   string `yaml:"cache_dir"`
	StaticDir  string `yaml:"static_dir"`
}

type GenerationConfig struct {
	PythonBin     string        `yaml:"python_bin"`
	ScriptsDir    string        `yaml:"scripts_dir"`
	ArtifactTTL   time.Duration `yaml:"artifact_ttl"`
	RenderTimeout time.Duration `yaml:"render_timeout"`
}

type PDFConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Binary     string        `yaml:"binary"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

type WatcherConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

var (
	cfg  *Config
	once sync.Once
)

func GetConfig() *Config {
	once.Do(func() {
		configPath := os.Getenv("CONFIG_PATH")
		if configPath == "" {
			configPath = "config.yaml"
		}
		cfg = Load(configPath)
	})
	return cfg
}

// Default 内置默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8001",
			Mode:         "debug",
			AllowOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "./data/gicatesis.db",
		},
		Data: DataConfig{
			Dir:       "./data",
			OutputDir: "./outputs",
			StaticDir: "./static",
		},
		Generation: GenerationConfig{
			PythonBin:     "python3",
			ScriptsDir:    "./scripts",
			ArtifactTTL:   time.Hour,
			RenderTimeout: 120 * time.Second,
		},
		PDF: PDFConfig{
			Enabled:    true,
			Binary:     "soffice",
			Timeout:    120 * time.Second,
			MaxRetries: 1,
		},
		Cache: CacheConfig{
			TTL: 24 * time.Hour,
		},
		Watcher: WatcherConfig{
			Enabled:  true,
			Interval: 5 * time.Second,
		},
		DefaultOrg: "unac",
	}
}

// Load 默认值 < 配置文件 < 环境变量；配置文件不存在时忽略
func Load(path string) *Config {
	config := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			klog.Warningf("配置文件解析失败，使用默认配置: path=%s, error=%v", path, err)
		}
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		config.Server.Port = port
	}

	// 数据库环境变量
	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if dbDSN := os.Getenv("DB_DSN"); dbDSN != "" {
		config.Database.DSN = dbDSN
	}

	// 数据目录环境变量
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		config.Data.Dir = dataDir
	}
	if outputDir := os.Getenv("OUTPUT_DIR"); outputDir != "" {
		config.Data.OutputDir = outputDir
	}
	if config.Data.FormatsDir == "" {
		config.Data.FormatsDir = filepath.Join(config.Data.Dir, "formats")
	}
	if config.Data.CacheDir == "" {
		config.Data.CacheDir = filepath.Join(config.Data.Dir, "cache")
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.Cache.RedisURL = redisURL
	}
	if uni := os.Getenv("GICA_DEFAULT_UNI"); uni != "" {
		config.DefaultOrg = strings.ToLower(uni)
	}
	if python := os.Getenv("PYTHON_BIN"); python != "" {
		config.Generation.PythonBin = python
	}
	if bin := os.Getenv("PDF_CONVERTER_BIN"); bin != "" {
		config.PDF.Binary = bin
	}
	if timeout := os.Getenv("PDF_CONVERSION_TIMEOUT"); timeout != "" {
		if d, ok := parseSeconds(timeout); ok {
			config.PDF.Timeout = d
		} else {
			klog.Warningf("PDF_CONVERSION_TIMEOUT 无效，保持 %s: %q", config.PDF.Timeout, timeout)
		}
	}

	return config
}

// parseSeconds 接受秒数或 Go duration 字符串
func parseSeconds(s string) (time.Duration, bool) {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && n > 0 {
		return time.Duration(n) * time.Second, true
	}
	if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil && d > 0 {
		return d, true
	}
	return 0, false
}

// OrganizationTable 配置中的机构表；未配置时使用内置的 unac/uni
func (c *Config) OrganizationTable() []registry.Organization {
	if len(c.Organizations) == 0 {
		return registry.BuiltinOrganizations(c.Data.FormatsDir, c.Generation.ScriptsDir)
	}
	orgs := make([]registry.Organization, len(c.Organizations))
	for i, org := range c.Organizations {
		if org.DataDir == "" {
			org.DataDir = filepath.Join(c.Data.FormatsDir, org.Code)
		}
		generators := make(map[string]string, len(org.Generators))
		for category, script := range org.Generators {
			if script != "" && !filepath.IsAbs(script) {
				script = filepath.Join(c.Generation.ScriptsDir, script)
			}
			generators[category] = script
		}
		org.Generators = generators
		orgs[i] = org
	}
	return orgs
}
