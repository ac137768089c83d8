package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config defines the structure of the configuration file.
type Config struct {
	GitCommit               string        `yaml:"git_commit" envconfig:"BCAT_GIT_COMMIT"`
	GitTag                  string        `yaml:"git_tag" envconfig:"BCAT_GIT_TAG"`
	BuildTime               string        `yaml:"build_time" envconfig:"BCAT_BUILD_TIME"`
	IsProduction            bool          `yaml:"is_production" envconfig:"BCAT_IS_PRODUCTION"`
	LogLevel                zapcore.Level `yaml:"log_level" envconfig:"BCAT_LOG_LEVEL"`
	LogFolder               string        `yaml:"log_folder" envconfig:"BCAT_LOG_FOLDER"`
	LogMaxSize              int           `yaml:"log_max_size" envconfig:"BCAT_LOG_MAX_SIZE"`
	OpsEndpointsEnable      bool          `yaml:"ops_endpoints_enable" envconfig:"BCAT_OPS_ENDPOINTS_ENABLE"`
	ProfilerEndpointsEnable bool          `yaml:"profiler_endpoints_enable" envconfig:"BCAT_PROFILER_ENDPOINTS_ENABLE"`
	Server                  ServerConfig  `yaml:"server"`
	Mongo                   MongoConfig   `yaml:"mongo"`
	Redis                   RedisConfig   `yaml:"redis"`
	BoltDB                  BoltDBConfig  `yaml:"boltdb"`
	Storage                 StorageConfig `yaml:"storage"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"BCAT_SERVER_HOST"`
	Port            string        `yaml:"port" envconfig:"BCAT_SERVER_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"BCAT_SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"BCAT_SERVER_WRITE_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"BCAT_SERVER_REQUEST_TIMEOUT"` // Time to wait for a request to finish
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"BCAT_SERVER_SHUTDOWN_TIMEOUT"`
	MaxUploadSize   int64         `yaml:"max_upload_size" envconfig:"BCAT_SERVER_MAX_UPLOAD_SIZE"` // In bytes
}

type MongoConfig struct {
	URI               string        `yaml:"uri" envconfig:"BCAT_MONGO_URI" json:"-"`
	Database          string        `yaml:"database" envconfig:"BCAT_MONGO_DATABASE"`
	BooksCollection   string        `yaml:"books_collection" envconfig:"BCAT_MONGO_BOOKS_COLLECTION"`
	ReviewsCollection string        `yaml:"reviews_collection" envconfig:"BCAT_MONGO_REVIEWS_COLLECTION"`
	UsersCollection   string        `yaml:"users_collection" envconfig:"BCAT_MONGO_USERS_COLLECTION"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout" envconfig:"BCAT_MONGO_CONNECT_TIMEOUT"`
}

type RedisConfig struct {
	Host          string        `yaml:"host" envconfig:"BCAT_REDIS_HOST"`
	Port          string        `yaml:"port" envconfig:"BCAT_REDIS_PORT"`
	DialTimeout   time.Duration `yaml:"dial_timeout" envconfig:"BCAT_REDIS_DIAL_TIMEOUT"`
	ReadTimeout   time.Duration `yaml:"read_timeout" envconfig:"BCAT_REDIS_READ_TIMEOUT"`
	WriteTimeout  time.Duration `yaml:"write_timeout" envconfig:"BCAT_REDIS_WRITE_TIMEOUT"`
	PoolSize      int           `yaml:"pool_size" envconfig:"BCAT_REDIS_POOL_SIZE"`
	PoolTimeout   time.Duration `yaml:"pool_timeout" envconfig:"BCAT_REDIS_POOL_TIMEOUT"`
	Username      string        `yaml:"username" envconfig:"BCAT_REDIS_USERNAME"`
	Password      string        `yaml:"password" envconfig:"BCAT_REDIS_PASSWORD" json:"-"`
	DatabaseIndex int           `yaml:"db_index" envconfig:"BCAT_REDIS_DATABASE_INDEX"`
}

type BoltDBConfig struct {
	FilePath   string        `yaml:"filepath" envconfig:"BCAT_BOLTDB_FILE_PATH"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"BCAT_BOLTDB_TIMEOUT"`
	BucketName string        `yaml:"bucket_name" envconfig:"BCAT_BOLTDB_BUCKET_NAME"`
}

// StorageConfig describes the S3 compatible object storage holding books covers.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint" envconfig:"BCAT_STORAGE_ENDPOINT"`
	AccessKey string `yaml:"access_key" envconfig:"BCAT_STORAGE_ACCESS_KEY" json:"-"`
	SecretKey string `yaml:"secret_key" envconfig:"BCAT_STORAGE_SECRET_KEY" json:"-"`
	Region    string `yaml:"region" envconfig:"BCAT_STORAGE_REGION"`
	Bucket    string `yaml:"bucket" envconfig:"BCAT_STORAGE_BUCKET"`
	UseSSL    bool   `yaml:"use_ssl" envconfig:"BCAT_STORAGE_USE_SSL"`
	PublicURL string `yaml:"public_url" envconfig:"BCAT_STORAGE_PUBLIC_URL"`
}

// LoadConfigFile provides an instance of config structure for the all application.
func LoadConfigFile(configFile string) (*Config, error) {
	file, err := os.Open(configFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	cfg := &Config{}
	yd := yaml.NewDecoder(file)
	err = yd.Decode(cfg)

	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigEnvs reads the environments variables and provides an instance of the App config.
func LoadConfigEnvs(prefix string, config *Config) error {
	return envconfig.Process(prefix, config)
}

// InitConfig setup defaults values for non provided parameters
// and configures build tags values to be used if provided.
func InitConfig(config *Config, gitCommit, gitTag, buildTime string) error {
	if len(gitCommit) != 0 {
		config.GitCommit = gitCommit
	}

	if len(gitTag) != 0 {
		config.GitTag = gitTag
	}

	if len(buildTime) != 0 {
		config.BuildTime = buildTime
	}

	if len(config.Server.Host) == 0 || len(config.Server.Port) == 0 {
		return errors.New("make sure to set valid server address and port in configuration file")
	}

	if len(config.Mongo.URI) == 0 || len(config.Mongo.Database) == 0 {
		return errors.New("make sure to set valid mongo uri and database in configuration file")
	}

	if len(config.Redis.Host) == 0 || len(config.Redis.Port) == 0 {
		return errors.New("make sure to set valid redis address and port in configuration file")
	}

	if len(config.Storage.Endpoint) == 0 || len(config.Storage.Bucket) == 0 {
		return errors.New("make sure to set valid storage endpoint and bucket in configuration file")
	}

	if len(config.Mongo.BooksCollection) == 0 {
		config.Mongo.BooksCollection = "books"
	}

	if len(config.Mongo.ReviewsCollection) == 0 {
		config.Mongo.ReviewsCollection = "reviews"
	}

	if len(config.Mongo.UsersCollection) == 0 {
		config.Mongo.UsersCollection = "users"
	}

	if config.Server.MaxUploadSize <= 0 {
		config.Server.MaxUploadSize = 10 << 20
	}

	if config.Mongo.ConnectTimeout <= 0 {
		config.Mongo.ConnectTimeout = 10 * time.Second
	}

	if config.Server.RequestTimeout <= 0 {
		config.Server.RequestTimeout = 30 * time.Second
	}

	if config.Server.ShutdownTimeout <= 0 {
		config.Server.ShutdownTimeout = 30 * time.Second
	}

	if config.LogMaxSize <= 0 {
		config.LogMaxSize = 10
	}

	return nil
}

// LoadAndInitConfigs loads in order the configs from various predefined sources
// then build the App configuration data.
func LoadAndInitConfigs(gitCommit, gitTag, buildTime string) (*Config, error) {
	// Setup the yaml configuration from file.
	config, err := LoadConfigFile("./config.yml")
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from file: %s", err)
	}

	// Set the environment configuration. The file is optional.
	err = godotenv.Load("./config.env")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return config, fmt.Errorf("failed to set environment configurations: %s", err)
	}

	// Use environment variables with prefix `BCAT`.
	err = LoadConfigEnvs("BCAT", config)
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from environment: %s", err)
	}

	err = InitConfig(config, gitCommit, gitTag, buildTime)
	if err != nil {
		return config, fmt.Errorf("failed to initialize configurations: %s", err)
	}
	return config, nil
}
