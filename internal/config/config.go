// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"hierarchy-go/internal/model"
	"hierarchy-go/pkg/hierarchy"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Hierarchy     HierarchyConfig     `mapstructure:"hierarchy"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers     string `mapstructure:"brokers"`
	Topic       string `mapstructure:"topic"`
	GroupID     string `mapstructure:"group_id"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint          string `mapstructure:"endpoint"`
	AccessKeyID       string `mapstructure:"access_key_id"`
	SecretAccessKey   string `mapstructure:"secret_access_key"`
	UseSSL            bool   `mapstructure:"use_ssl"`
	BucketName        string `mapstructure:"bucket_name"`
	PresignExpireMins int    `mapstructure:"presign_expire_minutes"`
}

// HierarchyConfig 存储层级实体与排序键相关的配置。
type HierarchyConfig struct {
	ChunkSize       int      `mapstructure:"chunk_size"`
	Fill            string   `mapstructure:"fill"`
	Delimiter       string   `mapstructure:"delimiter"`
	BaseFields      []string `mapstructure:"base_fields"`
	MaxDepth        int      `mapstructure:"max_depth"`
	CacheTTLSeconds int      `mapstructure:"cache_ttl_seconds"`
}

// KeyConfig 转换为 hierarchy 包使用的排序键配置。
func (c HierarchyConfig) KeyConfig() hierarchy.KeyConfig {
	return hierarchy.KeyConfig{
		BaseFields: c.BaseFields,
		ChunkSize:  c.ChunkSize,
		Fill:       c.Fill,
		Delimiter:  c.Delimiter,
	}
}

// DefaultMaxDepth 是默认的最大层级深度，默认排序键配置下最深的键仍能放进 sort_key 列。
const DefaultMaxDepth = 48

// Validate 检查排序键配置，并确认 MaxDepth 层的完整排序键不超过 sort_key 列宽。
func (c HierarchyConfig) Validate() error {
	kc := c.KeyConfig()
	if err := kc.Validate(); err != nil {
		return err
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("%w: max depth %d", hierarchy.ErrInvalidConfig, c.MaxDepth)
	}
	if n := kc.KeyLength(c.MaxDepth); n > model.SortKeyMaxLength {
		return fmt.Errorf("%w: sort key at depth %d needs %d characters, column holds %d",
			hierarchy.ErrInvalidConfig, c.MaxDepth, n, model.SortKeyMaxLength)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8081")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("kafka.topic", "entity-rekey")
	v.SetDefault("kafka.group_id", "hierarchy-go-consumer")
	v.SetDefault("kafka.max_attempts", 3)
	v.SetDefault("elasticsearch.index_name", "entities")
	v.SetDefault("minio.bucket_name", "hierarchy-exports")
	v.SetDefault("minio.presign_expire_minutes", 60)
	v.SetDefault("hierarchy.chunk_size", 12)
	v.SetDefault("hierarchy.fill", "!")
	v.SetDefault("hierarchy.delimiter", "/")
	v.SetDefault("hierarchy.base_fields", []string{"weight", "label"})
	v.SetDefault("hierarchy.max_depth", DefaultMaxDepth)
	v.SetDefault("hierarchy.cache_ttl_seconds", 300)
}

// Load 从指定的 YAML 文件读取配置。环境变量 HIERARCHY_<SECTION>_<KEY> 会覆盖文件中的值。
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("HIERARCHY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Hierarchy.Validate(); err != nil {
		return cfg, fmt.Errorf("hierarchy 配置无效: %w", err)
	}
	return cfg, nil
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
