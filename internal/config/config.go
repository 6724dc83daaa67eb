// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// GenerationConfig 内容生成管线的可调参数
type GenerationConfig struct {
	MaxRetries          int     `json:"max_retries"`           // 单个内容类型的最大重试次数
	RetryDelaySeconds   float64 `json:"retry_delay_seconds"`   // 重试前的等待时间
	QualityThreshold    float64 `json:"quality_threshold"`     // 综合评分的软质量门槛
	InputSoftFloor      float64 `json:"input_soft_floor"`      // 输入质量软下限（仅告警）
	InputHardFloor      float64 `json:"input_hard_floor"`      // 输入质量硬下限（直接失败）
	ParallelWorkers     int     `json:"parallel_workers"`      // 派生内容并发工作协程数
	SequentialMode      bool    `json:"sequential_mode"`       // 顺序模式：逐个生成派生内容
	CacheSchemaVersion  string  `json:"cache_schema_version"`  // 缓存结构版本，升级后旧条目自然失效
	CacheStorageFloor   float64 `json:"cache_storage_floor"`   // 低于此分数的结果不写入缓存
	CacheRetrievalFloor float64 `json:"cache_retrieval_floor"` // 低于此分数的缓存条目不返回
	StrictQualityGate   bool    `json:"strict_quality_gate"`   // true时低于门槛的结果按失败处理
	CacheBackend        string  `json:"cache_backend"`         // memory / file / redis
	RedisAddr           string  `json:"redis_addr"`
}

// AppConfig 包含应用程序的所有配置
type AppConfig struct {
	// 基础配置
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	LogDir    string `json:"log_dir"`
	DebugMode bool   `json:"debug_mode"`

	// LLM相关配置
	LLMProvider string            `json:"llm_provider"`
	LLMConfig   map[string]string `json:"llm_config"`

	// 生成管线配置
	Generation GenerationConfig `json:"generation"`
}

// Config 存储从环境变量读取的基础配置
type Config struct {
	Port      string
	APIKey    string
	DataDir   string
	LogDir    string
	DebugMode bool
}

// DefaultGenerationConfig 返回生成管线的默认参数
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MaxRetries:          2,
		RetryDelaySeconds:   1.0,
		QualityThreshold:    0.7,
		InputSoftFloor:      0.5,
		InputHardFloor:      0.2,
		ParallelWorkers:     4,
		SequentialMode:      false,
		CacheSchemaVersion:  "v1",
		CacheStorageFloor:   0.6,
		CacheRetrievalFloor: 0.6,
		StrictQualityGate:   false,
		CacheBackend:        "memory",
		RedisAddr:           "localhost:6379",
	}
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	config := &Config{
		Port:      getEnv("PORT", "8080"),
		APIKey:    getEnv("LLM_API_KEY", ""),
		DataDir:   getEnvPath("DATA_DIR", "data"),
		LogDir:    getEnvPath("LOG_DIR", "logs"),
		DebugMode: getEnvBool("DEBUG_MODE", true),
	}

	if config.APIKey == "" {
		// 只记录警告，不返回错误
		log.Println("警告: 未设置LLM API密钥，需要在设置接口中配置后才能生成内容")
	}

	return config, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		err = os.MkdirAll(path, 0755)
		if err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// getEnvFloat 获取浮点类型环境变量
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return defaultValue
}

// getEnvInt 获取整型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return defaultValue
}

// generationFromEnv 用环境变量覆盖生成管线默认参数
func generationFromEnv(gen GenerationConfig) GenerationConfig {
	gen.MaxRetries = getEnvInt("GEN_MAX_RETRIES", gen.MaxRetries)
	gen.RetryDelaySeconds = getEnvFloat("GEN_RETRY_DELAY", gen.RetryDelaySeconds)
	gen.QualityThreshold = getEnvFloat("GEN_QUALITY_THRESHOLD", gen.QualityThreshold)
	gen.ParallelWorkers = getEnvInt("GEN_PARALLEL_WORKERS", gen.ParallelWorkers)
	gen.SequentialMode = getEnvBool("GEN_SEQUENTIAL_MODE", gen.SequentialMode)
	gen.CacheSchemaVersion = getEnv("GEN_CACHE_SCHEMA_VERSION", gen.CacheSchemaVersion)
	gen.StrictQualityGate = getEnvBool("GEN_STRICT_QUALITY_GATE", gen.StrictQualityGate)
	gen.CacheBackend = getEnv("GEN_CACHE_BACKEND", gen.CacheBackend)
	gen.RedisAddr = getEnv("REDIS_ADDR", gen.RedisAddr)
	return gen
}

// InitConfig 初始化配置管理器
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	// 加载基础配置
	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = &AppConfig{
		Port:        baseConfig.Port,
		DataDir:     baseConfig.DataDir,
		LogDir:      baseConfig.LogDir,
		DebugMode:   baseConfig.DebugMode,
		LLMProvider: getEnv("LLM_PROVIDER", "openai"),
		LLMConfig: map[string]string{
			"api_key":       baseConfig.APIKey,
			"default_model": getEnv("LLM_DEFAULT_MODEL", "gpt-4o-mini"),
		},
		Generation: generationFromEnv(DefaultGenerationConfig()),
	}

	// 尝试从文件加载已保存的配置
	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		data, err := os.ReadFile(configFile)
		if err == nil {
			var savedConfig AppConfig
			if json.Unmarshal(data, &savedConfig) == nil {
				// 合并配置：保留文件中的LLM与生成设置，但使用最新的基础配置
				savedConfig.Port = baseConfig.Port
				savedConfig.DataDir = baseConfig.DataDir
				savedConfig.LogDir = baseConfig.LogDir
				savedConfig.DebugMode = baseConfig.DebugMode

				// 如果文件中没有API密钥，使用环境变量的密钥
				if savedConfig.LLMConfig != nil && savedConfig.LLMConfig["api_key"] == "" {
					savedConfig.LLMConfig["api_key"] = baseConfig.APIKey
				}

				// 文件中缺少生成配置时回退到默认值
				if savedConfig.Generation.CacheSchemaVersion == "" {
					savedConfig.Generation = generationFromEnv(DefaultGenerationConfig())
				}

				currentConfig = &savedConfig
			}
		}
	}

	// 保存初始配置到文件
	return saveConfigLocked()
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		// 紧急情况，返回一个基本配置
		baseConfig, _ := Load()
		return &AppConfig{
			Port:        baseConfig.Port,
			DataDir:     baseConfig.DataDir,
			LogDir:      baseConfig.LogDir,
			DebugMode:   baseConfig.DebugMode,
			LLMProvider: "openai",
			LLMConfig: map[string]string{
				"api_key": baseConfig.APIKey,
			},
			Generation: DefaultGenerationConfig(),
		}
	}

	// 返回配置的副本
	configCopy := *currentConfig
	return &configCopy
}

// UpdateLLMConfig 更新LLM配置
func UpdateLLMConfig(provider string, config map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	currentConfig.LLMProvider = provider
	currentConfig.LLMConfig = config

	return saveConfigLocked()
}

// UpdateGenerationConfig 更新生成管线配置
func UpdateGenerationConfig(gen GenerationConfig) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	currentConfig.Generation = gen
	return saveConfigLocked()
}

// SaveConfig 保存当前配置到文件
func SaveConfig() error {
	configMutex.Lock()
	defer configMutex.Unlock()
	return saveConfigLocked()
}

func saveConfigLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("没有配置可保存")
	}

	// 确保目录存在
	dir := filepath.Dir(configFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建配置目录失败: %w", err)
		}
	}

	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}
