package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config 结构体定义了应用程序的配置结构
type Config struct {
	Server struct {
		Addr         string   `json:"addr" validate:"required"`  // 监听地址
		ReadTimeout  Duration `json:"read_timeout"`              // 读超时
		WriteTimeout Duration `json:"write_timeout"`             // 写超时
		Title        string   `json:"title" validate:"required"` // 页面标题
	} `json:"server"`

	Source struct {
		Kind           string   `json:"kind" validate:"oneof=sheet file"` // 数据源类型: sheet 远程表格, file 本地文件
		BaseURL        string   `json:"base_url"`                         // 表格服务地址
		SheetID        string   `json:"sheet_id"`                         // 表格ID
		CaseView       string   `json:"case_view" validate:"required"`    // 病例数据视图
		EnrollView     string   `json:"enroll_view" validate:"required"`  // 入学数据视图
		DataDir        string   `json:"data_dir"`                         // 本地数据目录
		Timeout        Duration `json:"timeout"`                          // 单次请求超时
		ReloadInterval Duration `json:"reload_interval"`                  // 定时重新加载间隔, 0 表示不重新加载
		Watch          bool     `json:"watch"`                            // 本地文件变化时重新加载
	} `json:"source"`

	ExportDir  string `json:"export_dir"`                       // 快照导出目录
	LogName    string `json:"log_name" validate:"required"`     // 日志文件
	LogMaxSize string `json:"log_max_size" validate:"required"` // 日志轮转大小, 如 "10 * 1024 * 1024"
}

// DataConfig 数据相关配置: 学校列表与列名映射
type DataConfig struct {
	Schools       []string          `json:"schools"`
	CaseColumns   map[string]string `json:"case_columns"`   // 规范列名 -> 表头
	EnrollColumns map[string]string `json:"enroll_columns"` // 规范列名 -> 表头
}

// DefaultSchools 学区内的19所学校, 下拉选择与当前周视图都以此为准
var DefaultSchools = []string{
	"John Cary Early Childhood Center", "Beasley Elementary School",
	"Bierbaum Elementary School", "Blades Elementary School",
	"Forder Elementary School", "Hagemann Elementary School",
	"MOSAIC Elementary School", "Oakville Elementary School",
	"Point Elementary School", "Rogers Elementary School",
	"Trautwein Elementary School", "Wohlwend Elementary School",
	"Bernard Middle School", "Buerkle Middle School", "Oakville Middle School",
	"Washington Middle School", "Mehlville High School",
	"Oakville High School", "SCOPE (Alternative School)",
}

const DefaultBaseURL = "https://docs.google.com/spreadsheets/d"

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	mu                 sync.RWMutex
)

func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	var err error
	once.Do(func() {
		instance, dataConfigInstance, err = loadConfigs(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, err
}

func loadConfigs(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	// .env 与环境变量覆盖文件配置
	loadEnv(filepath.Join(jsonFolder, ".env"))
	ApplyEnv(cfg)
	cfg.applyDefaults()
	dcfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, dcfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	var dcfg DataConfig
	if err := json.Unmarshal(data, &dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg    *Config
		dcfg   *DataConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// loadEnv 加载 .env 文件, 文件不存在时直接使用系统环境变量
func loadEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// ApplyEnv 使用环境变量覆盖配置
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("MSD_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("MSD_SHEET_ID"); v != "" {
		cfg.Source.SheetID = v
	}
	if v := os.Getenv("MSD_SOURCE_KIND"); v != "" {
		cfg.Source.Kind = strings.ToLower(v)
	}
	if v := os.Getenv("MSD_DATA_DIR"); v != "" {
		cfg.Source.DataDir = v
	}
	if v := os.Getenv("MSD_LOG_NAME"); v != "" {
		cfg.LogName = v
	}
}

func (c *Config) applyDefaults() {
	if c.Source.Kind == "" {
		c.Source.Kind = "sheet"
	}
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = DefaultBaseURL
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = Duration(30 * time.Second)
	}
	if c.Server.Title == "" {
		c.Server.Title = "Mehlville School District COVID-19 Dashboard"
	}
	if c.LogMaxSize == "" {
		c.LogMaxSize = "10 * 1024 * 1024"
	}
	if c.ExportDir == "" {
		c.ExportDir = "./export"
	}
}

// Validate 校验配置, 远程模式需要表格ID, 本地模式需要数据目录
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	switch c.Source.Kind {
	case "sheet":
		if c.Source.SheetID == "" {
			return fmt.Errorf("配置校验失败: source.sheet_id 不能为空")
		}
	case "file":
		if c.Source.DataDir == "" {
			return fmt.Errorf("配置校验失败: source.data_dir 不能为空")
		}
	}
	return nil
}

func (dc *DataConfig) applyDefaults() {
	if len(dc.Schools) == 0 {
		dc.Schools = append([]string(nil), DefaultSchools...)
	}
	if dc.CaseColumns == nil {
		dc.CaseColumns = map[string]string{}
	}
	if dc.EnrollColumns == nil {
		dc.EnrollColumns = map[string]string{}
	}
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
// 用于从JSON字符串解析Duration
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
// 用于将Duration序列化为JSON字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// GetCaseColumn 返回规范列名在病例表中的表头, 未配置时即为规范列名本身
func (dc *DataConfig) GetCaseColumn(colName string) string {
	mu.RLock()
	defer mu.RUnlock()
	if v, ok := dc.CaseColumns[colName]; ok && v != "" {
		return v
	}
	return colName
}

// GetEnrollColumn 返回规范列名在入学表中的表头
func (dc *DataConfig) GetEnrollColumn(colName string) string {
	mu.RLock()
	defer mu.RUnlock()
	if v, ok := dc.EnrollColumns[colName]; ok && v != "" {
		return v
	}
	return colName
}

// SchoolList 返回学校列表的副本
func (dc *DataConfig) SchoolList() []string {
	mu.RLock()
	defer mu.RUnlock()
	return append([]string(nil), dc.Schools...)
}
