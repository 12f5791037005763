package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	adapterwebsocket "robohost/server/adapter/websocket"
	"robohost/server/domain"
	"robohost/server/engine"
	"robohost/server/events"
	"robohost/server/proxy"
	"robohost/server/robots"
	"robohost/utils"
)

//go:embed config.schema.json
var schemaJSON []byte

var ErrUnsupportedFormat = errors.New("config: unsupported file format")

type Config struct {
	LogLevel  string        `yaml:"log_level" toml:"log_level" json:"log_level"`
	EngineURL string        `yaml:"engine_url" toml:"engine_url" json:"engine_url"`
	RecordDir string        `yaml:"record_dir" toml:"record_dir" json:"record_dir"`
	ResultsDB string        `yaml:"results_db" toml:"results_db" json:"results_db"`
	Seed      uint64        `yaml:"seed" toml:"seed" json:"seed"`
	Server    ServerConfig  `yaml:"server" toml:"server" json:"server"`
	Arena     ArenaConfig   `yaml:"arena" toml:"arena" json:"arena"`
	Proxy     ProxyConfig   `yaml:"proxy" toml:"proxy" json:"proxy"`
	Robots    []robots.Spec `yaml:"robots" toml:"robots" json:"robots"`
}

type ServerConfig struct {
	Addr           string `yaml:"addr" toml:"addr" json:"addr"`
	Port           string `yaml:"port" toml:"port" json:"port"`
	PingIntervalMS int64  `yaml:"ping_interval_ms" toml:"ping_interval_ms" json:"ping_interval_ms"`
	IdleTimeoutMS  int64  `yaml:"idle_timeout_ms" toml:"idle_timeout_ms" json:"idle_timeout_ms"`
	ReadLimit      int64  `yaml:"read_limit" toml:"read_limit" json:"read_limit"`
}

type ArenaConfig struct {
	Width          int32   `yaml:"width" toml:"width" json:"width"`
	Height         int32   `yaml:"height" toml:"height" json:"height"`
	Rounds         int32   `yaml:"rounds" toml:"rounds" json:"rounds"`
	MaxTurns       int64   `yaml:"max_turns" toml:"max_turns" json:"max_turns"`
	Seats          int     `yaml:"seats" toml:"seats" json:"seats"`
	PaintEnabled   bool    `yaml:"paint_enabled" toml:"paint_enabled" json:"paint_enabled"`
	GunCoolingRate float64 `yaml:"gun_cooling_rate" toml:"gun_cooling_rate" json:"gun_cooling_rate"`
	InactivityTime int64   `yaml:"inactivity_time" toml:"inactivity_time" json:"inactivity_time"`
	ByteOrder      string  `yaml:"byte_order" toml:"byte_order" json:"byte_order"`
}

type ProxyConfig struct {
	MaxCalls        int64 `yaml:"max_calls" toml:"max_calls" json:"max_calls"`
	BufferSize      int   `yaml:"buffer_size" toml:"buffer_size" json:"buffer_size"`
	GraphicsMaxSize int   `yaml:"graphics_max_size" toml:"graphics_max_size" json:"graphics_max_size"`
	MaxEventStack   int64 `yaml:"max_event_stack" toml:"max_event_stack" json:"max_event_stack"`
}

// Default は設定ファイルがないときの値
func Default() Config {
	ac := engine.DefaultConfig()
	po := proxy.DefaultOptions()
	eo := adapterwebsocket.DefaultEndpointOptions()
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			Addr:           "localhost",
			Port:           "9090",
			PingIntervalMS: eo.PingInterval.Milliseconds(),
			IdleTimeoutMS:  eo.IdleTimeout.Milliseconds(),
			ReadLimit:      adapterwebsocket.DefaultReadLimit,
		},
		Arena: ArenaConfig{
			Width:          ac.Width,
			Height:         ac.Height,
			Rounds:         ac.Rounds,
			MaxTurns:       ac.MaxTurns,
			Seats:          ac.Seats,
			GunCoolingRate: ac.GunCoolingRate,
			InactivityTime: ac.InactivityTime,
			ByteOrder:      ac.ByteOrder.String(),
		},
		Proxy: ProxyConfig{
			MaxCalls:        po.MaxCalls,
			BufferSize:      po.BufferSize,
			GraphicsMaxSize: po.Graphics.MaxSize,
			MaxEventStack:   events.DefaultMaxEventStack,
		},
		Robots: []robots.Spec{
			{Kind: "rulebot", Name: "rule"},
			{Kind: "spinner", Name: "spinner"},
		},
	}
}

// Load はpathを読み、スキーマで検証してから環境変数で上書きする。
// pathが空ならROBOHOST_CONFIGを見て、それも空ならDefaultを使う
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		path = os.Getenv("ROBOHOST_CONFIG")
	}
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := Decode(b, filepath.Ext(path), &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	cfg.applyEnv()
	if _, err := cfg.ByteOrder(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Decode はextで形式を選び、スキーマ検証のあとcfgへ上書きする
func Decode(b []byte, ext string, cfg *Config) error {
	var (
		doc    any
		decode func(v any) error
	)
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &doc); err != nil {
			return err
		}
		decode = func(v any) error {
			d := yaml.NewDecoder(bytes.NewReader(b))
			d.KnownFields(true)
			return d.Decode(v)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &doc); err != nil {
			return err
		}
		decode = func(v any) error {
			return toml.NewDecoder(bytes.NewReader(b)).DisallowUnknownFields().Decode(v)
		}
	case ".json":
		if err := json.Unmarshal(b, &doc); err != nil {
			return err
		}
		decode = func(v any) error {
			d := json.NewDecoder(bytes.NewReader(b))
			d.DisallowUnknownFields()
			return d.Decode(v)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if doc == nil {
		// 空のファイル
		return nil
	}
	if err := validate(doc); err != nil {
		return err
	}
	return decode(cfg)
}

func validate(doc any) error {
	// yamlとtomlの値をJSONの型にそろえる
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalize config: %w", err)
	}
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	var v any
	if err := d.Decode(&v); err != nil {
		return fmt.Errorf("normalize config: %w", err)
	}
	schema, err := compileSchema()
	if err != nil {
		return err
	}
	return schema.Validate(v)
}

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("config.schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile("config.schema.json")
}

func (c *Config) applyEnv() {
	c.Server.Addr = utils.GetEnvDefault("ADDR", c.Server.Addr)
	c.Server.Port = utils.GetEnvDefault("PORT", c.Server.Port)
	c.LogLevel = utils.GetEnvDefault("LOG_LEVEL", c.LogLevel)
	c.RecordDir = utils.GetEnvDefault("RECORD_DIR", c.RecordDir)
	c.ResultsDB = utils.GetEnvDefault("RESULTS_DB", c.ResultsDB)
	c.EngineURL = utils.GetEnvDefault("ENGINE_URL", c.EngineURL)
	c.Arena.Seats = utils.GetEnvInt("SEATS", c.Arena.Seats)
	c.Arena.Rounds = int32(utils.GetEnvInt("ROUNDS", int(c.Arena.Rounds)))
	c.Arena.PaintEnabled = utils.GetEnvBool("PAINT_ENABLED", c.Arena.PaintEnabled)
	c.Server.PingIntervalMS = utils.GetEnvDuration("PING_INTERVAL", c.PingInterval()).Milliseconds()
}

func (c Config) ListenAddr() string { return c.Server.Addr + ":" + c.Server.Port }

func (c Config) PingInterval() time.Duration {
	return time.Duration(c.Server.PingIntervalMS) * time.Millisecond
}

func (c Config) ByteOrder() (domain.ByteOrderFlag, error) {
	return domain.ParseByteOrderFlag(c.Arena.ByteOrder)
}

// Level はLogLevelをslogのレベルに変換する。不明な値はInfo
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// EngineConfig はアリーナの設定を組み立てる
func (c Config) EngineConfig(logger *slog.Logger) engine.Config {
	order, _ := c.ByteOrder()
	ec := engine.DefaultConfig()
	ec.Width = c.Arena.Width
	ec.Height = c.Arena.Height
	ec.Rounds = c.Arena.Rounds
	ec.MaxTurns = c.Arena.MaxTurns
	ec.Seats = c.Arena.Seats
	ec.PaintEnabled = c.Arena.PaintEnabled
	ec.GunCoolingRate = c.Arena.GunCoolingRate
	ec.InactivityTime = c.Arena.InactivityTime
	ec.Seed = c.Seed
	ec.ByteOrder = order
	ec.Logger = logger
	return ec
}

// ProxyOptions はロボット1体分のプロキシ設定を組み立てる
func (c Config) ProxyOptions(logger *slog.Logger) proxy.Options {
	order, _ := c.ByteOrder()
	po := proxy.DefaultOptions()
	po.MaxCalls = c.Proxy.MaxCalls
	po.BufferSize = c.Proxy.BufferSize
	po.ByteOrder = order
	if c.Proxy.GraphicsMaxSize > 0 {
		po.Graphics.MaxSize = c.Proxy.GraphicsMaxSize
	}
	po.Events.MaxEventStack = c.Proxy.MaxEventStack
	po.Logger = logger
	return po
}

func (c Config) EndpointOptions(logger *slog.Logger) adapterwebsocket.EndpointOptions {
	eo := adapterwebsocket.DefaultEndpointOptions()
	eo.PingInterval = c.PingInterval()
	eo.IdleTimeout = time.Duration(c.Server.IdleTimeoutMS) * time.Millisecond
	eo.Logger = logger
	return eo
}
