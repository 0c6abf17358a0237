package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🔧 配置加载器
// =============================================================================
// 合并顺序: 默认值 → YAML 文件 → 环境变量 → 校验器
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("CALLFLOW").
//	    Load()
//
// 环境变量键为 PREFIX_SECTION_FIELD，例如 CALLFLOW_CALL_IDLE_TRIGGER=800ms。
// YAML 中的 ${VAR} 在解析前展开，用于引用密钥。
// =============================================================================

// LookupFunc 读取环境变量，返回值与是否存在
type LookupFunc func(key string) (string, bool)

// Loader 配置加载器
type Loader struct {
	path       string
	prefix     string
	lookup     LookupFunc
	strict     bool
	validators []func(*Config) error
}

// NewLoader 创建配置加载器，默认前缀 CALLFLOW
func NewLoader() *Loader {
	return &Loader{prefix: "CALLFLOW", lookup: os.LookupEnv}
}

// WithConfigPath 设置 YAML 文件路径，文件不存在时只使用默认值与环境变量
func (l *Loader) WithConfigPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.prefix = strings.TrimSuffix(prefix, "_")
	return l
}

// WithLookup 替换环境变量来源
func (l *Loader) WithLookup(fn LookupFunc) *Loader {
	if fn != nil {
		l.lookup = fn
	}
	return l
}

// Strict YAML 中出现未知字段时报错
func (l *Loader) Strict() *Loader {
	l.strict = true
	return l
}

// WithValidator 追加校验器，按添加顺序执行
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	if err := l.applyFile(cfg); err != nil {
		return nil, err
	}
	if err := applyEnv(reflect.ValueOf(cfg).Elem(), l.prefix, l.lookup); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

func (l *Loader) applyFile(cfg *Config) error {
	if l.path == "" {
		return nil
	}
	raw, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}

	expanded := os.Expand(string(raw), func(key string) string {
		v, _ := l.lookup(key)
		return v
	})
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(l.strict)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file %s: %w", l.path, err)
	}
	return nil
}

// applyEnv 递归覆盖带 env 标签的字段
func applyEnv(v reflect.Value, prefix string, lookup LookupFunc) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + "_" + tag
		field := v.Field(i)

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Time{}) {
			if err := applyEnv(field, key, lookup); err != nil {
				return err
			}
			continue
		}
		raw, ok := lookup(key)
		if !ok || raw == "" {
			continue
		}
		if err := parseInto(field.Addr().Interface(), raw); err != nil {
			return fmt.Errorf("%s=%q: %w", key, raw, err)
		}
	}
	return nil
}

// parseInto 按目标类型解析字符串
func parseInto(dst any, raw string) error {
	raw = strings.TrimSpace(raw)
	var err error
	switch p := dst.(type) {
	case *string:
		*p = raw
	case *time.Duration:
		*p, err = time.ParseDuration(raw)
	case *int:
		*p, err = strconv.Atoi(raw)
	case *bool:
		*p, err = strconv.ParseBool(raw)
	case *float64:
		*p, err = strconv.ParseFloat(raw, 64)
	case *[]string:
		*p = splitList(raw)
	case *map[string]string:
		*p, err = parsePairs(raw)
	default:
		err = fmt.Errorf("unsupported field type %T", dst)
	}
	return err
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parsePairs 解析 k1=v1,k2=v2
func parsePairs(raw string) (map[string]string, error) {
	out := make(map[string]string)
	for _, item := range splitList(raw) {
		k, v, ok := strings.Cut(item, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", item)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}
