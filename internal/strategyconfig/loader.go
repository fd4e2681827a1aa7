package strategyconfig

import (
	"bytes"
	"errors"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/topk"
)

// Format is the config file encoding
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf picks the format from a file extension
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unsupported config extension: %s", path)
}

// Load reads a YAML or TOML file and returns the validated config with raw bytes
func Load(path string) (*EngineConfig, []byte, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := Parse(data, format)
	if err != nil {
		return nil, data, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, data, nil
}

// Parse decodes and validates config bytes.
// SSOT 핵심: 알 수 없는 필드는 즉시 실패
func Parse(data []byte, format Format) (*EngineConfig, error) {
	cfg := &EngineConfig{TopK: topk.Of(DefaultTopK)}
	// 기본값 먼저, 파일 값이 덮어씀 (명시적 0 유지)
	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}

	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, wrapDecodeError(err)
		}
	case FormatTOML:
		md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg)
		if err != nil {
			return nil, wrapDecodeError(err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, contracts.NewConfigError(undecoded[0].String(), "", "unknown field")
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", format)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *EngineConfig) error {
	if err := defaults.Set(cfg); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	return nil
}

// wrapDecodeError keeps typed config errors raised by UnmarshalText
func wrapDecodeError(err error) error {
	var cfgErr *contracts.InvalidConfigurationError
	if errors.As(err, &cfgErr) {
		return cfgErr
	}
	return fmt.Errorf("decode config: %w", err)
}

// Hash generates SHA256 hash from the config (canonical JSON)
// 주의: map 대신 struct 사용으로 해시 재현성 보장
func Hash(cfg *EngineConfig) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// NewRunSnapshot creates a snapshot recorded with every signal run
func NewRunSnapshot(cfg *EngineConfig, raw []byte) (*RunSnapshot, error) {
	hash, err := Hash(cfg)
	if err != nil {
		return nil, err
	}

	return &RunSnapshot{
		ConfigHash: hash,
		ConfigRaw:  string(raw),
		StrategyID: cfg.Meta.StrategyID,
		Mode:       cfg.Mode,
		CreatedAt:  time.Now(),
	}, nil
}
