// Package config loads installer settings from built-in defaults, an optional
// .nodelink.toml in the project directory and NODELINK_* environment variables,
// in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/git-pkgs/nodelink/client"
	"github.com/git-pkgs/nodelink/internal/core"
)

const (
	// FileName is the per-project configuration file.
	FileName = ".nodelink.toml"

	// EnvPrefix prefixes every environment override, e.g. NODELINK_STORE_DIR.
	EnvPrefix = "NODELINK_"
)

// Config is the resolved configuration of one project install.
// Directories are absolute once Load returns.
type Config struct {
	Registry            string            `koanf:"registry"`
	StoreDir            string            `koanf:"store_dir"`
	VirtualStoreDir     string            `koanf:"virtual_store_dir"`
	ModulesDir          string            `koanf:"modules_dir"`
	PackageImportMethod core.ImportMethod `koanf:"package_import_method"`
	Concurrency         int               `koanf:"concurrency"`
	Verbosity           int               `koanf:"verbosity"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"registry":              client.DefaultRegistry,
		"store_dir":             defaultStoreDir(),
		"virtual_store_dir":     filepath.Join("node_modules", ".pnpm"),
		"modules_dir":           "node_modules",
		"package_import_method": string(core.ImportAuto),
		"concurrency":           0,
		"verbosity":             0,
	}
}

func defaultStoreDir() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "nodelink", "store")
	}
	return filepath.Join("~", ".local", "share", "nodelink", "store")
}

// Load reads the configuration for the project rooted at projectDir.
func Load(projectDir string) (*Config, error) {
	projectDir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolving project dir: %w", err)
	}

	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Project config if it exists
	path := filepath.Join(projectDir, FileName)
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	// 3. Environment
	err = k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				importMethodHookFunc(),
				mapstructure.StringToBasicTypeHookFunc(),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.resolveDirs(projectDir); err != nil {
		return nil, err
	}
	if cfg.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency must not be negative: %d", cfg.Concurrency)
	}
	cfg.Registry = client.NormalizeRegistry(cfg.Registry)
	return &cfg, nil
}

// importMethodHookFunc rejects unknown import method names while decoding.
func importMethodHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(core.ImportAuto) {
			return data, nil
		}
		return core.ParseImportMethod(reflect.ValueOf(data).String())
	}
}

func (c *Config) resolveDirs(projectDir string) error {
	for _, dir := range []*string{&c.StoreDir, &c.VirtualStoreDir, &c.ModulesDir} {
		resolved, err := resolveDir(projectDir, *dir)
		if err != nil {
			return err
		}
		*dir = resolved
	}
	return nil
}

func resolveDir(projectDir, dir string) (string, error) {
	if dir == "~" || strings.HasPrefix(dir, "~/") || strings.HasPrefix(dir, "~"+string(filepath.Separator)) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding %s: %w", dir, err)
		}
		dir = filepath.Join(home, dir[1:])
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(projectDir, dir)
	}
	return filepath.Clean(dir), nil
}
