package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ConfigFileName is the file Load looks for when given a directory.
const ConfigFileName = "config.yaml"

// Load reads configuration from path, which may be a file or a directory
// holding config.yaml. Values missing from the file keep their defaults.
// When the directory has a .checksums manifest the file is verified
// against it before parsing.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", path, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, ConfigFileName)
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but %s not found: %s", ConfigFileName, absPath)
		}
	}

	if err := verifyConfigHash(absPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", absPath, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// verifyConfigHash checks path against the .checksums manifest next to it.
// A directory without a manifest is not verified.
func verifyConfigHash(path string) error {
	dir := filepath.Dir(path)
	checksums, err := LoadChecksums(dir)
	if err != nil {
		if errors.Is(err, ErrNoChecksums) {
			return nil
		}
		return err
	}

	basename := filepath.Base(path)
	expectedHash, ok := checksums.Hashes[basename]
	if !ok {
		return fmt.Errorf("config file %s has no hash in checksums at %s\n"+
			"Run: capinvoke config hash-update --config %s", basename, dir, dir)
	}
	if err := VerifyFileHash(path, expectedHash); err != nil {
		return fmt.Errorf("config verification failed for %s: %w\n"+
			"If you edited this file intentionally, run: capinvoke config hash-update --config %s", path, err, dir)
	}
	return nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Unset variables are left in place so validation can report them.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// Validate reports every problem with cfg at once.
func Validate(cfg *Config) error {
	var errs []error

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		errs = append(errs, fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel))
	}
	if cfg.Service.Name == "" {
		errs = append(errs, fmt.Errorf("service.name is required"))
	}

	if cfg.Kernel.Cores < 1 {
		errs = append(errs, fmt.Errorf("kernel.cores must be at least 1 (got %d)", cfg.Kernel.Cores))
	}
	if cfg.Kernel.MaxIRQ > MaxIRQLimit {
		errs = append(errs, fmt.Errorf("kernel.max_irq must be at most %d (got %d)", MaxIRQLimit, cfg.Kernel.MaxIRQ))
	}

	for _, field := range []struct{ key, value string }{
		{"trace.path", cfg.Trace.Path},
		{"api.listen", cfg.API.Listen},
	} {
		if m := envVarPattern.FindStringSubmatch(field.value); m != nil {
			errs = append(errs, fmt.Errorf("%s: environment variable ${%s} is not set", field.key, m[1]))
		}
	}
	if cfg.API.Listen == "" {
		errs = append(errs, fmt.Errorf("api.listen is required"))
	}

	return errors.Join(errs...)
}
