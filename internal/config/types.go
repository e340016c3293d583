package config

import "github.com/mattjoyce/capinvoke/internal/irq"

// Config represents the complete capinvoke configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Kernel  KernelConfig  `yaml:"kernel"`
	Trace   TraceConfig   `yaml:"trace"`
	API     APIConfig     `yaml:"api,omitempty"`
}

// ServiceConfig defines process-level settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
}

// KernelConfig sizes the simulated kernel.
type KernelConfig struct {
	// MaxIRQ is the highest interrupt line number; lines 0..MaxIRQ exist.
	MaxIRQ uint64 `yaml:"max_irq"`
	Cores  int    `yaml:"cores"`
}

// TraceConfig defines where scenario runs are recorded. An empty Path
// disables recording.
type TraceConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines the read-only trace API server settings.
type APIConfig struct {
	Listen string `yaml:"listen"`
}

// MaxIRQLimit bounds kernel.max_irq to what an IRQ table can hold.
const MaxIRQLimit = irq.MaxIRQLimit

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "capinvoke",
			LogLevel: "info",
		},
		Kernel: KernelConfig{
			MaxIRQ: 31,
			Cores:  1,
		},
		Trace: TraceConfig{
			Path: "",
		},
		API: APIConfig{
			Listen: "127.0.0.1:8080",
		},
	}
}
