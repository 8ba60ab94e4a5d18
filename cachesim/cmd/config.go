package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/cachesim/mem/cache/addressing"
)

// Config is everything a run needs to know before it starts.
type Config struct {
	TotalBytes    int    `yaml:"size"`
	LineBytes     int    `yaml:"line_size"`
	Associativity int    `yaml:"associativity"`
	AddressWidth  int    `yaml:"address_width"`
	TraceFile     string `yaml:"trace_file"`
}

// Environment variables that override the config file.
const (
	EnvSize          = "CACHESIM_SIZE"
	EnvLineSize      = "CACHESIM_LINE_SIZE"
	EnvAssociativity = "CACHESIM_ASSOCIATIVITY"
	EnvAddressWidth  = "CACHESIM_ADDRESS_WIDTH"
	EnvTraceFile     = "CACHESIM_TRACE_FILE"
)

// DefaultConfig returns a 16 KiB, 4-way cache with 64-byte lines.
func DefaultConfig() Config {
	return Config{
		TotalBytes:    16 * 1024,
		LineBytes:     64,
		Associativity: 4,
		AddressWidth:  addressing.DefaultAddressWidth,
	}
}

// Geometry returns the cache parameters of the config.
func (c Config) Geometry() addressing.Config {
	return addressing.Config{
		TotalBytes:    c.TotalBytes,
		LineBytes:     c.LineBytes,
		Associativity: c.Associativity,
		AddressWidth:  c.AddressWidth,
	}
}

// LoadConfigFile overlays the fields present in a YAML file onto c. Unknown
// keys are rejected.
func LoadConfigFile(path string, c *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	err = decoder.Decode(c)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	return nil
}

// LoadEnv collects the CACHESIM_ variables from envFile and from the process
// environment. Non-empty process variables win, as with godotenv.Load. A
// missing envFile is not an error.
func LoadEnv(envFile string) (map[string]string, error) {
	env := map[string]string{}

	if envFile != "" {
		fileEnv, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}

		for k, v := range fileEnv {
			env[k] = v
		}
	}

	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(k, "CACHESIM_") && v != "" {
			env[k] = v
		}
	}

	return env, nil
}

// ApplyEnv overlays the recognized variables onto c.
func ApplyEnv(env map[string]string, c *Config) error {
	ints := []struct {
		key   string
		field *int
	}{
		{EnvSize, &c.TotalBytes},
		{EnvLineSize, &c.LineBytes},
		{EnvAssociativity, &c.Associativity},
		{EnvAddressWidth, &c.AddressWidth},
	}

	for _, i := range ints {
		v, ok := env[i.key]
		if !ok || v == "" {
			continue
		}

		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q is not an integer", i.key, v)
		}

		*i.field = n
	}

	if v, ok := env[EnvTraceFile]; ok && v != "" {
		c.TraceFile = v
	}

	return nil
}
