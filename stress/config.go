package stress

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-yaml"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("stress: invalid config")

// Size is a byte count that unmarshals from either an integer or a human
// readable string such as "4 KiB" or "1MB".
type Size uint64

// UnmarshalYAML implements yaml.BytesUnmarshaler.
func (s *Size) UnmarshalYAML(b []byte) error {
	var raw any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case uint64:
		*s = Size(v)
		return nil
	case int64:
		if v < 0 {
			return fmt.Errorf("stress: negative size %d", v)
		}
		*s = Size(v)
		return nil
	case int:
		if v < 0 {
			return fmt.Errorf("stress: negative size %d", v)
		}
		*s = Size(v)
		return nil
	case string:
		return s.Set(v)
	default:
		return fmt.Errorf("stress: unsupported size %v", raw)
	}
}

// Set parses a human readable size; Size satisfies pflag.Value.
func (s *Size) Set(v string) error {
	n, err := humanize.ParseBytes(v)
	if err != nil {
		return fmt.Errorf("stress: parse size %q: %w", v, err)
	}

	*s = Size(n)
	return nil
}

func (s *Size) String() string {
	return humanize.IBytes(uint64(*s))
}

func (s *Size) Type() string {
	return "size"
}

// Config describes one producer/consumer run.
type Config struct {
	// Capacity is the capacity of the buffer under test.
	Capacity Size `yaml:"capacity"`

	// ChunkSize is the number of bytes the producer writes at once.
	ChunkSize Size `yaml:"chunk_size"`

	// ReadSize is the number of bytes the consumer waits for and reads at once.
	ReadSize Size `yaml:"read_size"`

	// Total is the number of bytes transferred before the run ends.
	Total Size `yaml:"total"`

	// Timeout bounds the whole run; zero means no limit.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// DefaultConfig returns the 32-byte writer / 64-byte reader setup.
func DefaultConfig() Config {
	return Config{
		Capacity:  256,
		ChunkSize: 32,
		ReadSize:  64,
		Total:     64 * 1024,
		Timeout:   10 * time.Second,
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("stress: read config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML on top of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("stress: parse config: %w", err)
	}

	return cfg, nil
}

// MinCapacity is the smallest capacity for which a producer writing chunk
// bytes at a time and a consumer reading read bytes at a time cannot stall.
//
// The held size is always a multiple of g = gcd(chunk, read). A stall needs
// size < read and capacity-size < chunk; the largest such size is read-g, so
// capacity must be at least chunk+read-g.
func MinCapacity(chunk, read Size) Size {
	if chunk == 0 || read == 0 {
		return max(chunk, read)
	}

	a, b := chunk, read
	for b != 0 {
		a, b = b, a%b
	}

	return chunk + read - a
}

// Validate rejects configs that could never complete.
func (c Config) Validate() error {
	switch {
	case c.Capacity == 0:
		return fmt.Errorf("%w: capacity must be positive", ErrInvalidConfig)
	case c.ChunkSize == 0 || c.ReadSize == 0:
		return fmt.Errorf("%w: chunk and read sizes must be positive", ErrInvalidConfig)
	case c.ChunkSize > c.Capacity:
		return fmt.Errorf("%w: chunk size %d exceeds capacity %d", ErrInvalidConfig, c.ChunkSize, c.Capacity)
	case c.ReadSize > c.Capacity:
		return fmt.Errorf("%w: read size %d exceeds capacity %d", ErrInvalidConfig, c.ReadSize, c.Capacity)
	case c.Capacity < MinCapacity(c.ChunkSize, c.ReadSize):
		return fmt.Errorf("%w: capacity %d below %d, producer and consumer can stall",
			ErrInvalidConfig, c.Capacity, MinCapacity(c.ChunkSize, c.ReadSize))
	case c.Total == 0:
		return fmt.Errorf("%w: total must be positive", ErrInvalidConfig)
	case c.Total%c.ChunkSize != 0 || c.Total%c.ReadSize != 0:
		return fmt.Errorf("%w: total %d must be a multiple of chunk size %d and read size %d",
			ErrInvalidConfig, c.Total, c.ChunkSize, c.ReadSize)
	case c.Timeout < 0:
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}

	return nil
}
