package password

import (
	"fmt"
	"runtime"

	"github.com/caarlos0/env/v11"
)

// Params controls Argon2id cost. MemoryKiB is in KiB as argon2.IDKey expects.
type Params struct {
	MemoryKiB   uint32 `env:"ARGON2_MEMORY_KIB" envDefault:"65536"`
	Iterations  uint32 `env:"ARGON2_ITERATIONS" envDefault:"3"`
	Parallelism uint8  `env:"ARGON2_PARALLELISM"`
	SaltLength  uint32 `env:"ARGON2_SALT_LEN" envDefault:"16"`
	KeyLength   uint32 `env:"ARGON2_KEY_LEN" envDefault:"32"`
}

// Policy bounds what Register accepts as a password.
type Policy struct {
	MinLength      int  `env:"PASSWORD_MIN_LEN" envDefault:"10"`
	MaxLength      int  `env:"PASSWORD_MAX_LEN" envDefault:"256"`
	RejectVeryWeak bool `env:"PASSWORD_REJECT_VERY_WEAK" envDefault:"true"`
}

// Config is the whole tuning surface of the package.
type Config struct {
	Params Params
	Policy Policy
}

// DefaultConfig returns interactive-login defaults with parallelism sized to the host, capped at 4.
func DefaultConfig() Config {
	return Config{
		Params: Params{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: hostParallelism(),
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength:      10,
			MaxLength:      256,
			RejectVeryWeak: true,
		},
	}
}

// FromEnv reads COURSEHUB_PASSWORD_* and COURSEHUB_ARGON2_* over the defaults.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "COURSEHUB_"}); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if cfg.Params.Parallelism == 0 {
		cfg.Params.Parallelism = hostParallelism()
	}
	if err := cfg.Check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Check validates ranges. Out-of-range cost settings are rejected rather than clamped.
func (c Config) Check() error {
	p := c.Params
	switch {
	case p.MemoryKiB < 8*1024 || p.MemoryKiB > 1024*1024:
		return fmt.Errorf("%w: argon2 memory %d KiB out of range [8192..1048576]", ErrConfig, p.MemoryKiB)
	case p.Iterations < 1 || p.Iterations > 20:
		return fmt.Errorf("%w: argon2 iterations %d out of range [1..20]", ErrConfig, p.Iterations)
	case p.Parallelism < 1 || p.Parallelism > 64:
		return fmt.Errorf("%w: argon2 parallelism %d out of range [1..64]", ErrConfig, p.Parallelism)
	case p.SaltLength < 8 || p.SaltLength > 64:
		return fmt.Errorf("%w: salt length %d out of range [8..64]", ErrConfig, p.SaltLength)
	case p.KeyLength < 16 || p.KeyLength > 64:
		return fmt.Errorf("%w: key length %d out of range [16..64]", ErrConfig, p.KeyLength)
	case c.Policy.MinLength < 1:
		return fmt.Errorf("%w: min length must be positive", ErrConfig)
	case c.Policy.MinLength > c.Policy.MaxLength:
		return fmt.Errorf("%w: min length %d > max length %d", ErrConfig, c.Policy.MinLength, c.Policy.MaxLength)
	}
	return nil
}

func hostParallelism() uint8 {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	if n > 4 {
		n = 4
	}
	return uint8(n) // #nosec G115 -- clamped to [1..4]
}
