package simulate

import (
	"errors"
	"time"
)

// Default run parameters.
const (
	DefaultUsers   = 5
	DefaultDays    = 28
	DefaultSeed    = 1
	DefaultWorkers = 4
	// DefaultMissingRate is the chance that a marker has no reading on a day.
	DefaultMissingRate = 0.1
)

// ErrInvalidConfig is returned for unusable run parameters.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Config holds the parameters of a simulation run.
type Config struct {
	Users       int       // Number of synthetic users
	Days        int       // Number of consecutive days to replay
	Seed        uint64    // Seed for the deterministic generator
	Start       time.Time // Time of the first calculation; zero means Days before now
	Workers     int       // Concurrent calculations per day
	MissingRate float64   // Probability in [0,1) that a marker is missing on a day
	UserPrefix  string    // Prefix of generated user ids
}

// DefaultConfig returns a Config with the package defaults.
func DefaultConfig() Config {
	return Config{
		Users:       DefaultUsers,
		Days:        DefaultDays,
		Seed:        DefaultSeed,
		Workers:     DefaultWorkers,
		MissingRate: DefaultMissingRate,
		UserPrefix:  "sim-user-",
	}
}

func (c Config) validate() error {
	switch {
	case c.Users < 1:
		return errors.Join(ErrInvalidConfig, errors.New("users must be positive"))
	case c.Days < 1:
		return errors.Join(ErrInvalidConfig, errors.New("days must be positive"))
	case c.Workers < 1:
		return errors.Join(ErrInvalidConfig, errors.New("workers must be positive"))
	case c.MissingRate < 0 || c.MissingRate >= 1:
		return errors.Join(ErrInvalidConfig, errors.New("missing rate must be in [0,1)"))
	}
	return nil
}

// Stats summarises a simulation run.
type Stats struct {
	Calculations   int           `json:"calculations"`
	Created        int           `json:"created"`
	ShortCircuited int           `json:"short_circuited"`
	NoData         int           `json:"no_data"`
	Failed         int           `json:"failed"`
	Users          []string      `json:"users"`
	FirstDate      string        `json:"first_date"`
	LastDate       string        `json:"last_date"`
	Duration       time.Duration `json:"duration"`
}
