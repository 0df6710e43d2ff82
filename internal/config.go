// Scheduler configuration, loaded from a YAML file with the following
// structure:
//
//  scheduler_config:
//    num_workers: -1
//    deque_capacity: 256
//    affinity_queue_capacity: 0
//    steal_backoff_min: 50us
//    steal_backoff_max: 2ms
//    log_config:
//      ...
//
// The "scheduler_config" section maps to the SchedulerConfig structure
// defined in this file.

package pftask_internal

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SCHEDULER_CONFIG_SECTION_NAME = "scheduler_config"

	// -1 means: one less than the number of available cores (at least 1).
	SCHEDULER_CONFIG_NUM_WORKERS_DEFAULT = -1
	SCHEDULER_MAX_NUM_WORKERS            = 256

	SCHEDULER_CONFIG_DEQUE_CAPACITY_DEFAULT           = 256
	SCHEDULER_CONFIG_DEQUE_CAPACITY_MIN                = 16
	SCHEDULER_CONFIG_AFFINITY_QUEUE_CAPACITY_DEFAULT  = 0
	SCHEDULER_CONFIG_STEAL_BACKOFF_MIN_DEFAULT        = 50 * time.Microsecond
	SCHEDULER_CONFIG_STEAL_BACKOFF_MAX_DEFAULT        = 2 * time.Millisecond
)

type SchedulerConfig struct {
	// The number of pool workers. If <= 0, it is set to the number of
	// available cores minus one, but at least 1 (see host_diagnostics.go).
	NumWorkers int `yaml:"num_workers"`

	// Capacity of each worker's per-priority-band deque. Exceeding it is a
	// fatal QueueOverflow condition, not a transient one.
	DequeCapacity int `yaml:"deque_capacity"`

	// Capacity of each worker's affinity queue, 0 for unbounded.
	AffinityQueueCapacity int `yaml:"affinity_queue_capacity"`

	// Bounds of the exponential back-off a worker applies between failed
	// attempts to find ready work (own queues, then stealing).
	StealBackoffMin time.Duration `yaml:"steal_backoff_min"`
	StealBackoffMax time.Duration `yaml:"steal_backoff_max"`

	LoggerConfig *LoggerConfig `yaml:"log_config"`
}

func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		NumWorkers:            SCHEDULER_CONFIG_NUM_WORKERS_DEFAULT,
		DequeCapacity:         SCHEDULER_CONFIG_DEQUE_CAPACITY_DEFAULT,
		AffinityQueueCapacity: SCHEDULER_CONFIG_AFFINITY_QUEUE_CAPACITY_DEFAULT,
		StealBackoffMin:       SCHEDULER_CONFIG_STEAL_BACKOFF_MIN_DEFAULT,
		StealBackoffMax:       SCHEDULER_CONFIG_STEAL_BACKOFF_MAX_DEFAULT,
		LoggerConfig:          DefaultLoggerConfig(),
	}
}

// CompliantSchedulerConfig returns a copy of cfg with every field clamped
// to a usable value: a non-positive NumWorkers is resolved to the host's
// available CPU count minus one, but at least 1 (and any NumWorkers is
// capped at SCHEDULER_MAX_NUM_WORKERS), a
// too-small DequeCapacity is raised to the minimum, and a backoff max
// below the backoff min is raised to match it.
func CompliantSchedulerConfig(cfg *SchedulerConfig) *SchedulerConfig {
	compliant := *cfg

	if compliant.NumWorkers <= 0 {
		compliant.NumWorkers = AvailableCPUCount - 1
		if compliant.NumWorkers < 1 {
			compliant.NumWorkers = 1
		}
	}
	if compliant.NumWorkers > SCHEDULER_MAX_NUM_WORKERS {
		compliant.NumWorkers = SCHEDULER_MAX_NUM_WORKERS
	}

	if compliant.DequeCapacity < SCHEDULER_CONFIG_DEQUE_CAPACITY_MIN {
		compliant.DequeCapacity = SCHEDULER_CONFIG_DEQUE_CAPACITY_MIN
	}

	if compliant.StealBackoffMin <= 0 {
		compliant.StealBackoffMin = SCHEDULER_CONFIG_STEAL_BACKOFF_MIN_DEFAULT
	}
	if compliant.StealBackoffMax < compliant.StealBackoffMin {
		compliant.StealBackoffMax = compliant.StealBackoffMin
	}

	if compliant.LoggerConfig == nil {
		compliant.LoggerConfig = DefaultLoggerConfig()
	}

	return &compliant
}

// LoadConfig loads a SchedulerConfig from the "scheduler_config" section of
// the given YAML file (or, for testing, a pre-read buf), starting from
// DefaultSchedulerConfig and decoding only the keys present in the file
// over it.
func LoadConfig(cfgFile string, buf []byte) (*SchedulerConfig, error) {
	if buf == nil {
		f, err := os.Open(cfgFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		buf, err = io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("file: %q: %v", cfgFile, err)
		}
	}

	docNode := yaml.Node{}
	if err := yaml.Unmarshal(buf, &docNode); err != nil {
		return nil, fmt.Errorf("file: %q: %v", cfgFile, err)
	}

	cfg := DefaultSchedulerConfig()
	if docNode.Kind == yaml.DocumentNode && len(docNode.Content) > 0 {
		rootNode := docNode.Content[0]
		if rootNode.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("file: %q: invalid YAML root node %q", cfgFile, rootNode.Tag)
		}
		found := false
		for _, n := range rootNode.Content {
			if n.Kind == yaml.ScalarNode {
				found = n.Value == SCHEDULER_CONFIG_SECTION_NAME
				continue
			}
			if n.Kind == yaml.MappingNode && found {
				if err := n.Decode(cfg); err != nil {
					return nil, fmt.Errorf("file: %q: %v", cfgFile, err)
				}
			}
			found = false
		}
	}

	return CompliantSchedulerConfig(cfg), nil
}
