package snapshot

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Keys lists the top-level sections in the order they are collected and written
var Keys = []string{"os", "cpu", "memory", "disk", "network", "environment", "timestamp"}

// Snapshot is the complete record of one collection run.
// Field order is the serialized key order.
type Snapshot struct {
	OS          OSInfo               `yaml:"os"`
	CPU         Section[CPUInfo]     `yaml:"cpu"`
	Memory      Section[MemoryInfo]  `yaml:"memory"`
	Disk        Section[[]Partition] `yaml:"disk"`
	Network     Section[Interfaces]  `yaml:"network"`
	Environment Section[Environment] `yaml:"environment"`
	Timestamp   string               `yaml:"timestamp"`
}

// Section holds either a collected value or a description of why it is missing.
// It serializes as the value itself or as a plain string, never both.
type Section[T any] struct {
	Value T
	Err   string
}

// Available wraps a successfully collected value
func Available[T any](v T) Section[T] {
	return Section[T]{Value: v}
}

// Unavailable records why a section could not be collected
func Unavailable[T any](reason string) Section[T] {
	return Section[T]{Err: reason}
}

// OK reports whether the section carries a value
func (s Section[T]) OK() bool {
	return s.Err == ""
}

func (s Section[T]) MarshalYAML() (interface{}, error) {
	if s.Err != "" {
		return s.Err, nil
	}
	return s.Value, nil
}

func (s *Section[T]) UnmarshalYAML(node *yaml.Node) error {
	var zero T
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!str" {
		s.Value = zero
		s.Err = node.Value
		return nil
	}
	s.Err = ""
	s.Value = zero
	return node.Decode(&s.Value)
}

// OSInfo identifies the operating system
type OSInfo struct {
	System    string `yaml:"system"`
	Release   string `yaml:"release"`
	Version   string `yaml:"version"`
	Machine   string `yaml:"machine"`
	Processor string `yaml:"processor"`
}

// CPUInfo contains CPU counts, frequencies and utilization.
// Nil fields are values the platform does not report.
type CPUInfo struct {
	PhysicalCores       *int     `yaml:"physical_cores"`
	TotalCores          *int     `yaml:"total_cores"`
	MaxFrequencyMHz     *float64 `yaml:"max_frequency_mhz"`
	MinFrequencyMHz     *float64 `yaml:"min_frequency_mhz"`
	CurrentFrequencyMHz *float64 `yaml:"current_frequency_mhz"`
	UsagePercent        float64  `yaml:"cpu_usage_percent"`
}

// MemoryInfo contains virtual memory sizes in megabytes
type MemoryInfo struct {
	TotalMB     float64 `yaml:"total_mb"`
	AvailableMB float64 `yaml:"available_mb"`
	UsedMB      float64 `yaml:"used_mb"`
	Percentage  float64 `yaml:"percentage"`
}

// Partition describes one mounted filesystem.
// When Error is set only Device and Error are serialized.
type Partition struct {
	Device     string  `yaml:"device"`
	Mountpoint string  `yaml:"mountpoint"`
	Fstype     string  `yaml:"fstype"`
	Opts       string  `yaml:"opts"`
	TotalMB    float64 `yaml:"total_mb"`
	UsedMB     float64 `yaml:"used_mb"`
	FreeMB     float64 `yaml:"free_mb"`
	Percentage float64 `yaml:"percentage"`
	Error      string  `yaml:"-"`
}

type partitionFault struct {
	Device string `yaml:"device"`
	Error  string `yaml:"error"`
}

func (p Partition) MarshalYAML() (interface{}, error) {
	if p.Error != "" {
		return partitionFault{Device: p.Device, Error: p.Error}, nil
	}
	type plain Partition
	return plain(p), nil
}

func (p *Partition) UnmarshalYAML(node *yaml.Node) error {
	type plain Partition
	var aux struct {
		plain `yaml:",inline"`
		Error string `yaml:"error"`
	}
	if err := node.Decode(&aux); err != nil {
		return err
	}
	*p = Partition(aux.plain)
	p.Error = aux.Error
	return nil
}

// Address is one address assigned to a network interface
type Address struct {
	Family    string  `yaml:"family"`
	Address   string  `yaml:"address"`
	Netmask   *string `yaml:"netmask"`
	Broadcast *string `yaml:"broadcast"`
	PTP       *string `yaml:"ptp"`
}

// Interface is a network interface and its addresses
type Interface struct {
	Name      string
	Addresses []Address
}

// Interfaces serializes as a mapping from interface name to addresses,
// keeping enumeration order.
type Interfaces []Interface

func (ifs Interfaces) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, iface := range ifs {
		key := &yaml.Node{}
		if err := key.Encode(iface.Name); err != nil {
			return nil, err
		}
		addrs := iface.Addresses
		if addrs == nil {
			addrs = []Address{}
		}
		value := &yaml.Node{}
		if err := value.Encode(addrs); err != nil {
			return nil, fmt.Errorf("interface %s: %w", iface.Name, err)
		}
		node.Content = append(node.Content, key, value)
	}
	return node, nil
}

func (ifs *Interfaces) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: network must be a mapping", node.Line)
	}
	out := make(Interfaces, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var iface Interface
		if err := node.Content[i].Decode(&iface.Name); err != nil {
			return err
		}
		if err := node.Content[i+1].Decode(&iface.Addresses); err != nil {
			return fmt.Errorf("interface %s: %w", iface.Name, err)
		}
		out = append(out, iface)
	}
	*ifs = out
	return nil
}

// Environment maps variable names to values. It serializes with sorted keys.
type Environment map[string]string

// mergeKey is read back as a YAML merge unless quoted
const mergeKey = "<<"

func (env Environment) MarshalYAML() (interface{}, error) {
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)

	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, name := range names {
		key := &yaml.Node{}
		if err := key.Encode(name); err != nil {
			return nil, err
		}
		if name == mergeKey {
			key.Style = yaml.DoubleQuotedStyle
		}
		value := &yaml.Node{}
		if err := value.Encode(env[name]); err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		node.Content = append(node.Content, key, value)
	}
	return node, nil
}
