package nwk

/*------------------------------------------------------------------
 *
 * Purpose:	Config — a YAML-loadable description of one Stack's
 *		addressing, security and sizing, for cmd/meshd.
 *
 * Description:	Mirrors the teacher's config.go approach of a plain
 *		file read into a struct with defaults applied before any
 *		override, rather than yaml.v3's own zero-value defaults
 *		(which would make an all-zero table size and a disabled
 *		stack indistinguishable).
 *
 *------------------------------------------------------------------*/

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk, YAML-shaped description of a Stack.
type Config struct {
	Addr  uint16 `yaml:"addr"`
	PanID uint16 `yaml:"pan_id"`
	TxPwr int8   `yaml:"tx_power"`

	Security SecurityMode `yaml:"security"`
	KeyHex   string       `yaml:"key_hex"`

	FrameBuffers int `yaml:"frame_buffers"`

	RoutingEnabled bool `yaml:"routing_enabled"`
	RouteTableSize int  `yaml:"route_table_size"`

	DupeTableSize int    `yaml:"dup_table_size"`
	DupeTTLMS     uint16 `yaml:"dup_ttl_ms"`

	AckWaitTimeMS int `yaml:"ack_wait_time_ms"`

	Transport TransportConfig `yaml:"transport"`
	Trace     TraceConfig     `yaml:"trace"`
}

// TraceConfig optionally enables the frame-trace logger. An empty Path
// leaves tracing off.
type TraceConfig struct {
	Path            string `yaml:"path"`
	TimestampFormat string `yaml:"timestamp_format"`
}

// TransportConfig selects and parameterizes the PHY transport shim.
type TransportConfig struct {
	Kind string `yaml:"kind"` // "serial" or "tcp"

	SerialPath string `yaml:"serial_path"`
	SerialBaud int    `yaml:"serial_baud"`

	TCPAddr string `yaml:"tcp_addr"`
}

// DefaultConfig returns the sizing spec.md's examples use absent any
// override: 8 frame buffers, a 16-entry route table, a 16-entry dup
// table with a 1500 ms suppression window, and a 100 ms ack wait.
func DefaultConfig() Config {
	return Config{
		FrameBuffers:   8,
		RouteTableSize: 16,
		DupeTableSize:  16,
		DupeTTLMS:      1500,
		AckWaitTimeMS:  100,
		Transport: TransportConfig{
			Kind:       "serial",
			SerialBaud: 115200,
		},
	}
}

// LoadConfig reads and parses path over DefaultConfig, so a config file
// only needs to specify what it overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("nwk: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("nwk: parse config %s: %w", path, err)
	}
	return cfg, nil
}

// StackConfig extracts the sizing Stack construction needs.
func (c Config) StackConfig() StackConfig {
	return StackConfig{
		FrameBuffers:   c.FrameBuffers,
		RoutingEnabled: c.RoutingEnabled,
		RouteTableSize: c.RouteTableSize,
		DupeTableSize:  c.DupeTableSize,
		DupeTTLMS:      c.DupeTTLMS,
		AckWaitTimeMS:  c.AckWaitTimeMS,
	}
}

// Key decodes KeyHex into the fixed-size key Stack.SetKey expects. An
// empty KeyHex leaves the key all-zero, valid only when Security is
// SecurityDisabled.
func (c Config) Key() ([SecurityKeySize]byte, error) {
	var key [SecurityKeySize]byte
	if c.KeyHex == "" {
		return key, nil
	}
	raw, err := hex.DecodeString(c.KeyHex)
	if err != nil {
		return key, fmt.Errorf("nwk: parse key_hex: %w", err)
	}
	if len(raw) != SecurityKeySize {
		return key, fmt.Errorf("nwk: key_hex must decode to %d bytes, got %d", SecurityKeySize, len(raw))
	}
	copy(key[:], raw)
	return key, nil
}
