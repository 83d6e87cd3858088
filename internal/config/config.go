// Package config loads the dashboard configuration.
//
// Precedence, lowest first: built-in defaults, config file (--config or
// BIKEDASH_CONFIG), BIKEDASH_* environment variables, command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/bikedash/internal/adc"
	"github.com/sweeney/bikedash/internal/display"
	"github.com/sweeney/bikedash/internal/gpio"
	"github.com/sweeney/bikedash/internal/logger"
	"github.com/sweeney/bikedash/internal/logic"
	"github.com/sweeney/bikedash/internal/power"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BIKEDASH"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Wheel   WheelConfig   `mapstructure:"wheel" yaml:"wheel"`
	Sensor  SensorConfig  `mapstructure:"sensor" yaml:"sensor"`
	Sleep   SleepConfig   `mapstructure:"sleep" yaml:"sleep"`
	Light   LightConfig   `mapstructure:"light" yaml:"light"`
	Tick    time.Duration `mapstructure:"tick" yaml:"tick"`
	GPIO    GPIOConfig    `mapstructure:"gpio" yaml:"gpio"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Power   PowerConfig   `mapstructure:"power" yaml:"power"`
	MQTT    MQTTConfig    `mapstructure:"mqtt" yaml:"mqtt"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`

	// Command switches, not part of the file.
	File        string `mapstructure:"-" yaml:"-"`
	PrintConfig bool   `mapstructure:"-" yaml:"-"`
}

type WheelConfig struct {
	Radius       float64 `mapstructure:"radius" yaml:"radius"` // m
	PulsesPerRev int     `mapstructure:"pulses_per_rev" yaml:"pulses_per_rev"`
}

type SensorConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type SleepConfig struct {
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MotionThreshold float64       `mapstructure:"motion_threshold" yaml:"motion_threshold"` // km/h
	Notice          time.Duration `mapstructure:"notice" yaml:"notice"`
}

type LightConfig struct {
	Threshold int    `mapstructure:"threshold" yaml:"threshold"` // %
	FullScale int    `mapstructure:"full_scale" yaml:"full_scale"`
	ADCPath   string `mapstructure:"adc_path" yaml:"adc_path"`
}

// GPIOConfig holds line offsets; a negative offset disables an optional output.
type GPIOConfig struct {
	Chip           string `mapstructure:"chip" yaml:"chip"`
	Reed           int    `mapstructure:"reed" yaml:"reed"`
	Edge           string `mapstructure:"edge" yaml:"edge"`
	Relay          int    `mapstructure:"relay" yaml:"relay"`
	RelayActiveLow bool   `mapstructure:"relay_active_low" yaml:"relay_active_low"`
	DisplayPower   int    `mapstructure:"display_power" yaml:"display_power"`
	LatchClear     int    `mapstructure:"latch_clear" yaml:"latch_clear"`
	LatchData      int    `mapstructure:"latch_data" yaml:"latch_data"`
}

type DisplayConfig struct {
	Device string `mapstructure:"device" yaml:"device"`
}

type PowerConfig struct {
	StatePath string `mapstructure:"state_path" yaml:"state_path"`
}

type MQTTConfig struct {
	Broker    string        `mapstructure:"broker" yaml:"broker"` // empty disables
	ClientID  string        `mapstructure:"client_id" yaml:"client_id"`
	Heartbeat time.Duration `mapstructure:"heartbeat" yaml:"heartbeat"` // 0 disables
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"` // empty disables
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Wheel: WheelConfig{
			Radius:       logic.DefaultWheelRadius,
			PulsesPerRev: logic.DefaultPulsesPerRev,
		},
		Sensor: SensorConfig{
			Debounce: logic.DefaultDebounce,
		},
		Sleep: SleepConfig{
			Timeout:         logic.DefaultInactivityTimeout,
			MotionThreshold: logic.DefaultMotionThreshold,
			Notice:          power.DefaultNotice,
		},
		Light: LightConfig{
			Threshold: logic.DefaultBrightnessThreshold,
			FullScale: logic.DefaultADCFullScale,
			ADCPath:   adc.DefaultPath,
		},
		Tick: logic.DefaultTick,
		GPIO: GPIOConfig{
			Chip:           gpio.DefaultChip,
			Reed:           gpio.DefaultPinReed,
			Edge:           string(gpio.EdgeRising),
			Relay:          gpio.DefaultPinRelay,
			RelayActiveLow: true,
			DisplayPower:   gpio.DefaultPinDisplay,
			LatchClear:     gpio.DefaultPinLatchCLR,
			LatchData:      gpio.DefaultPinLatchData,
		},
		Display: DisplayConfig{
			Device: display.DefaultDevice,
		},
		Power: PowerConfig{
			StatePath: power.DefaultStatePath,
		},
		MQTT: MQTTConfig{
			ClientID:  "bikedash",
			Heartbeat: 15 * time.Minute,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level: logger.LevelInfo,
		},
	}
}

// newFlagSet defines one flag per config key, defaulting to d.
// It returns the flag set and the key each flag binds to.
func newFlagSet(d *Config) (*pflag.FlagSet, map[string]string) {
	fs := pflag.NewFlagSet("bikedash", pflag.ContinueOnError)
	keys := map[string]string{}

	str := func(key, name, def, usage string) {
		fs.String(name, def, usage)
		keys[name] = key
	}
	integer := func(key, name string, def int, usage string) {
		fs.Int(name, def, usage)
		keys[name] = key
	}
	float := func(key, name string, def float64, usage string) {
		fs.Float64(name, def, usage)
		keys[name] = key
	}
	duration := func(key, name string, def time.Duration, usage string) {
		fs.Duration(name, def, usage)
		keys[name] = key
	}
	boolean := func(key, name string, def bool, usage string) {
		fs.Bool(name, def, usage)
		keys[name] = key
	}

	float("wheel.radius", "wheel-radius", d.Wheel.Radius, "Wheel radius in metres")
	integer("wheel.pulses_per_rev", "pulses-per-rev", d.Wheel.PulsesPerRev, "Magnets on the wheel (pulses per revolution)")
	duration("sensor.debounce", "debounce", d.Sensor.Debounce, "Reed switch debounce window")
	duration("sleep.timeout", "sleep-timeout", d.Sleep.Timeout, "Inactivity before sleeping")
	float("sleep.motion_threshold", "motion-threshold", d.Sleep.MotionThreshold, "Speed in km/h at or below which the bike counts as stationary")
	duration("sleep.notice", "sleep-notice", d.Sleep.Notice, "How long the sleep notice is shown")
	integer("light.threshold", "light-threshold", d.Light.Threshold, "Brightness percentage below which the lights switch on")
	integer("light.full_scale", "adc-full-scale", d.Light.FullScale, "Raw ADC reading for 100% brightness")
	str("light.adc_path", "adc-path", d.Light.ADCPath, "IIO raw value file of the light sensor")
	duration("tick", "tick", d.Tick, "Dashboard refresh interval")
	str("gpio.chip", "gpio-chip", d.GPIO.Chip, "GPIO character device")
	integer("gpio.reed", "pin-reed", d.GPIO.Reed, "Line offset of the reed switch")
	str("gpio.edge", "edge", d.GPIO.Edge, "Reed edges to count: rising, falling or both")
	integer("gpio.relay", "pin-relay", d.GPIO.Relay, "Line offset of the lighting relay (-1 to disable)")
	boolean("gpio.relay_active_low", "relay-active-low", d.GPIO.RelayActiveLow, "Relay closes on a low level")
	integer("gpio.display_power", "pin-display", d.GPIO.DisplayPower, "Line offset of the display power switch (-1 to disable)")
	integer("gpio.latch_clear", "pin-latch-clear", d.GPIO.LatchClear, "Line offset of the wake flip-flop CLR input (-1 to disable)")
	integer("gpio.latch_data", "pin-latch-data", d.GPIO.LatchData, "Line offset of the wake flip-flop D input (-1 to disable)")
	str("display.device", "display", d.Display.Device, "Framebuffer device of the OLED panel")
	str("power.state_path", "power-state", d.Power.StatePath, "Kernel suspend control file")
	str("mqtt.broker", "broker", d.MQTT.Broker, "MQTT broker address (empty to disable)")
	str("mqtt.client_id", "client-id", d.MQTT.ClientID, "MQTT client id")
	duration("mqtt.heartbeat", "heartbeat", d.MQTT.Heartbeat, "Heartbeat interval (0 to disable)")
	str("http.addr", "http", d.HTTP.Addr, "HTTP status address (empty to disable)")
	str("log.level", "log-level", d.Log.Level, "Log level: debug, info, warn or error")

	fs.String("config", "", "Config file (YAML or TOML)")
	fs.Bool("print-config", false, "Print the effective configuration and exit")

	return fs, keys
}

// Load builds the configuration from args (without the program name),
// the environment and an optional config file.
func Load(args []string) (*Config, error) {
	fs, keys := newFlagSet(Default())
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range keys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	file, _ := fs.GetString("config")
	if file == "" {
		file = v.GetString("config")
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.File = file
	cfg.PrintConfig, _ = fs.GetBool("print-config")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges. All failures are reported together.
func (c *Config) Validate() error {
	var errs []error
	fail := func(field string, value any, reason string) {
		errs = append(errs, fmt.Errorf("%w: %s=%v: %s", ErrInvalid, field, value, reason))
	}

	if c.Wheel.Radius <= 0 {
		fail("wheel.radius", c.Wheel.Radius, "must be positive")
	}
	if c.Wheel.PulsesPerRev < 1 {
		fail("wheel.pulses_per_rev", c.Wheel.PulsesPerRev, "must be at least 1")
	}
	if c.Sensor.Debounce < 0 {
		fail("sensor.debounce", c.Sensor.Debounce, "must not be negative")
	}
	if c.Sleep.Timeout <= 0 {
		fail("sleep.timeout", c.Sleep.Timeout, "must be positive")
	}
	if c.Sleep.MotionThreshold < 0 {
		fail("sleep.motion_threshold", c.Sleep.MotionThreshold, "must not be negative")
	}
	if c.Sleep.Notice < 0 {
		fail("sleep.notice", c.Sleep.Notice, "must not be negative")
	}
	if c.Light.Threshold < 0 || c.Light.Threshold > 100 {
		fail("light.threshold", c.Light.Threshold, "must be within 0..100")
	}
	if c.Light.FullScale <= 0 {
		fail("light.full_scale", c.Light.FullScale, "must be positive")
	}
	if c.Tick <= 0 {
		fail("tick", c.Tick, "must be positive")
	}
	if c.GPIO.Reed < 0 {
		fail("gpio.reed", c.GPIO.Reed, "must not be negative")
	}
	if _, err := gpio.ParseEdge(c.GPIO.Edge); err != nil {
		fail("gpio.edge", c.GPIO.Edge, "must be rising, falling or both")
	}
	if c.MQTT.Heartbeat < 0 {
		fail("mqtt.heartbeat", c.MQTT.Heartbeat, "must not be negative")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		fail("log.level", c.Log.Level, "must be debug, info, warn or error")
	}

	return errors.Join(errs...)
}

// YAML renders the configuration in config file form.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
