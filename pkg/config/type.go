package config

type MeterCollectorConfig struct {
	InterpreterAPIHost string `toml:"interpreter_api_host"`
	TLSEnabled         bool   `toml:"tls_enabled"`
	LogLevel           string `toml:"log_level"`
}

type InterpreterAPIConfig struct {
	SerialDevice string `toml:"serial_device"`
	// historical (1200 baud) or standard (9600 baud)
	Mode                string `toml:"mode"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	ReadTimeoutSeconds  int    `toml:"read_timeout_seconds"`
	// tab or space, empty follows the mode
	Separator string `toml:"separator"`
	// Defaults to EAST in standard mode, BASE in historical mode
	TotalEnergyKey string `toml:"total_energy_key"`

	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port"`
	LogLevel      string `toml:"log_level"`

	MQTT    MQTTConfig     `toml:"mqtt"`
	Sensors []SensorConfig `toml:"sensors"`
}

// Leave Broker empty to disable MQTT
type MQTTConfig struct {
	Broker      string `toml:"broker"`
	ClientID    string `toml:"client_id"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
	TopicPrefix string `toml:"topic_prefix"`
	QoS         byte   `toml:"qos"`
	Retain      bool   `toml:"retain"`
}

type SensorConfig struct {
	Key      string   `toml:"key"`
	Name     string   `toml:"name"`
	Unit     string   `toml:"unit"`
	Strategy string   `toml:"strategy"`
	Options  []string `toml:"options"`
}
