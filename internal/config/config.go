package config

// Server holds the connection parameters for one IRC server.
type Server struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
}

// Config holds client configuration values.
type Config struct {
	Server     Server `mapstructure:"server" yaml:"server"`
	Nickname   string `mapstructure:"nickname" yaml:"nickname"`
	Username   string `mapstructure:"username" yaml:"username,omitempty"`
	RealName   string `mapstructure:"real_name" yaml:"real_name,omitempty"`
	QuitReason string `mapstructure:"quit_reason" yaml:"quit_reason"`
	LogLevel   string `mapstructure:"log_level" yaml:"log_level"`
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Server: Server{
			Host: "irc.libera.chat",
			Port: 6697,
			TLS:  true,
		},
		Nickname:   "ircline",
		QuitReason: "ircline",
		LogLevel:   "info",
		LogFile:    "ircline.log",
	}
}
