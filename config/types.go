package config

// StorageConfig selects the persistence backends
type StorageConfig struct {
	Backend             string `yaml:"backend"`
	Directory           string `yaml:"directory"`
	RedisAddr           string `yaml:"redis_addr"`
	VerificationBackend string `yaml:"verification_backend"`
	PostgresDSN         string `yaml:"postgres_dsn"`
}

// ServiceConfig holds the configuration from contribook.yml
type ServiceConfig struct {
	ListenAddr    string        `yaml:"listen_addr"`
	Storage       StorageConfig `yaml:"storage"`
	FilesDir      string        `yaml:"files_dir"`
	MasterKey     string        `yaml:"master_key"`
	AppendRetries int           `yaml:"append_retries"`
}

// ConfigFile is the top-level structure for contribook.yml
type ConfigFile struct {
	Config ServiceConfig `yaml:"config"`
}
