package config

const (
	DefaultListenAddr    = ":8080"
	DefaultBackend       = "leveldb"
	DefaultDirectory     = "./data"
	DefaultFilesDir      = "./files"
	DefaultAppendRetries = 3
)
