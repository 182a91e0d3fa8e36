package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		config  StoreConfig
		wantErr bool
	}{
		{"leveldb with dir", StoreConfig{Backend: LevelDBBackend, Directory: "/tmp/x"}, false},
		{"leveldb missing dir", StoreConfig{Backend: LevelDBBackend}, true},
		{"bolt missing dir", StoreConfig{Backend: BoltBackend}, true},
		{"redis with addr", StoreConfig{Backend: RedisBackend, RedisAddr: "localhost:6379"}, false},
		{"redis missing addr", StoreConfig{Backend: RedisBackend}, true},
		{"memory", StoreConfig{Backend: MemoryBackend}, false},
		{"empty backend", StoreConfig{}, true},
		{"unknown backend", StoreConfig{Backend: "cassandra"}, true},
		{"postgres verification without dsn", StoreConfig{Backend: MemoryBackend, VerificationBackend: PostgresVerificationBackend}, true},
		{"embedded verification", StoreConfig{Backend: MemoryBackend, VerificationBackend: EmbeddedVerificationBackend}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateStoresMemoryBackend(t *testing.T) {
	ledger, contribs, verifications, scores, err := CreateStores(&StoreConfig{Backend: MemoryBackend})
	require.NoError(t, err)
	assert.NotNil(t, ledger)
	assert.NotNil(t, contribs)
	assert.NotNil(t, verifications)
	assert.NotNil(t, scores)
}
