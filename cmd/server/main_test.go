package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/anonto42/shunye-ott/backend/internal/repositories"
	"github.com/anonto42/shunye-ott/backend/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStoreSelection(t *testing.T) {
	cfg := &config.Config{}
	cfg.Store.Backend = "memory"

	store, err := documentStore(cfg, &config.DB{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &repositories.MemoryStore{}, store)

	seed := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(seed, []byte(`{"reels": [{"id": "r1", "videoId": "v1"}]}`), 0o600))
	cfg.Store.MemorySeedPath = seed
	store, err = documentStore(cfg, &config.DB{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &repositories.MemoryStore{}, store)

	cfg.Store.Backend = "firestore"
	_, err = documentStore(cfg, &config.DB{}, nil)
	assert.Error(t, err, "firestore needs an initialised Firebase app")
}
