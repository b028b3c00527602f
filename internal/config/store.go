package config

import (
	"fmt"
	"log"

	"github.com/yourusername/nikah-service/internal/treestore"
	"github.com/yourusername/nikah-service/internal/treestore/firestorestore"
	"github.com/yourusername/nikah-service/internal/treestore/memstore"
	"github.com/yourusername/nikah-service/internal/treestore/rtdb"
	"github.com/yourusername/nikah-service/internal/treestore/sqlitestore"
)

// OpenStore opens the tree store selected by cfg.StoreBackend. fb may be
// nil for the memory and sqlite backends.
func OpenStore(cfg Config, fb *Firebase) (treestore.Store, error) {
	switch cfg.StoreBackend {
	case BackendMemory:
		log.Println("⚠️  Using the in-memory store; rooms are lost on restart")
		return memstore.New(), nil
	case BackendSQLite:
		store, err := sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Printf("✅ SQLite store opened at %s", cfg.SQLitePath)
		return store, nil
	case BackendRTDB:
		if fb == nil || fb.Database == nil {
			return nil, fmt.Errorf("rtdb backend needs a Realtime Database client")
		}
		return rtdb.New(fb.Database, cfg.RTDBPollInterval), nil
	case BackendFirestore:
		if fb == nil || fb.Firestore == nil {
			return nil, fmt.Errorf("firestore backend needs a Firestore client")
		}
		return firestorestore.New(fb.Firestore), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
