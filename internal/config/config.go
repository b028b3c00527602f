package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"firebase.google.com/go/db"
	"firebase.google.com/go/messaging"
	"google.golang.org/api/option"
	"gopkg.in/yaml.v3"

	"github.com/yourusername/nikah-service/internal/ceremony"
)

// Store backends
const (
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendRTDB      = "rtdb"
	BackendFirestore = "firestore"
)

type Config struct {
	Port                    string
	StoreBackend            string
	FirebaseCredentialsPath string
	FirebaseDatabaseURL     string
	FirebaseProjectID       string
	SQLitePath              string
	RTDBPollInterval        time.Duration
	FCMEnabled              bool
	RulesFile               string
	AllowedOrigins          []string
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// Load reads the configuration from the environment
func Load() (Config, error) {
	cfg := Config{
		Port:                    getenv("PORT", "8080"),
		StoreBackend:            strings.ToLower(getenv("STORE_BACKEND", BackendMemory)),
		FirebaseCredentialsPath: getenv("FIREBASE_CREDENTIALS_PATH", "./serviceAccountKey.json"),
		FirebaseDatabaseURL:     getenv("FIREBASE_DATABASE_URL", ""),
		FirebaseProjectID:       getenv("FIREBASE_PROJECT_ID", ""),
		SQLitePath:              getenv("SQLITE_PATH", "./rooms.db"),
		RTDBPollInterval:        time.Second,
		RulesFile:               getenv("RULES_FILE", ""),
	}

	if v := getenv("RTDB_POLL_INTERVAL", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid RTDB_POLL_INTERVAL %q", v)
		}
		cfg.RTDBPollInterval = d
	}

	if v := getenv("FCM_ENABLED", ""); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid FCM_ENABLED %q", v)
		}
		cfg.FCMEnabled = enabled
	}

	for _, o := range strings.Split(getenv("ALLOWED_ORIGINS", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	switch cfg.StoreBackend {
	case BackendMemory, BackendSQLite, BackendFirestore:
	case BackendRTDB:
		if cfg.FirebaseDatabaseURL == "" {
			return Config{}, fmt.Errorf("FIREBASE_DATABASE_URL is required for the rtdb backend")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	return cfg, nil
}

// NeedsFirebase reports whether the configuration uses any Firebase service
func (c Config) NeedsFirebase() bool {
	return c.StoreBackend == BackendRTDB || c.StoreBackend == BackendFirestore || c.FCMEnabled
}

// LoadRules returns the default ceremony rules overridden by the YAML file
// at path. An empty path yields the defaults.
func LoadRules(path string) (ceremony.Rules, error) {
	rules := ceremony.DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	if err := rules.Validate(); err != nil {
		return rules, fmt.Errorf("rules file %s: %w", path, err)
	}
	return rules, nil
}

// Firebase holds the clients created for the configured services. Clients
// the configuration does not use are nil.
type Firebase struct {
	App       *firebase.App
	Database  *db.Client
	Firestore *firestore.Client
	Messaging *messaging.Client
}

// InitFirebase initializes the Firebase Admin SDK
func InitFirebase(ctx context.Context, cfg Config) (*Firebase, error) {
	credentialsPath := cfg.FirebaseCredentialsPath

	// Check if credentials file exists
	if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
		log.Printf("⚠️  Firebase credentials not found at %s", credentialsPath)
		log.Println("📝 Please download your Firebase service account key and place it at the specified path")
		return nil, err
	}

	opt := option.WithCredentialsFile(credentialsPath)
	app, err := firebase.NewApp(ctx, &firebase.Config{
		DatabaseURL: cfg.FirebaseDatabaseURL,
		ProjectID:   cfg.FirebaseProjectID,
	}, opt)
	if err != nil {
		log.Printf("Error initializing Firebase app: %v", err)
		return nil, err
	}
	fb := &Firebase{App: app}
	log.Println("✅ Firebase app initialized")

	switch cfg.StoreBackend {
	case BackendRTDB:
		client, err := app.Database(ctx)
		if err != nil {
			log.Printf("Error initializing Realtime Database: %v", err)
			return nil, err
		}
		fb.Database = client
		log.Println("✅ Realtime Database client initialized")
	case BackendFirestore:
		client, err := app.Firestore(ctx)
		if err != nil {
			log.Printf("Error initializing Firestore: %v", err)
			return nil, err
		}
		fb.Firestore = client
		log.Println("✅ Firestore client initialized")
	}

	if cfg.FCMEnabled {
		client, err := app.Messaging(ctx)
		if err != nil {
			log.Printf("Error initializing Messaging: %v", err)
			fb.Close()
			return nil, err
		}
		fb.Messaging = client
		log.Println("✅ Firebase Messaging client initialized")
	}

	return fb, nil
}

// Close closes Firebase connections
func (f *Firebase) Close() {
	if f == nil {
		return
	}
	if f.Firestore != nil {
		f.Firestore.Close()
		log.Println("🔌 Firestore connection closed")
	}
}
