package initialize

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/denismitr/goenv"
	"github.com/denismitr/imgslot/internal/registry"
	"github.com/denismitr/imgslot/internal/registry/memregistry"
	"github.com/denismitr/imgslot/internal/registry/mgoregistry"
	"github.com/denismitr/imgslot/internal/storage"
	"github.com/denismitr/imgslot/internal/storage/ghstorage"
	"github.com/denismitr/imgslot/internal/storage/s3storage"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DotEnv loads .env when present. Plain environment variables work without it.
func DotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		panic("Error loading .env file")
	}
}

func Logger() *logrus.Logger {
	log := logrus.New()
	log.Out = os.Stderr
	log.Formatter = &logrus.TextFormatter{
		TimestampFormat: time.StampMilli,
		FullTimestamp:   true,
	}

	if goenv.IsTruthy("DEBUG") {
		log.SetLevel(logrus.DebugLevel)
	}

	return log
}

func PublicHost() string {
	if isS3() {
		return stringOrDefault("PUBLIC_HOST", goenv.String("S3_ENDPOINT"))
	}

	return stringOrDefault("PUBLIC_HOST", ghstorage.DefaultPublicHost)
}

func isS3() bool {
	return strings.EqualFold(goenv.String("STORE_DRIVER"), "s3")
}

// StorageOpener picks the remote store from STORE_DRIVER, GitHub by default.
func StorageOpener() storage.Opener {
	if isS3() {
		return s3storage.NewOpener(S3ConfigFromEnv())
	}

	return ghstorage.NewOpener(ghstorage.Config{
		APIURL:     goenv.String("GITHUB_API_URL"),
		PublicHost: PublicHost(),
		Timeout:    30 * time.Second,
	})
}

func S3ConfigFromEnv() s3storage.Config {
	return s3storage.Config{
		AccessKey:        goenv.MustString("S3_ACCESS_KEY_ID"),
		AccessSecret:     goenv.MustString("S3_SECRET_ACCESS_KEY"),
		AccessToken:      "",
		Region:           goenv.MustString("S3_REGION"),
		Endpoint:         goenv.MustString("S3_ENDPOINT"),
		PublicHost:       goenv.String("PUBLIC_HOST"),
		S3ForcePathStyle: goenv.IsTruthy("S3_FORCE_PATH_STYLE"),
		EnableSSL:        goenv.IsTruthy("S3_SSL"),
	}
}

// HasMongo reports whether recent uploads outlive the process.
func HasMongo() bool {
	return strings.TrimSpace(goenv.String("MONGODB_URL")) != ""
}

// RecentRegistry connects to MongoDB when MONGODB_URL is set and falls back
// to an in-memory registry otherwise.
func RecentRegistry(connectionTimeout time.Duration, migrate bool, log *logrus.Logger) (registry.Recent, func()) {
	limit := RecentLimit()

	if !HasMongo() {
		log.Warnln("MONGODB_URL is not set, recent uploads are kept in memory")
		return memregistry.New(limit), func() {}
	}

	return MongoRegistry(connectionTimeout, migrate, limit)
}

func MongoRegistry(connectionTimeout time.Duration, migrate bool, limit int) (*mgoregistry.MongoRegistry, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(goenv.MustString("MONGODB_URL")))
	if err != nil {
		panic(err)
	}

	reg := mgoregistry.New(client, mgoregistry.Config{
		DB:               goenv.MustString("MONGODB_DATABASE"),
		RecentCollection: "recent_uploads",
		Limit:            limit,
		UseTransactions:  goenv.IsTruthy("MONGODB_TRANSACTIONS"),
	})

	if migrate {
		if err := reg.Migrate(ctx); err != nil {
			panic(err)
		}
	}

	return reg, func() {
		if err := client.Disconnect(context.Background()); err != nil {
			panic(err)
		}
	}
}

func RecentLimit() int {
	n := goenv.IntOrDefault("RECENT_LIMIT", registry.DefaultLimit)
	if n <= 0 {
		return registry.DefaultLimit
	}

	return n
}

func stringOrDefault(key, def string) string {
	if v := strings.TrimSpace(goenv.String(key)); v != "" {
		return v
	}

	return def
}
