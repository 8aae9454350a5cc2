package main

import (
	"context"
	"errors"
	"fmt"
	"meetinclick/backend/internal/config"
	"meetinclick/backend/internal/kv"
	"meetinclick/backend/internal/negotiation"
	"meetinclick/backend/internal/notify"
	"meetinclick/backend/internal/storage"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const usage = `Usage: admin [flags] <command> [args]

Commands:
  status <user_a> <user_b>           show the request record of a pair
  reset-request <user_a> <user_b>    delete the request record so a new one can be sent
  budget <conversation_id> <user>    show the remaining character budget
  show-conversation <conversation_id>
  show-user <user_id>

Flags:
`

func main() {
	backend := flag.String("backend", "", "store backend override: redis, dynamodb or memory")
	timeout := flag.Duration("timeout", config.DefaultStoreTimeout, "timeout for store calls")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	if *backend != "" {
		cfg.StoreBackend = config.StoreBackend(*backend)
		if err := cfg.Validate(); err != nil {
			logrus.WithError(err).Fatal("invalid --backend")
		}
	}
	cfg.ConfigureLogging()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if args[0] == "show-user" {
		if len(args) != 2 {
			flag.Usage()
			os.Exit(2)
		}
		db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
		if err != nil {
			logrus.WithError(err).Fatal("failed to connect database")
		}
		// Без брокера: адмінка нічого не публікує
		if err := showUser(ctx, os.Stdout, storage.NewStorageService(db, nil), args[1]); err != nil {
			logrus.WithError(err).Fatal("show-user failed")
		}
		return
	}

	store := openStore(ctx, cfg)
	ledger := negotiation.NewLedger(store, notify.Nop{})
	negotiator := negotiation.NewNegotiator(store, ledger, notify.Nop{})
	negotiator.MaxCharacters = cfg.MaxCharacters

	if err := run(ctx, os.Stdout, ledger, negotiator, args); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		logrus.WithError(err).Fatalf("%s failed", args[0])
	}
}

// openStore connects to the configured backend. The broker is only needed
// for publishing, so DynamoDB gets an in-process one.
func openStore(ctx context.Context, cfg *config.Config) kv.Store {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		logrus.Warn("memory backend holds no shared state, results only reflect this process")
		return kv.NewMemoryStore(nil)
	case config.BackendDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logrus.WithError(err).Fatal("failed to load AWS config")
		}
		return kv.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, kv.NewMemoryBroker())
	default:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		broker := kv.NewRedisBroker(rdb, cfg.StorePrefix)
		return kv.NewRedisStore(rdb, cfg.StorePrefix, broker)
	}
}
