package common

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/mediocregopher/radix/v3"

	"github.com/vielumine/vertigo/common/config"
)

const (
	VERSION = "1.4.0"
)

var logger = GetFixedPrefixLogger("common")

var (
	ConfPQHost     = config.RegisterOption("vertigo.pq.host", "Postgres server hostname", "localhost")
	ConfPQPort     = config.RegisterOption("vertigo.pq.port", "Postgres server port", 5432)
	ConfPQUsername = config.RegisterOption("vertigo.pq.username", "Postgres connection username", "postgres")
	ConfPQPassword = config.RegisterOption("vertigo.pq.password", "Postgres connection password", "")
	ConfPQDB       = config.RegisterOption("vertigo.pq.db", "Postgres database name", "vertigo")
	ConfPQSSLMode  = config.RegisterOption("vertigo.pq.sslmode", "Postgres connection ssl mode", "disable")
	ConfMaxSQLConn = config.RegisterOption("vertigo.pq.max_conns", "Maximum number of postgres connections", 10)

	ConfRedis = config.RegisterOption("vertigo.redis", "Address of the redis server", "localhost:6379")

	ConfSnowflakeNode = config.RegisterOption("vertigo.snowflake_node", "Node number used when minting ids", 0)
	ConfOwner         = config.RegisterOption("vertigo.owner", "User id of the process operator, receives critical alerts", 0)
	ConfSentryDSN     = config.RegisterOption("vertigo.sentry_dsn", "Sentry credentials for error reporting", "")
)

// Core holds the process wide connections and registries. It is built once at
// startup by CoreInit and passed to the components that need it, replacing the
// old package level globals.
type Core struct {
	PQ        *sqlx.DB
	RedisPool *radix.Pool
	RedisAddr string
	IDNode    *snowflake.Node

	plugins []Plugin
}

// CoreInit loads the config and establishes the postgres and redis
// connections, retrying with backoff so the process survives its
// dependencies coming up after it.
func CoreInit() (*Core, error) {
	config.AddSource(&config.EnvSource{})
	config.Load()

	node, err := snowflake.NewNode(int64(ConfSnowflakeNode.GetInt()))
	if err != nil {
		return nil, ErrWithCaller(err)
	}

	core := &Core{
		IDNode: node,
	}

	err = core.connectRedis(ConfRedis.GetString())
	if err != nil {
		return nil, ErrWithCaller(err)
	}

	// with redis up, live overrides become visible
	config.AddSource(&config.RedisConfigSource{Pool: core.RedisPool})
	config.Load()

	err = core.connectPQ()
	if err != nil {
		return nil, ErrWithCaller(err)
	}

	return core, nil
}

func (c *Core) connectRedis(addr string) error {
	c.RedisAddr = addr

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = time.Minute

	err := backoff.Retry(func() error {
		pool, err := radix.NewPool("tcp", addr, 10)
		if err != nil {
			logger.WithError(err).Error("failed connecting to redis, retrying...")
			return err
		}

		c.RedisPool = pool
		return nil
	}, bo)

	return err
}

func (c *Core) connectPQ() error {
	passwordPart := ""
	if pw := ConfPQPassword.GetString(); pw != "" {
		passwordPart = " password='" + pw + "'"
	}

	addr := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s%s",
		ConfPQHost.GetString(), ConfPQPort.GetInt(), ConfPQUsername.GetString(),
		ConfPQDB.GetString(), ConfPQSSLMode.GetString(), passwordPart)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = time.Minute

	err := backoff.Retry(func() error {
		db, err := sqlx.Connect("postgres", addr)
		if err != nil {
			logger.WithError(err).Error("failed connecting to postgres, retrying...")
			return err
		}

		db.SetMaxOpenConns(ConfMaxSQLConn.GetInt())
		db.SetMaxIdleConns(ConfMaxSQLConn.GetInt())
		c.PQ = db
		return nil
	}, bo)

	return err
}

// GenID mints a new unique snowflake id.
func (c *Core) GenID() int64 {
	return c.IDNode.Generate().Int64()
}

// OperatorID returns the configured operator user id, 0 when unset.
func (c *Core) OperatorID() int64 {
	return int64(ConfOwner.GetInt())
}
