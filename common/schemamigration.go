package common

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/vielumine/vertigo/common/config"
)

var (
	createTableRegex         = regexp.MustCompile(`(?i)create table if not exists ([0-9a-z_]*) *\(`)
	alterTableAddColumnRegex = regexp.MustCompile(`(?i)alter table ([0-9a-z_]*) add column if not exists ([0-9a-z_]*)`)
	addIndexRegex            = regexp.MustCompile(`(?i)create (unique )?index if not exists ([0-9a-z_]*) on ([0-9a-z_]*)`)
)

var confNoSchemaInit = config.RegisterOption("vertigo.no_schema_init", "Skip schema initialization", false)

// InitSchemas applies the provided schema statements, skipping the ones whose
// table, index or column already exists. A redis lock serializes schema init
// across nodes starting up at the same time.
func (c *Core) InitSchemas(name string, schemas ...string) {
	if err := c.BlockingLockRedisKey("schema_init", time.Minute*10, 60*60); err != nil {
		panic(err)
	}

	defer c.UnlockRedisKey("schema_init")

	for i, v := range schemas {
		actualName := fmt.Sprintf("%s[%d]", name, i)
		c.initSchema(v, actualName)
	}
}

func (c *Core) initSchema(schema string, name string) {
	if confNoSchemaInit.GetBool() {
		return
	}

	skip, err := c.checkSkipSchemaInit(schema, name)
	if err != nil {
		logger.WithError(err).Error("Failed checking if we should skip schema: ", schema)
	}

	if skip {
		return
	}

	logger.Info("Schema initialization: ", name, ": not skipped")

	_, err = c.PQ.Exec(schema)
	if err != nil {
		c.UnlockRedisKey("schema_init")
		logger.WithError(err).Fatal("failed initializing postgres db schema for ", name)
	}
}

func (c *Core) checkSkipSchemaInit(schema string, name string) (exists bool, err error) {
	trimmed := strings.TrimSpace(schema)

	if matches := createTableRegex.FindAllStringSubmatch(trimmed, -1); len(matches) > 0 {
		return c.TableExists(matches[0][1])
	}

	if matches := addIndexRegex.FindAllStringSubmatch(trimmed, -1); len(matches) > 0 {
		return c.checkIndexExists(matches[0][3], matches[0][2])
	}

	if matches := alterTableAddColumnRegex.FindAllStringSubmatch(trimmed, -1); len(matches) > 0 {
		return c.checkColumnExists(matches[0][1], matches[0][2])
	}

	return false, nil
}

func (c *Core) TableExists(table string) (b bool, err error) {
	const query = `
SELECT EXISTS
(
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema = 'public'
	AND table_name = $1
);`

	err = c.PQ.QueryRow(query, table).Scan(&b)
	return b, err
}

func (c *Core) checkIndexExists(table, index string) (b bool, err error) {
	const query = `
SELECT EXISTS
(
	SELECT 1
FROM
    pg_class t,
    pg_class i,
    pg_index ix,
    pg_attribute a
WHERE
    t.oid = ix.indrelid
    AND i.oid = ix.indexrelid
    AND a.attrelid = t.oid
    AND a.attnum = ANY(ix.indkey)
    AND t.relkind = 'r'
    AND t.relname = $1
    AND i.relname = $2
);`

	err = c.PQ.QueryRow(query, table, index).Scan(&b)
	return b, err
}

func (c *Core) checkColumnExists(table, column string) (b bool, err error) {
	const query = `
SELECT EXISTS
(
SELECT 1
FROM information_schema.columns
WHERE table_name=$1 and column_name=$2
);`

	err = c.PQ.QueryRow(query, table, column).Scan(&b)
	return b, err
}
