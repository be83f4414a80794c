// Package config provides configuration loading for resbridge connectors.
//
// # Key Features
//
// - BaseConfig: one structure per connector instance, with connector-specific
// settings kept in Options
// - Startup attributes and notification lists
// - Environment variable substitution with ${VAR_NAME} and ${VAR_NAME:-default}
// - Defaults applied after loading, then validation
//
// # Usage
//
//	cfg, err := config.LoadBaseConfig("connector.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// A minimal file:
//
//	name: orders-db
//	type: sqlquery
//	options:
//	  driver: pgx
//	  dsn: ${ORDERS_DSN}
//	timeouts:
//	  read: 2s
//	attributes:
//	  - id: pending
//	    options:
//	      query: SELECT count(*) FROM orders WHERE state = 'pending'
//
// The CLI binds the same keys through viper, so RESBRIDGE_TIMEOUTS_READ and
// similar environment variables override file values there.
package config
