// Package dbtest opens a migrated Postgres pool for tests built with the
// integration tag. Set RRC_TEST_DATABASE_URL to run them.
package dbtest
