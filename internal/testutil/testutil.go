// Package testutil provides shared helpers for unit tests. Redis-backed
// tests run against miniredis and need no external services.
package testutil
