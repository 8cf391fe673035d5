// Package gormstore provides a relational AccountProvider implementation
// built on gorm. It persists accounts, backup code hashes, trusted devices,
// and the second-factor attempt log, and is the reference provider used by
// the example server.
package gormstore
