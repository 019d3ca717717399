// Package utils provides conversions of loosely typed SQLite column values.
package utils
