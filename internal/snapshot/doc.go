// Package snapshot persists whole-result cache snapshots either as a JSON file on
// disk or as a single Redis key. Writes replace the previous snapshot atomically.
package snapshot
