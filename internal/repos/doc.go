// Package repos lists the repositories visible to the configured GitHub token and exports the inventory.
package repos
