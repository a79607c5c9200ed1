// Package metrics records rate-limit, pagination, and cache activity for ghkeeper
// commands in a private Prometheus registry. The registry can be flushed to a
// node_exporter textfile when a command finishes.
package metrics
