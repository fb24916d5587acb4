// Package output renders tokgate-cli results as tables, JSON, YAML or raw
// response bytes.
package output
