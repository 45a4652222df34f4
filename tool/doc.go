// Package tool wires the override engine to the outside world.
//
// The package is split by concern:
//   - customization: the persisted per-server record and store contract
//   - store_*: file, SQLite and in-memory stores
//   - overlay: YAML import/export of a customization
//   - discovery: live tool descriptions over MCP
//   - service: loads engine inputs, opens sessions and commits them
//   - drift: scheduled comparison of catalogs against live servers
//
// The engine itself lives in package override and performs no I/O.
package tool
