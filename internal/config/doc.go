// Package config provides the configuration system for relay.
//
// Configuration is organized in layers with higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  4. Command Line Flags      │  ← Highest priority (applied by cmd/relay)
//	├─────────────────────────────┤
//	│  3. Environment Variables   │  ← RELAY_LOG_LEVEL, RELAY_FAILURE_POLICY, ...
//	├─────────────────────────────┤
//	│  2. Config File             │  ← relay.yaml / relay.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// The file format is chosen by extension: .yaml and .yml are YAML, .toml is
// TOML. A missing file is not an error.
//
// # Example
//
//	registry:
//	  failure_policy: isolate
//	  once_mode: self
//	  pattern_removal: equal
//	  listener_timeout: 2s
//	log:
//	  level: debug
//	  encoding: json
//	metrics:
//	  namespace: relay
//	  addr: ":9090"
//	buffer:
//	  limit: 1000
//
// # Live Reload
//
// Watch reloads the file when it changes and hands the new Config to a
// callback. WatchFile is the underlying fsnotify loop and works for any file.
package config
