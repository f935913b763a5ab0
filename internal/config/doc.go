// Package config holds the client settings.
//
// Settings are resolved in layers, higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  4. Command Line Flags      │  ← applied by cmd/mudcore
//	├─────────────────────────────┤
//	│  3. Environment Variables   │  ← MUDCORE_*
//	├─────────────────────────────┤
//	│  2. Config File             │  ← config.toml or config.yaml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Default()
//	└─────────────────────────────┘
//
// A config file is picked by extension; a missing file is not an error.
// Environment variables follow MUDCORE_<SECTION>_<SETTING>, so
// MUDCORE_ENGINE_HISTORY_SIZE=50 sets engine.history_size. A few
// shorthands exist, such as MUDCORE_LOG_LEVEL and MUDCORE_CONNECT.
//
// Example config.toml:
//
//	[engine]
//	command_char = "#"
//	timer_interval = "1s"
//
//	[extensions]
//	paths = ["~/mud/extensions"]
//	autoload = ["advanced", "user"]
//	auto_reload = true
//
//	[session]
//	connect = "mud.example.org:4000"
//	encoding = "latin1"
package config
