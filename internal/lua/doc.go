// Package lua wraps gopher-lua for extensions and the script console.
//
// A State owns one gopher-lua interpreter with the standard libraries
// open. Loaded code is trusted: there is no sandbox, instruction limit or
// library filtering.
//
// Values cross the boundary through ToGoValue and ToLuaValue: Lua tables
// with keys 1..n become []any, other tables map[string]any, and Go maps
// (including named map types) become tables.
//
// Eval runs a chunk against an explicit environment table, which is how
// the script console keeps its own locals on top of a unit's globals:
//
//	env := L.NewTable()
//	results, err := state.Eval("return x + 1", "console", env)
package lua
