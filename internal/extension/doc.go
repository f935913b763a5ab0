// Package extension loads, reloads and unloads extensions while the engine
// runs.
//
// An extension is identified by an id and resolved into a Unit by a
// Resolver: Builtins for units compiled into the binary, LuaResolver for
// Lua files on the search paths, and Chain to combine them.
//
// Units may implement any of the lifecycle interfaces:
//
//	Loader    OnLoad(api *API) error
//	Unloader  OnUnload() error
//	Reloader  OnReloadFromPrevious(prev Unit) error
//	io.Closer Close() error
//
// Commands and hook subscriptions made through the API a unit receives in
// OnLoad are attributed to that unit. Unloading removes exactly those
// commands and subscriptions.
//
// # Lua units
//
// A Lua unit is either <path>/<id>.lua or <path>/<id>/init.lua:
//
//	persist.count = persist.count or 0
//
//	function load()
//	  mud.add_command("hello", function(session, args, raw)
//	    persist.count = persist.count + 1
//	    mud.message("hello " .. args.name)
//	  end, "name=world")
//	end
//
//	function reload(previous)
//	  persist.count = previous.count
//	end
//
// Load, Unload and UnloadAll must run on the dispatcher goroutine. The
// Watcher only ever asks for a reload through its trigger callback.
package extension
