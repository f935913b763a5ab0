// Package command provides the command table, argument specs and the
// input interpreter.
//
// A Command binds a unique name to a Handler and an optional argument
// Spec. Specs are written as space-separated name[:type][=default]
// entries, for example:
//
//	spec := command.MustParseSpec("unitId reload:boolean=true")
//	args, err := spec.Parse("myext reload=off")
//	// args["unitId"] == "myext", args["reload"] == false
//
// The Interpreter routes a line of input: lines starting with the command
// char ("#" by default) resolve a command by exact name or unique prefix
// and run it; anything else is sent to the session.
package command
