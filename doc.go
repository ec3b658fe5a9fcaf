// Package hotrun compiles and runs small programs in embedded interpreters,
// one run at a time, for fast edit-compile-run loops.
//
// # Overview
//
// A program is JavaScript, Lua or Starlark source that defines a class
// (or table, or struct) with a public zero-argument method. hotrun compiles
// the source in memory, resolves the entry point (Program.Main by default)
// and runs it on a background goroutine. Starting a new run stops the
// previous one first, so at most one program is ever live in a session.
//
// Programs see only the host libraries they reference. console and time
// are referenced by default; kv, http and fs must be enabled and referenced.
//
// # Basic Usage
//
//	s, _ := executor.NewSession(
//	    executor.WithLanguages(language.All()...),
//	    executor.WithOutput(os.Stdout),
//	)
//	defer s.Close()
//
//	h, err := s.Run(ctx, executor.Request{Source: executor.Source{
//	    Name:     "main.lua",
//	    Text:     src,
//	    Language: executor.Lua,
//	}})
//	if err != nil {
//	    // *executor.CompilationError or *executor.EntryPointNotFoundError
//	}
//	err = h.Wait(ctx) // *executor.ExecutionFault if the program failed
//
//	s.Stop() // stop whatever is running
//
// # Enabling Capabilities
//
//	// Key-value store
//	executor.NewSession(executor.WithSessionKV(), executor.WithReferences("console", "kv"))
//
//	// HTTP access
//	executor.WithSessionAllowedHosts([]string{"api.example.com"})
//
//	// Filesystem access
//	executor.WithSessionMount("/data", "./input", hostfunc.MountReadOnly)
//
// See the [executor], [hostfunc], [language] and [diag] packages for detailed
// API documentation, and cmd/hotrun for the command line front end.
package hotrun
