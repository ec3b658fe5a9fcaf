// Package executor compiles source text in memory, resolves a named entry
// point in the result and runs it on a background goroutine that can be
// stopped at any time.
//
// # Overview
//
// A [Session] ties the pieces together. It selects a compiler backend by
// [Tag], compiles against the libraries in its reference set, resolves a
// class and method by exact name and hands the entry point to its [Host].
//
//	s, err := executor.NewSession(executor.WithLanguages(language.All()...))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	h, err := s.Run(ctx, executor.Request{
//	    Source: executor.Source{Name: "main.js", Text: code, Language: executor.JavaScript},
//	})
//	if err != nil {
//	    var ce *executor.CompilationError
//	    if errors.As(err, &ce) {
//	        for _, d := range ce.Diagnostics {
//	            fmt.Println(d)
//	        }
//	    }
//	    return
//	}
//	_ = h.Wait(ctx)
//
// # Execution
//
// The host runs one entry point at a time. Starting a new run stops the
// previous one and waits for it to return before the new handle becomes
// Running. Cancellation is cooperative: each backend watches the run's
// context and aborts the script when it is done. A run that does not return
// within the stop timeout is marked Stopped anyway and its console output is
// discarded from then on.
//
// Errors raised by the script, panics and timeouts end the run with an
// [ExecutionFault] that is stored on the [Handle], logged and passed to the
// optional [FaultHandler]. Stopping a run is never a fault.
//
// # Capabilities
//
// Code only sees the libraries named in the session's reference set. The
// console and time libraries are always registered; others are opt-in:
//
//	s, _ := executor.NewSession(
//	    executor.WithLanguages(language.All()...),
//	    executor.WithSessionAllowedHosts([]string{"api.example.com"}),
//	    executor.WithSessionMount("/data", "./input", executor.MountReadOnly),
//	    executor.WithSessionKV(),
//	)
//	s.AddReference("http")
//
// A referenced library that is not registered fails compilation with a
// REF0001 diagnostic.
//
// # Language Interface
//
// To add a backend, implement [Language] and populate the unit's [Symbols]
// while compiling. See [github.com/caffeineduck/hotrun/language/lua] for an
// example.
package executor
