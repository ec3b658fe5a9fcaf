// Package hostfunc provides the libraries a compiled unit can reference.
//
// A library is a named bundle of Go functions. Each identifier in a session's
// reference set names one library, and a backend exposes every referenced
// library to script code as a global namespace of callables.
//
// # Overview
//
// Nothing is visible to script code unless it is registered in a [Registry]
// and named by the reference set:
//
//	registry := hostfunc.NewRegistry()
//	registry.Register(hostfunc.ConsoleLibrary())
//	registry.Register(hostfunc.TimeLibrary())
//	registry.Register(hostfunc.Library{
//	    Name: "greet",
//	    Funcs: map[string]hostfunc.Func{
//	        "hello": func(ctx context.Context, args map[string]any) (any, error) {
//	            return "hello", nil
//	        },
//	    },
//	})
//
// # Calling Convention
//
// A script calling a library function with a single map (a JavaScript object,
// a Lua table with string keys, or Starlark keyword arguments) passes that map
// as args. Any other call passes its positional arguments as args[ArgsKey].
// Results are converted with [Normalize] before they reach the script.
//
// # Built-in Libraries
//
// console: log, write and clear against the run's console.
//
// time: now and a cancellable sleep.
//
// kv: a bounded in-memory store shared across runs, via [KV].
//
//	kv := hostfunc.NewKV(hostfunc.DefaultKVConfig())
//	registry.Register(kv.Library())
//
// http: outbound requests limited to allowed hosts, via [HTTP].
//
//	http := hostfunc.NewHTTP(hostfunc.HTTPConfig{
//	    AllowedHosts: []string{"api.example.com"},
//	})
//	registry.Register(http.Library())
//
// fs: access to explicit mounts, via [FS].
//
//	fs := hostfunc.NewFS(hostfunc.Mount{
//	    VirtualPath: "/data",
//	    HostPath:    "./input",
//	    Mode:        hostfunc.MountReadOnly,
//	})
//	registry.Register(fs.Library())
package hostfunc
