package hostfunc

import (
	"context"
	"fmt"
	"strings"

	"github.com/caffeineduck/hotrun/console"
)

// Library identifiers known to every session.
const (
	LibConsole = "console"
	LibTime    = "time"
	LibKV      = "kv"
	LibHTTP    = "http"
	LibFS      = "fs"
)

// ConsoleLibrary writes to the console carried by the call context.
//
//	console.log("a", 1)   // a 1
//	console.write("no newline")
//	console.clear()
func ConsoleLibrary() Library {
	return Library{
		Name: LibConsole,
		Funcs: map[string]Func{
			"log":   consoleLog,
			"write": consoleWrite,
			"clear": consoleClear,
		},
	}
}

func consoleLog(ctx context.Context, args map[string]any) (any, error) {
	console.FromContext(ctx).Println(joinArgs(args))
	return nil, nil
}

func consoleWrite(ctx context.Context, args map[string]any) (any, error) {
	console.FromContext(ctx).Print(joinArgs(args))
	return nil, nil
}

func consoleClear(ctx context.Context, args map[string]any) (any, error) {
	console.FromContext(ctx).Clear()
	return nil, nil
}

// joinArgs renders positional arguments separated by spaces. A call with a
// single map prints the map.
func joinArgs(args map[string]any) string {
	list, ok := args[ArgsKey].([]any)
	if !ok {
		if len(args) == 0 {
			return ""
		}
		return formatValue(args)
	}
	parts := make([]string, len(list))
	for i, v := range list {
		parts[i] = formatValue(v)
	}
	return strings.Join(parts, " ")
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprint(x)
	default:
		return fmt.Sprint(x)
	}
}
