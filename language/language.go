// Package language collects the built-in compiler backends.
package language

import (
	"github.com/caffeineduck/hotrun/executor"
	"github.com/caffeineduck/hotrun/language/javascript"
	"github.com/caffeineduck/hotrun/language/lua"
	"github.com/caffeineduck/hotrun/language/starlark"
)

// All returns a new instance of every built-in backend in tag order.
func All() []executor.Language {
	return []executor.Language{
		javascript.New(),
		lua.New(),
		starlark.New(),
	}
}
