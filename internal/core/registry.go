package core

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JonMunkholm/startable/internal/startable"
)

// DirectiveHandler post-processes one directive block. The returned blocks
// replace the directive in the parse result: return nil to drop it, or the
// block itself to keep it. An error aborts the parse.
type DirectiveHandler func(ctx context.Context, b startable.Block) ([]startable.Block, error)

var (
	directives   = make(map[string]DirectiveHandler)
	directivesMu sync.RWMutex
)

// RegisterDirective installs the handler for directives named name.
// Panics if a handler for name is already registered.
func RegisterDirective(name string, h DirectiveHandler) {
	directivesMu.Lock()
	defer directivesMu.Unlock()

	if _, exists := directives[name]; exists {
		panic(fmt.Sprintf("directive handler already registered: %s", name))
	}
	directives[name] = h
}

// DirectiveFor returns the handler for directives named name.
// Returns false if none is registered.
func DirectiveFor(name string) (DirectiveHandler, bool) {
	directivesMu.RLock()
	defer directivesMu.RUnlock()

	h, ok := directives[name]
	return h, ok
}

// DirectiveNames returns the names with a registered handler, sorted.
func DirectiveNames() []string {
	directivesMu.RLock()
	defer directivesMu.RUnlock()

	names := make([]string, 0, len(directives))
	for name := range directives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClearDirectives removes all registered handlers.
// Primarily useful for testing.
func ClearDirectives() {
	directivesMu.Lock()
	defer directivesMu.Unlock()
	directives = make(map[string]DirectiveHandler)
}
