package compose

import (
	"fmt"
	"plugin"
)

// openPlugin loads a Go plugin and returns a factory for its entry point
// symbol. The symbol may be a func() EntryPoint, a
// func() (EntryPoint, error) or a Factory variable.
func openPlugin(path, symbol string) (Factory, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plugin: %w", err)
	}

	sym, err := p.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("lookup symbol: %w", err)
	}

	return pluginFactory(sym)
}

func pluginFactory(sym plugin.Symbol) (Factory, error) {
	switch f := sym.(type) {
	case func() EntryPoint:
		return func() (EntryPoint, error) { return f(), nil }, nil
	case func() (EntryPoint, error):
		return f, nil
	case *Factory:
		if *f == nil {
			return nil, fmt.Errorf("symbol is a nil factory")
		}
		return *f, nil
	default:
		return nil, fmt.Errorf("symbol has type %T, not an entry point constructor", sym)
	}
}
