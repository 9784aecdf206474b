package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/fossabot/launcher-2/internal/platform"
)

// Parser evaluates launcher.lua files with platform detection.
type Parser struct {
	detector platform.Detector
}

// NewParser creates a new config parser with the given platform detector.
// A nil detector leaves the platform table undefined.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector}
}

// ParseFile parses the file at path. A missing file yields Default().
func (p *Parser) ParseFile(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	return p.ParseString(ctx, string(data))
}

// ParseString parses a Lua config from a string.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Config, error) {
	L := newSandboxedVM()
	defer L.Close()

	if p.detector != nil {
		info, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, info); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(luaCode); err != nil {
		return nil, &ParseError{
			Message: "Lua syntax error",
			Detail:  err.Error(),
		}
	}

	return extractConfig(L)
}

// ParseError represents a config parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// extractConfig reads the global launcher table over the defaults.
func extractConfig(L *lua.LState) (*Config, error) {
	cfg := Default()

	global := L.GetGlobal(luaGlobalLauncher)
	switch global.Type() {
	case lua.LTNil:
		// A file without a launcher table only runs for its side effects
		return cfg, nil
	case lua.LTTable:
	default:
		return nil, &ParseError{
			Message: "invalid 'launcher' table",
			Detail:  fmt.Sprintf("expected table, got %s", global.Type()),
		}
	}
	table := global.(*lua.LTable)

	r := &reader{}
	r.str(table, luaFieldApp, &cfg.App)
	r.str(table, luaFieldDataDir, &cfg.DataDir)
	r.str(table, luaFieldUserAgent, &cfg.UserAgent)
	r.boolean(table, luaFieldInsecureTLS, &cfg.InsecureTLS)
	r.integer(table, luaFieldChunkSize, &cfg.ChunkSize)
	r.list(table, luaFieldEntryPointArgs, &cfg.Args)

	if log := r.table(table, luaFieldLog); log != nil {
		r.str(log, luaFieldLevel, &cfg.Log.Level)
		r.str(log, luaFieldFormat, &cfg.Log.Format)
	}

	if m := r.table(table, luaFieldManifest); m != nil {
		r.str(m, luaFieldLocalName, &cfg.Manifest.LocalName)
		r.str(m, luaFieldRemoteName, &cfg.Manifest.RemoteName)
		r.str(m, luaFieldKeyring, &cfg.Manifest.Keyring)
		r.boolean(m, luaFieldRequireSig, &cfg.Manifest.RequireSignature)
	}

	if r.err != nil {
		return nil, &ParseError{
			Message: "invalid field type",
			Detail:  r.err.Error(),
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &ParseError{
			Message: "config validation failed",
			Detail:  err.Error(),
		}
	}

	return cfg, nil
}

// reader copies typed fields out of Lua tables, remembering the first
// type mismatch. Nil fields leave the destination untouched.
type reader struct {
	err error
}

func (r *reader) get(t *lua.LTable, key string, want lua.LValueType) (lua.LValue, bool) {
	v := t.RawGetString(key)
	if v.Type() == lua.LTNil || r.err != nil {
		return nil, false
	}
	if v.Type() != want {
		r.err = fmt.Errorf("%s: expected %s, got %s", key, want, v.Type())
		return nil, false
	}
	return v, true
}

func (r *reader) str(t *lua.LTable, key string, dst *string) {
	if v, ok := r.get(t, key, lua.LTString); ok {
		*dst = v.String()
	}
}

func (r *reader) boolean(t *lua.LTable, key string, dst *bool) {
	if v, ok := r.get(t, key, lua.LTBool); ok {
		*dst = bool(v.(lua.LBool))
	}
}

func (r *reader) integer(t *lua.LTable, key string, dst *int) {
	if v, ok := r.get(t, key, lua.LTNumber); ok {
		*dst = int(lua.LVAsNumber(v))
	}
}

func (r *reader) table(t *lua.LTable, key string) *lua.LTable {
	if v, ok := r.get(t, key, lua.LTTable); ok {
		return v.(*lua.LTable)
	}
	return nil
}

// list reads an array of strings, skipping nils left by platform.when.
func (r *reader) list(t *lua.LTable, key string, dst *[]string) {
	arr := r.table(t, key)
	if arr == nil {
		return
	}

	var out []string
	for i := 1; i <= arr.MaxN(); i++ {
		v := arr.RawGetInt(i)
		switch v.Type() {
		case lua.LTNil:
		case lua.LTString:
			out = append(out, v.String())
		default:
			if r.err == nil {
				r.err = fmt.Errorf("%s[%d]: expected string, got %s", key, i, v.Type())
			}
			return
		}
	}
	*dst = out
}

// FormatError formats a ParseError for user display.
// In verbose mode, show the raw Lua error. Otherwise, show friendly message.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
