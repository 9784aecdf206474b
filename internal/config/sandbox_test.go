package config

import (
	"testing"
)

func TestSandboxLuaVM(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{"string_allowed", `x = string.upper("hello")`, false},
		{"table_allowed", `t = {1, 2, 3}; table.insert(t, 4)`, false},
		{"math_allowed", `x = math.sqrt(16)`, false},
		{"basic_functions_allowed", `x = type("hello"); y = tostring(123); z = tonumber("456")`, false},
		{"os_execute_blocked", `os.execute("ls")`, true},
		{"os_getenv_blocked", `x = os.getenv("PATH")`, true},
		{"io_open_blocked", `f = io.open("/etc/passwd")`, true},
		{"require_blocked", `require("socket")`, true},
		{"dofile_blocked", `dofile("/etc/passwd")`, true},
		{"loadstring_blocked", `loadstring("return 1")()`, true},
		{"debug_blocked", `debug.getinfo(1)`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			L := newSandboxedVM()
			defer L.Close()

			err := L.DoString(tt.code)
			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
