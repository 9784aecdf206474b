package config

// Lua schema field names and globals
const (
	luaGlobalLauncher      = "launcher"
	luaFieldApp            = "app"
	luaFieldDataDir        = "data_dir"
	luaFieldUserAgent      = "user_agent"
	luaFieldInsecureTLS    = "insecure_tls"
	luaFieldChunkSize      = "chunk_size"
	luaFieldLog            = "log"
	luaFieldLevel          = "level"
	luaFieldFormat         = "format"
	luaFieldManifest       = "manifest"
	luaFieldLocalName      = "local_name"
	luaFieldRemoteName     = "remote_name"
	luaFieldKeyring        = "keyring"
	luaFieldRequireSig     = "require_signature"
	luaFieldEntryPointArgs = "args"
)

// Defaults applied when a field is absent
const (
	DefaultApp        = "launcher"
	DefaultUserAgent  = "launcher/1.0"
	DefaultChunkSize  = 64 * 1024
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
	DefaultLocalName  = "manifest"
	DefaultRemoteName = "manifest.xml"

	// DefaultFileName is the config file looked up beside the launcher executable
	DefaultFileName = "launcher.lua"
)
