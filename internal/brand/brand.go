// Package brand provides the daemon's identity constants.
//
// The values are loaded from brand.json at compile time via go:embed so that
// packaging scripts can read the same file.
package brand

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
)

//go:embed brand.json
var brandJSON []byte

// Brand holds all identity information.
type Brand struct {
	Name             string `json:"name"`
	BinaryName       string `json:"binaryName"`
	Description      string `json:"description"`
	ConfigEnvPrefix  string `json:"configEnvPrefix"`
	DefaultConfigDir string `json:"defaultConfigDir"`
	ConfigFileName   string `json:"configFileName"`
	DefaultRunDir    string `json:"defaultRunDir"`
	PrefixFileName   string `json:"prefixFileName"`
	SyslogTag        string `json:"syslogTag"`
	DefaultPort      uint16 `json:"defaultPort"`
}

var b Brand

func init() {
	if err := json.Unmarshal(brandJSON, &b); err != nil {
		panic("failed to parse brand.json: " + err.Error())
	}

	Name = b.Name
	BinaryName = b.BinaryName
	Description = b.Description
	ConfigEnvPrefix = b.ConfigEnvPrefix
	DefaultConfigDir = b.DefaultConfigDir
	ConfigFileName = b.ConfigFileName
	DefaultRunDir = b.DefaultRunDir
	PrefixFileName = b.PrefixFileName
	SyslogTag = b.SyslogTag
	DefaultPort = b.DefaultPort
}

var (
	Name             string
	BinaryName       string
	Description      string
	ConfigEnvPrefix  string
	DefaultConfigDir string
	ConfigFileName   string
	DefaultRunDir    string
	PrefixFileName   string
	SyslogTag        string
	DefaultPort      uint16

	// Version is set at build time via -ldflags
	Version = "dev"
)

// Get returns the full Brand struct
func Get() Brand {
	return b
}

// GetRunDir returns the runtime directory holding the prefix file.
// Priority: DENATD_RUN_DIR > DefaultRunDir
func GetRunDir() string {
	if dir := os.Getenv(ConfigEnvPrefix + "_RUN_DIR"); dir != "" {
		return dir
	}
	return DefaultRunDir
}

// DefaultPrefixFile returns the path the DHCPv6 client hook writes the
// delegated prefix to.
func DefaultPrefixFile() string {
	return filepath.Join(GetRunDir(), PrefixFileName)
}

// DefaultConfigFile returns the optional configuration file path.
// Priority: DENATD_CONFIG_DIR > DefaultConfigDir
func DefaultConfigFile() string {
	dir := DefaultConfigDir
	if env := os.Getenv(ConfigEnvPrefix + "_CONFIG_DIR"); env != "" {
		dir = env
	}
	return filepath.Join(dir, ConfigFileName)
}
