package grablib

import (
	"errors"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Size unit constants for byte conversions.
const (
	// B represents one byte.
	B int64 = 1
	// KB represents one kilobyte (1024 bytes).
	KB = 1024 * B
	// MB represents one megabyte (1024 kilobytes).
	MB = 1024 * KB
	// GB represents one gigabyte (1024 megabytes).
	GB = 1024 * MB
)

// ConfigDirEnv is the environment variable name used to override the
// default configuration directory.
const ConfigDirEnv = "GRAB_CONFIG_DIR"

var (
	// ConfigDir is the absolute path to the grab configuration directory.
	ConfigDir string
	// DownloadsDir is the absolute path to the directory where download
	// data files are written by default.
	DownloadsDir string
	// StateDir is the absolute path to the directory holding one snapshot
	// record per download.
	StateDir string
)

func init() {
	dir := os.Getenv(ConfigDirEnv)
	if dir == "" {
		dir = defaultConfigDir()
	}
	if err := setConfigDir(dir); err != nil {
		panic(err)
	}
}

func defaultConfigDir() string {
	cdr, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	return filepath.Join(cdr, "grab")
}

func setConfigDir(dir string) error {
	if dir == "" {
		return errors.New("config dir is empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return err
	}
	ConfigDir = abs
	DownloadsDir = filepath.Join(abs, "downloads")
	if err := os.MkdirAll(DownloadsDir, 0755); err != nil {
		return err
	}
	StateDir = filepath.Join(abs, "states")
	return os.MkdirAll(StateDir, 0755)
}

// SetConfigDir sets the configuration directory to the specified path.
// It creates the directory and its subdirectories if they do not exist.
func SetConfigDir(dir string) error {
	return setConfigDir(dir)
}

// GetPath joins a directory and file name using the OS-specific path separator.
func GetPath(directory, file string) string {
	return filepath.Join(directory, file)
}

// FileNameFromHeaders derives a save name from a Content-Disposition header
// value and the request URL, falling back to "download" when neither yields
// a usable name.
func FileNameFromHeaders(rawURL, contentDisposition string) string {
	var fn string
	if contentDisposition != "" {
		if _, p, err := mime.ParseMediaType(contentDisposition); err == nil {
			fn = p["filename"]
		}
	}
	if fn == "" {
		if u, err := url.Parse(rawURL); err == nil {
			pa := strings.Split(u.Path, "/")
			fn = pa[len(pa)-1]
		}
	}
	fn = SanitizeFilename(fn)
	if fn == "" {
		fn = "download"
	}
	return fn
}

// SanitizeFilename removes or replaces characters invalid on Windows/Unix
// filesystems. It preserves the file extension and handles URL-encoded
// characters.
func SanitizeFilename(name string) string {
	if name == "" {
		return name
	}
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	invalidChars := []string{"<", ">", ":", "\"", "/", "\\", "|", "?", "*"}
	for _, char := range invalidChars {
		name = strings.ReplaceAll(name, char, "_")
	}
	var result strings.Builder
	for _, r := range name {
		if r >= 32 {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}
