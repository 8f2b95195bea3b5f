package infra

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	defaultDataDirName = ".deepfocus"
	logFileName        = "deepfocus.log"
	pidFileName        = "deepfocus.pid"
)

// Paths holds the on-disk locations used by the daemon.
type Paths struct {
	DataDir string
	DBPath  string
	KeyPath string
	LogPath string
	PIDFile string
}

// ResolvePaths derives all paths from dataDir. An empty dataDir means
// ~/.deepfocus of the invoking user.
func ResolvePaths(dataDir string) Paths {
	if dataDir == "" {
		dataDir = filepath.Join(GetRealUserHome(), defaultDataDirName)
	}
	if strings.HasPrefix(dataDir, "~/") {
		dataDir = filepath.Join(GetRealUserHome(), dataDir[2:])
	}
	return Paths{
		DataDir: dataDir,
		DBPath:  filepath.Join(dataDir, storeDBName),
		KeyPath: filepath.Join(dataDir, keyFileName),
		LogPath: filepath.Join(dataDir, "logs", logFileName),
		PIDFile: filepath.Join(dataDir, pidFileName),
	}
}

// GetRealUserHome returns the real user's home directory, even under sudo.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}

// WritePIDFile records pid at path.
func WritePIDFile(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create pid directory: %w", err)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(pid)), 0600)
}

// ReadPIDFile returns the pid stored at path, or 0 if the file is missing.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid file %s: %w", path, err)
	}
	return pid, nil
}

// RemovePIDFile deletes the pid file if it still names pid.
func RemovePIDFile(path string, pid int) error {
	current, err := ReadPIDFile(path)
	if err != nil || current != pid {
		return err
	}
	return os.Remove(path)
}
