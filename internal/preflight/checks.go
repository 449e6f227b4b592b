package preflight

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// minFreeBytes is the floor for the cache filesystem. The ledger and handle
// cache are small; running this low means the disk is in trouble anyway.
const minFreeBytes uint64 = 64 << 20

// statfs allows tests to stub filesystem stats.
var statfs = realStatfs

// CheckCredential verifies that an API key is present. The key value is never
// echoed into the result.
func CheckCredential(name, envVar, value string) Result {
	if strings.TrimSpace(value) == "" {
		return Result{Name: name, Detail: fmt.Sprintf("set %s in the environment", envVar)}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDiskSpace verifies the filesystem holding path has room for the run
// ledger and handle cache.
func CheckDiskSpace(name, path string) Result {
	total, free, err := statfs(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	detail := fmt.Sprintf("%s (%d MiB free of %d MiB)", path, free>>20, total>>20)
	if free < minFreeBytes {
		return Result{Name: name, Detail: detail + " (error: insufficient space)"}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckBaseURL verifies a backend endpoint is a well-formed absolute http(s) URL.
func CheckBaseURL(name, raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", trimmed, err)}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: scheme must be http or https)", trimmed)}
	}
	if parsed.Host == "" {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: missing host)", trimmed)}
	}
	return Result{Name: name, Passed: true, Detail: trimmed}
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}
