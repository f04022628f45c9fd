//go:build windows

package pidfile

import (
	"errors"

	"golang.org/x/sys/windows"
)

// probeProcess checks whether the given pid refers to a live process by
// opening a minimal-rights handle to it.
func probeProcess(pid int) probeResult {
	if pid <= 0 {
		return probeDead
	}

	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
			return probeDenied
		}
		return probeDead
	}
	defer windows.CloseHandle(handle)

	var code uint32
	if err := windows.GetExitCodeProcess(handle, &code); err != nil {
		return probeDenied
	}
	if code == 259 { // STILL_ACTIVE
		return probeAlive
	}
	return probeDead
}
