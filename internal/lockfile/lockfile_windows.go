//go:build windows

package lockfile

import (
	"golang.org/x/sys/windows"
)

// isProcessRunning checks if a process with the given PID is running (Windows)
func isProcessRunning(pid int) (bool, string) {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false, "process not found"
	}
	windows.CloseHandle(handle)
	return true, ""
}
