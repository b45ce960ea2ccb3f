// Package system checks that the external binaries the capture pipeline
// shells out to (tshark, iw) are actually present before the main loop
// tries to use them, surfacing an install command per OS when they aren't.
package system

import (
	"bufio"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

type DependencyStatus struct {
	Name           string `json:"name"`
	Installed      bool   `json:"installed"`
	Path           string `json:"path"`
	Version        string `json:"version"`
	InstallCommand string `json:"install_command"`
}

// CheckTshark reports whether the capture helper binary is present and, if
// so, its reported version string. binaryPath overrides the default lookup
// when non-empty (matches config.TsharkPath).
func CheckTshark(binaryPath string) DependencyStatus {
	status := DependencyStatus{
		Name:           "tshark",
		InstallCommand: getTsharkInstallCommand(),
	}

	searchPaths := []string{binaryPath}
	if binaryPath == "" {
		if p, err := exec.LookPath("tshark"); err == nil {
			searchPaths = append(searchPaths, p)
		}
		searchPaths = append(searchPaths, "/usr/bin/tshark", "/usr/local/bin/tshark")
	}

	for _, p := range searchPaths {
		if p == "" {
			continue
		}
		absPath, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if _, err := os.Stat(absPath); err != nil {
			continue
		}
		status.Installed = true
		status.Path = absPath

		cmd := exec.Command(absPath, "--version")
		output, err := cmd.Output()
		if err == nil {
			lines := strings.Split(string(output), "\n")
			if len(lines) > 0 {
				status.Version = strings.TrimSpace(lines[0])
			}
		}
		break
	}

	return status
}

// CheckIW reports whether the `iw` CLI is present. capture/monitor.go shells
// out to it for monitor-mode setup, and internal/netlink's
// SubprocessFallback uses it when the raw netlink driver fails.
func CheckIW() DependencyStatus {
	status := DependencyStatus{Name: "iw"}
	path, err := exec.LookPath("iw")
	if err != nil {
		return status
	}
	status.Installed = true
	status.Path = path
	return status
}

func getTsharkInstallCommand() string {
	switch detectOS() {
	case "debian", "ubuntu":
		return "sudo apt install tshark"
	case "fedora":
		return "sudo dnf install wireshark-cli"
	case "arch":
		return "sudo pacman -S wireshark-cli"
	case "alpine":
		return "sudo apk add tshark"
	default:
		return "# Install tshark (Wireshark CLI) using your package manager"
	}
}

func detectOS() string {
	switch runtime.GOOS {
	case "windows":
		return "windows"
	case "darwin":
		return "darwin"
	}

	if runtime.GOOS != "linux" {
		return runtime.GOOS
	}

	releaseFile := "/etc/os-release"
	file, err := os.Open(releaseFile)
	if err != nil {
		return "linux"
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "ID=") {
			id := strings.TrimPrefix(line, "ID=")
			id = strings.Trim(id, "\"")
			return strings.ToLower(id)
		}
	}

	if _, err := os.Stat("/etc/debian_version"); err == nil {
		return "debian"
	}
	if _, err := os.Stat("/etc/fedora-release"); err == nil {
		return "fedora"
	}
	if _, err := os.Stat("/etc/arch-release"); err == nil {
		return "arch"
	}

	return "linux"
}

func GetOSInfo() string {
	return detectOS()
}
