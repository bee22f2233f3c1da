package system

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/bohica-labs/writescore-installer/internal/utils/logger"
	"github.com/bohica-labs/writescore-installer/internal/utils/shell"
)

var (
	OsReleaseFile = "/etc/os-release"
)

// HostOsInfo describes the machine the installer runs on.
type HostOsInfo struct {
	OS      string `json:"os"` // runtime.GOOS
	Arch    string `json:"arch"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// GetHostOsInfo returns the host OS name, version and machine architecture.
func GetHostOsInfo(ctx context.Context) (HostOsInfo, error) {
	log := logger.Logger()
	info := HostOsInfo{OS: runtime.GOOS, Arch: runtime.GOARCH}

	if output, err := shell.ExecCmdSilent(ctx, shell.Command{Path: "uname", Args: []string{"-m"}}); err == nil {
		if arch := strings.TrimSpace(output); arch != "" {
			info.Arch = arch
		}
	} else {
		log.Debugf("uname -m failed, using GOARCH %s: %v", runtime.GOARCH, err)
	}

	switch runtime.GOOS {
	case "darwin":
		name, err := shell.ExecCmdSilent(ctx, shell.Command{Path: "sw_vers", Args: []string{"-productName"}})
		if err != nil {
			return info, fmt.Errorf("failed to get host OS name: %w", err)
		}
		version, err := shell.ExecCmdSilent(ctx, shell.Command{Path: "sw_vers", Args: []string{"-productVersion"}})
		if err != nil {
			return info, fmt.Errorf("failed to get host OS version: %w", err)
		}
		info.Name = strings.TrimSpace(name)
		info.Version = strings.TrimSpace(version)
	default:
		dist, err := DetectOsDistribution()
		if err != nil {
			return info, fmt.Errorf("failed to detect host OS info: %w", err)
		}
		info.Name = dist.Name
		info.Version = dist.Version
	}

	log.Debugf("Detected OS info: %s %s %s", info.Name, info.Version, info.Arch)
	return info, nil
}

// OsDistribution contains information about the Linux OS distribution
type OsDistribution struct {
	Name            string   // e.g. "Ubuntu"
	Version         string   // e.g. "24.04"
	ID              string   // e.g. "ubuntu"
	IDLike          []string // e.g. ["debian"]
	PackageManagers []string // e.g. ["apt"]
}

// DetectOsDistribution parses /etc/os-release and works out which package
// manager would provide a Python runtime.
func DetectOsDistribution() (*OsDistribution, error) {
	file, err := os.Open(OsReleaseFile)
	if err != nil {
		return nil, fmt.Errorf("file %s not found: %w", OsReleaseFile, err)
	}
	defer file.Close()

	osInfo := &OsDistribution{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.SplitN(scanner.Text(), "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), "\"")

		switch key {
		case "NAME":
			osInfo.Name = value
		case "VERSION_ID":
			osInfo.Version = value
		case "ID":
			osInfo.ID = strings.ToLower(value)
		case "ID_LIKE":
			osInfo.IDLike = strings.Fields(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", OsReleaseFile, err)
	}

	osInfo.PackageManagers = detectPackageManagers(osInfo.ID, osInfo.IDLike)
	return osInfo, nil
}

func detectPackageManagers(id string, idLike []string) []string {
	if mgrs := packageManagersForID(id); len(mgrs) > 0 {
		return mgrs
	}
	for _, likeID := range idLike {
		if mgrs := packageManagersForID(likeID); len(mgrs) > 0 {
			return mgrs
		}
	}
	return detectFromCommands()
}

func packageManagersForID(id string) []string {
	switch strings.ToLower(id) {
	case "ubuntu", "debian", "linuxmint", "pop", "elementary", "kali", "raspbian":
		return []string{"apt"}
	case "fedora", "rhel", "centos", "rocky", "almalinux":
		return []string{"dnf", "yum"}
	case "opensuse", "opensuse-leap", "opensuse-tumbleweed", "sles":
		return []string{"zypper"}
	case "arch", "manjaro", "endeavouros":
		return []string{"pacman"}
	case "alpine":
		return []string{"apk"}
	case "mariner", "azurelinux":
		return []string{"tdnf"}
	default:
		return nil
	}
}

func detectFromCommands() []string {
	for _, cmd := range []string{"brew", "apt", "dnf", "yum", "zypper", "pacman", "apk"} {
		if shell.IsCommandExist(cmd) {
			return []string{cmd}
		}
	}
	return []string{}
}

// RuntimeInstallHint suggests a command that would provide the named Python
// executable (e.g. python3.12 from keg python@3.12) on this host.
func RuntimeInstallHint(kegName, executable string) string {
	if runtime.GOOS == "darwin" || shell.IsCommandExist("brew") {
		return "brew install " + kegName
	}
	dist, err := DetectOsDistribution()
	if err != nil || len(dist.PackageManagers) == 0 {
		return "install " + executable + " and make sure it is on PATH"
	}
	switch dist.PackageManagers[0] {
	case "apt":
		return "sudo apt-get install -y " + executable + " " + executable + "-venv"
	case "dnf", "yum", "tdnf", "zypper":
		return "sudo " + dist.PackageManagers[0] + " install -y " + executable
	case "pacman":
		return "sudo pacman -S python"
	case "apk":
		return "sudo apk add python3"
	default:
		return "install " + executable + " and make sure it is on PATH"
	}
}
