package capture

import (
	"fmt"
	"os/exec"
	"strings"
	"time"

	vnetlink "github.com/vishvananda/netlink"

	"nozyme-tap/internal/logger"
)

// EnsureMonitorMode puts iface into 802.11 monitor mode, trying the
// vishvananda/netlink link-attribute path first and falling back to the iw
// CLI, then airmon-ng. It returns the name of the monitor-mode interface,
// which airmon-ng's fallback path may rename (wlan1 -> wlan1mon).
func EnsureMonitorMode(iface string) (string, error) {
	if already, err := isMonitorMode(iface); err == nil && already {
		logger.Info("%s already in monitor mode", iface)
		return iface, nil
	}

	if err := setMonitorViaNetlink(iface); err == nil {
		logger.Info("%s is now in monitor mode (netlink)", iface)
		return iface, nil
	} else {
		logger.Warn("netlink monitor-mode switch on %s failed: %v", iface, err)
	}

	if monIface, err := setMonitorViaIW(iface); err == nil {
		logger.Info("%s is now in monitor mode (iw)", iface)
		return monIface, nil
	} else {
		logger.Warn("iw monitor-mode switch on %s failed: %v", iface, err)
	}

	if monIface, err := setMonitorViaAirmon(iface); err == nil {
		logger.Info("%s is now in monitor mode (airmon-ng)", iface)
		return monIface, nil
	} else {
		return "", fmt.Errorf("cannot enable monitor mode on %s: install iw+ip or airmon-ng and run as root: %w", iface, err)
	}
}

// isMonitorMode asks iw directly rather than vishvananda/netlink: wiphy
// interface type (managed vs monitor vs AP) is an nl80211 concept with no
// generic rtnetlink link-type equivalent, so iw's own parsing is the
// simplest correct source of truth here.
func isMonitorMode(iface string) (bool, error) {
	out, err := runTimeout(5*time.Second, "iw", "dev", iface, "info")
	if err != nil {
		return false, err
	}
	return strings.Contains(out, "type monitor"), nil
}

// setMonitorViaNetlink mirrors `ip link set <iface> down && iw dev <iface>
// set type monitor && ip link set <iface> up`, but the link type change
// still has to shell out to iw: netlink has no generic nl80211 "set
// interface type" verb exposed through vishvananda/netlink's LinkSetType,
// which only covers link kinds like bridge/vlan, not wiphy interface types.
func setMonitorViaNetlink(iface string) error {
	link, err := vnetlink.LinkByName(iface)
	if err != nil {
		return err
	}
	if err := vnetlink.LinkSetDown(link); err != nil {
		return fmt.Errorf("link down: %w", err)
	}

	cmd := exec.Command("iw", "dev", iface, "set", "type", "monitor")
	if out, err := cmd.CombinedOutput(); err != nil {
		vnetlink.LinkSetUp(link)
		return fmt.Errorf("iw set type monitor: %w (%s)", err, strings.TrimSpace(string(out)))
	}

	if err := vnetlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("link up: %w", err)
	}
	return nil
}

func setMonitorViaIW(iface string) (string, error) {
	if _, err := exec.LookPath("iw"); err != nil {
		return "", err
	}
	if _, err := exec.LookPath("ip"); err != nil {
		return "", err
	}

	releaseFromNetworkManager(iface)

	if out, err := runTimeout(10*time.Second, "ip", "link", "set", iface, "down"); err != nil {
		return "", fmt.Errorf("ip link down: %w (%s)", err, out)
	}
	if out, err := runTimeout(10*time.Second, "iw", "dev", iface, "set", "type", "monitor"); err != nil {
		return "", fmt.Errorf("iw set type monitor: %w (%s)", err, out)
	}
	if out, err := runTimeout(10*time.Second, "ip", "link", "set", iface, "up"); err != nil {
		return "", fmt.Errorf("ip link up: %w (%s)", err, out)
	}
	return iface, nil
}

func setMonitorViaAirmon(iface string) (string, error) {
	if _, err := exec.LookPath("airmon-ng"); err != nil {
		return "", err
	}

	releaseFromNetworkManager(iface)

	out, err := runTimeout(15*time.Second, "airmon-ng", "start", iface)
	if err != nil {
		return "", fmt.Errorf("airmon-ng start: %w (%s)", err, out)
	}

	monIface := iface + "mon"
	if _, err := runTimeout(5*time.Second, "iw", "dev", monIface, "info"); err == nil {
		return monIface, nil
	}
	if info, err := runTimeout(5*time.Second, "iw", "dev", iface, "info"); err == nil && strings.Contains(info, "type monitor") {
		return iface, nil
	}
	return "", fmt.Errorf("airmon-ng did not produce a monitor interface")
}

// releaseFromNetworkManager stops NetworkManager and wpa_supplicant from
// fighting over the interface while it's put into monitor mode. Failures
// here are advisory (the tools may be absent or the services already
// stopped) so they're logged, not returned.
func releaseFromNetworkManager(iface string) {
	if _, err := exec.LookPath("nmcli"); err == nil {
		if out, err := runTimeout(5*time.Second, "nmcli", "device", "set", iface, "managed", "no"); err != nil {
			logger.Debug("nmcli release of %s: %v (%s)", iface, err, out)
		}
	}
	if out, err := runTimeout(5*time.Second, "systemctl", "stop", "wpa_supplicant"); err != nil {
		logger.Debug("stop wpa_supplicant: %v (%s)", err, out)
	}
}

func runTimeout(timeout time.Duration, name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	done := make(chan error, 1)
	var out []byte
	var outErr error
	go func() {
		out, outErr = cmd.CombinedOutput()
		done <- outErr
	}()
	select {
	case err := <-done:
		return strings.TrimSpace(string(out)), err
	case <-time.After(timeout):
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		return "", fmt.Errorf("%s timed out after %s", name, timeout)
	}
}

// Ifindex resolves iface's kernel ifindex via vishvananda/netlink, for use
// as internal/netlink's injected lookup function.
func Ifindex(iface string) (uint32, error) {
	link, err := vnetlink.LinkByName(iface)
	if err != nil {
		return 0, err
	}
	return uint32(link.Attrs().Index), nil
}
