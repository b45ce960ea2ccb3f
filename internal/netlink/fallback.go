package netlink

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// SubprocessFallback invokes `iw dev <iface> set channel <n>` when the raw
// netlink driver could not be constructed or a request failed. It costs an
// extra process spawn (~50ms) compared to the netlink path, but is otherwise
// functionally identical.
func SubprocessFallback(ctx context.Context, iface string, channelNumber int) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "iw", "dev", iface, "set", "channel", strconv.Itoa(channelNumber))
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("iw set channel %d on %s: %w (%s)", channelNumber, iface, err, string(out))
	}
	return nil
}
