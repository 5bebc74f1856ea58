package device

import (
	"fmt"
	"strings"

	"github.com/smazurov/fbmirror/internal/process"
)

// Bridge is the command channel to one device. *adb.Bridge implements it.
type Bridge interface {
	// Shell runs a command on the device and waits for it to finish.
	Shell(args ...string) (process.Result, error)
	// Host runs a command on the host side.
	Host(name string, args ...string) (process.Result, error)
	// WaitForDevice starts an asynchronous wait for the device to appear.
	WaitForDevice() (process.Handle, error)
}

// shellOK runs a device command and folds transport failures and non-zero
// exits into a BRIDGE_UNAVAILABLE error.
func shellOK(b Bridge, what string, args ...string) (process.Result, error) {
	res, err := b.Shell(args...)
	if err != nil {
		return res, newError(ErrCodeBridgeUnavailable, what+" failed", err)
	}
	if !res.Success() {
		return res, newError(ErrCodeBridgeUnavailable, what+" failed", exitError(res))
	}
	return res, nil
}

func exitError(res process.Result) error {
	msg := strings.TrimSpace(string(res.Stderr))
	if msg == "" {
		return fmt.Errorf("exit code %d", res.ExitCode)
	}
	return fmt.Errorf("exit code %d: %s", res.ExitCode, msg)
}
