// Package process runs host commands for the device bridge.
//
// A Runner starts a command and returns a Handle immediately. The caller
// decides how long to wait:
//   - Wait with a bounded timeout returns ErrStillRunning when the command
//     has not finished, without killing it
//   - Wait again later to keep waiting, or Kill to treat it as stalled
//   - Result carries the exit code and the captured stdout and stderr
//
// Run is the synchronous form used by the bridge: it kills and reaps a command
// that outlives its timeout, so one stalled call never overlaps the next.
//
// Example usage:
//
//	runner := process.NewExec(logger)
//	res, err := process.Run(runner, 30*time.Second, "adb", "shell", "input")
//	if err != nil {
//	    return err
//	}
//	if !res.Success() {
//	    log.Printf("exit %d: %s", res.ExitCode, res.Stderr)
//	}
package process
