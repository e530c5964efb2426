package agent

import (
	"os"

	"golang.org/x/sys/unix"
)

// disableEcho turns off terminal echo on the child side so operator answers
// written to the PTY are not reflected back into the transcript.
func disableEcho(tty *os.File) error {
	fd := int(tty.Fd())
	termios, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return err
	}
	termios.Lflag &^= unix.ECHO | unix.ECHONL
	return unix.IoctlSetTermios(fd, ioctlSetTermios, termios)
}
