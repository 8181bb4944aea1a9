// Package testutil provides testing utilities for netmon tests: fake
// sampling tools, a fake sudo, and captured nettop output.
package testutil

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/creack/pty"
)

// FakeSudoPassword is the only password FakeSudo accepts.
const FakeSudoPassword = "hunter2"

// NettopHeader is the header line nettop -x prints before every sample.
const NettopHeader = "time,,interface,state,bytes_in,bytes_out,rx_dupe,rx_ooo,re-tx,rtt_avg,rcvsize,tx_win,tc_class,tc_mgt,cc_algo,P,C,R,W,arch,"

// NettopRow formats a process row the way nettop -x does.
func NettopRow(name string, pid int, bytesIn, bytesOut uint64) string {
	return fmt.Sprintf("10:00:00.000000,%s.%d,,,%d,%d,0,0,0,,0,0,,,,,,,,,", name, pid, bytesIn, bytesOut)
}

// NettopConnection formats a connection row belonging to the previous process.
func NettopConnection(local, remote string) string {
	return fmt.Sprintf("10:00:00.000000,tcp4 %s<->%s,en0,Established,10,20,0,0,0,1.00 ms,0,0,BE,-,cubic,,,,,so,", local, remote)
}

// Capture builds nettop output from windows of rows, each preceded by a
// header line.
func Capture(windows ...[]string) string {
	var sb strings.Builder
	for _, rows := range windows {
		sb.WriteString(NettopHeader)
		sb.WriteString("\n")
		for _, r := range rows {
			sb.WriteString(r)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// WriteScript writes an executable shell script into a temp directory and
// returns its path.
func WriteScript(t *testing.T, name, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	content := "#!/bin/sh\n" + body
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0755); err != nil {
		t.Fatalf("failed to write script %s: %v", name, err)
	}
	return path
}

// FakeTool writes a script that prints output, then sleeps for linger
// seconds (0 exits immediately; negative sleeps until killed) and finally
// exits with code.
func FakeTool(t *testing.T, output string, linger, code int) string {
	t.Helper()

	dataPath := filepath.Join(t.TempDir(), "capture.csv")
	if err := os.WriteFile(dataPath, []byte(output), 0644); err != nil {
		t.Fatalf("failed to write capture: %v", err)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "cat %q\n", dataPath)
	switch {
	case linger < 0:
		body.WriteString("while :; do sleep 1; done\n")
	case linger > 0:
		fmt.Fprintf(&body, "sleep %d\n", linger)
	}
	fmt.Fprintf(&body, "exit %d\n", code)
	return WriteScript(t, "fake-nettop", body.String())
}

// FakeSudo writes a stand-in for sudo that understands -S, -v, -p and --.
// It reads one password line from stdin, fails with status 1 unless it
// equals FakeSudoPassword, and otherwise validates or execs the command.
func FakeSudo(t *testing.T) string {
	t.Helper()

	return WriteScript(t, "sudo", fmt.Sprintf(`validate=0
while [ $# -gt 0 ]; do
	case "$1" in
		-S) shift ;;
		-v) validate=1; shift ;;
		-p) shift 2 ;;
		--) shift; break ;;
		*) break ;;
	esac
done
IFS= read -r pw
if [ "$pw" != %q ]; then
	echo "Sorry, try again." >&2
	exit 1
fi
if [ $validate -eq 1 ]; then
	exit 0
fi
exec "$@"
`, FakeSudoPassword))
}

// WriteCapture writes nettop output to a temp file and returns its path.
func WriteCapture(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "nettop.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write capture: %v", err)
	}
	return path
}

// SkipIfNoShell skips the test if /bin/sh is not available.
func SkipIfNoShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
}

// SkipIfNoPty skips the test if a pseudo-terminal cannot be allocated,
// as in some sandboxes and containers.
func SkipIfNoPty(t *testing.T) {
	t.Helper()
	SkipIfNoShell(t)

	master, slave, err := pty.Open()
	if err != nil {
		t.Skipf("pseudo-terminals unavailable: %v", err)
	}
	_ = slave.Close()
	_ = master.Close()
}
