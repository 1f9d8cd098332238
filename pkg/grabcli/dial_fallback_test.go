//go:build !windows

package grabcli

import (
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/grabdl/grab/common"
)

// stubDial replaces dialFunc for the duration of the test and records the
// networks attempted.
func stubDial(t *testing.T, fail map[string]bool) *[]string {
	t.Helper()
	orig := dialFunc
	t.Cleanup(func() { dialFunc = orig })

	var attempts []string
	dialFunc = func(network, addr string) (net.Conn, error) {
		attempts = append(attempts, network)
		if fail[network] {
			return nil, errors.New(network + " unavailable")
		}
		c1, c2 := net.Pipe()
		t.Cleanup(func() {
			c1.Close()
			c2.Close()
		})
		return c1, nil
	}
	return &attempts
}

func TestDialPrefersUnixSocket(t *testing.T) {
	attempts := stubDial(t, nil)
	conn, err := dial()
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()
	if len(*attempts) != 1 || (*attempts)[0] != "unix" {
		t.Errorf("attempts = %v, want [unix]", *attempts)
	}
}

func TestDialFallsBackToTCP(t *testing.T) {
	attempts := stubDial(t, map[string]bool{"unix": true})
	conn, err := dial()
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()
	want := []string{"unix", "tcp"}
	if len(*attempts) != 2 || (*attempts)[0] != want[0] || (*attempts)[1] != want[1] {
		t.Errorf("attempts = %v, want %v", *attempts, want)
	}
}

func TestDialForceTCP(t *testing.T) {
	t.Setenv(common.ForceTCPEnv, "1")
	attempts := stubDial(t, nil)
	conn, err := dial()
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()
	if len(*attempts) != 1 || (*attempts)[0] != "tcp" {
		t.Errorf("attempts = %v, want [tcp]", *attempts)
	}
}

func TestDialBothFail(t *testing.T) {
	stubDial(t, map[string]bool{"unix": true, "tcp": true})
	_, err := dial()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "failed to connect") {
		t.Errorf("error = %v", err)
	}
}
