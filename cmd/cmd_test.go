package cmd

import (
	"testing"
	"time"
)

func TestExecuteVersion(t *testing.T) {
	err := Execute([]string{"grab", "version"}, BuildArgs{
		Version:   "0.0.1",
		BuildType: "test",
		Commit:    "abcdef0",
	})
	if err != nil {
		t.Fatalf("Execute(version): %v", err)
	}
}

func TestExecuteListWithoutDaemon(t *testing.T) {
	// Without a daemon the command reports the connection error and exits
	// cleanly instead of failing.
	t.Setenv("GRAB_SOCKET_PATH", t.TempDir()+"/absent.sock")
	t.Setenv("GRAB_TCP_PORT", "1")
	err := Execute([]string{"grab", "list"}, BuildArgs{Version: "0.0.1"})
	if err != nil {
		t.Fatalf("Execute(list): %v", err)
	}
}

func TestHelpTemplatesNotEmpty(t *testing.T) {
	if len(HELP_TEMPL) == 0 || len(CMD_HELP_TEMPL) == 0 {
		t.Fatal("help templates must not be empty")
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.00 KB"},
		{3 * 1024 * 1024, "3.00 MB"},
		{5 * 1024 * 1024 * 1024, "5.00 GB"},
	}
	for _, c := range cases {
		if got := formatBytes(c.n); got != c.want {
			t.Errorf("formatBytes(%d) = %q, want %q", c.n, got, c.want)
		}
	}
}

func TestSpeedCounterAccumulates(t *testing.T) {
	sc := NewSpeedCounter(time.Millisecond * 10)
	defer sc.Stop()
	sc.IncrBy(100)
	sc.IncrBy(50)
	sc.mu.RLock()
	got := sc.bpc
	sc.mu.RUnlock()
	if got != 150 {
		t.Errorf("bpc = %d, want 150", got)
	}
}
