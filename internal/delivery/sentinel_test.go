package delivery

import "testing"

func TestSentinelCommand(t *testing.T) {
	want := "printf '%s-%s-%s\\n' SPRITE-ACK abc 1"
	if got := sentinelCommand("abc", 1); got != want {
		t.Fatalf("sentinelCommand = %q, want %q", got, want)
	}
	if got := sentinelCommand("abc", 12); got != "printf '%s-%s-%s\\n' SPRITE-ACK abc 12" {
		t.Fatalf("unexpected attempt suffix in %q", got)
	}
}

func TestFindAckIgnoresEchoedCommand(t *testing.T) {
	marker := ackMarker("abc", 1)
	echo := "$ make test\n$ " + sentinelCommand("abc", 1)
	if _, ok := findAck(echo+"\nbuilding...\n", marker); ok {
		t.Fatalf("typed command must not count as acknowledgment")
	}

	line, ok := findAck(echo+"\nok\n"+marker+"\n$ ", marker)
	if !ok || line != marker {
		t.Fatalf("expected marker line, got %q (%v)", line, ok)
	}
}

func TestFindAckMatchesWholeMarker(t *testing.T) {
	if _, ok := findAck(ackMarker("abc", 10), ackMarker("abc", 1)); ok {
		t.Fatalf("attempt 10 marker must not satisfy attempt 1")
	}
	if _, ok := findAck("  "+ackMarker("abc", 2)+"  ", ackMarker("abc", 2)); !ok {
		t.Fatalf("expected padded marker to match")
	}
}

func TestNewTokenIsRandomHex(t *testing.T) {
	first, second := newToken(), newToken()
	if len(first) != 12 || first == second {
		t.Fatalf("unexpected tokens %q %q", first, second)
	}
}

func TestSentinelLineIsNotSwallowedByComment(t *testing.T) {
	command := "echo hi # note"
	if got := runnable(command); got != "echo hi" {
		t.Fatalf("expected comment stripped, got %q", got)
	}
	line := sentinelCommand("abc", 1)
	if runnable(line) != line {
		t.Fatalf("sentinel line %q must survive comment stripping", line)
	}
	if _, ok := findAck("$ "+command+"\nhi\n$ "+line+"\n"+ackMarker("abc", 1)+"\n", ackMarker("abc", 1)); !ok {
		t.Fatalf("expected the marker printed after the commented command to match")
	}
}
