package checksum

import (
	"io"
	"strings"
	"testing"
)

func TestTeeMatchesSum(t *testing.T) {
	r, digest := Tee(strings.NewReader("battery manifest"))
	if _, err := io.Copy(io.Discard, r); err != nil {
		t.Fatal(err)
	}
	if got, want := digest(), Sum([]byte("battery manifest")); got != want {
		t.Errorf("digest = %s, want %s", got, want)
	}
}
