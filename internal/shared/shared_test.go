package shared

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestSlugify(t *testing.T) {
	tc := []struct {
		name string
		in   string
		want string
	}{
		{name: "simple", in: "Getting Started", want: "getting-started"},
		{name: "punctuation runs", in: "  Go -- Web & APIs!  ", want: "go-web-apis"},
		{name: "digits", in: "Module 2: Basics", want: "module-2-basics"},
		{name: "non ascii dropped", in: "Café Menu", want: "caf-menu"},
		{name: "empty", in: "", want: ""},
		{name: "only symbols", in: "!!!", want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{"Go", "web dev", "go", "", "  ", "Web-Dev", "testing"})
	want := []string{"go", "web-dev", "testing"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeTags() = %v, want %v", got, want)
	}

	if got := SplitTags("design, UX ,design"); !reflect.DeepEqual(got, []string{"design", "ux"}) {
		t.Errorf("SplitTags() = %v", got)
	}
}

func TestLogger(t *testing.T) {
	t.Run("NewLogger writes to writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		logger.Info("hello", "key", "value")

		if !strings.Contains(buf.String(), "hello") || !strings.Contains(buf.String(), "key=value") {
			t.Errorf("unexpected log output: %s", buf.String())
		}
	})

	t.Run("ParseLogLevel", func(t *testing.T) {
		if ParseLogLevel("DEBUG") != log.DebugLevel {
			t.Error("expected debug level")
		}
		if ParseLogLevel("nonsense") != log.InfoLevel {
			t.Error("expected info level fallback")
		}
	})
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Error("expected unique IDs")
	}
	if len(a) != 36 {
		t.Errorf("expected uuid string, got %q", a)
	}
}

func TestBrowserCommand(t *testing.T) {
	for _, goos := range []string{"darwin", "linux", "windows"} {
		cmd, err := browserCommand(goos, "http://localhost:3000")
		if err != nil {
			t.Errorf("%s: unexpected error %v", goos, err)
			continue
		}
		if !strings.Contains(strings.Join(cmd.Args, " "), "http://localhost:3000") {
			t.Errorf("%s: url missing from args %v", goos, cmd.Args)
		}
	}

	if _, err := browserCommand("plan9", "http://localhost"); err == nil {
		t.Error("expected error for unsupported platform")
	}
}
