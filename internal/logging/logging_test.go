package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dnitsch/lambda-url-auth/internal/logging"
)

func Test_New_json_respects_verbosity(t *testing.T) {
	ttests := map[string]struct {
		verbose   bool
		wantDebug bool
	}{
		"quiet":   {false, false},
		"verbose": {true, true},
	}
	for name, tt := range ttests {
		t.Run(name, func(t *testing.T) {
			b := new(bytes.Buffer)
			l := logging.New(logging.Options{Verbose: tt.verbose, Format: logging.FormatJSON, Out: b})
			l.Debug().Msg("debug line")
			l.Info().Str("stage", "exchange").Msg("info line")

			out := b.String()
			if strings.Contains(out, "debug line") != tt.wantDebug {
				t.Errorf("debug output present: %v, wanted %v\n%s", !tt.wantDebug, tt.wantDebug, out)
			}
			lines := strings.Split(strings.TrimSpace(out), "\n")
			last := map[string]any{}
			if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err != nil {
				t.Fatalf("not json: %s", err)
			}
			if last["stage"] != "exchange" {
				t.Errorf("got %v, wanted exchange", last["stage"])
			}
		})
	}
}

func Test_New_console(t *testing.T) {
	b := new(bytes.Buffer)
	l := logging.New(logging.Options{NoColor: true, Out: b})
	l.Info().Msg("hello")
	if !strings.Contains(b.String(), "hello") {
		t.Errorf("got %q, wanted it to contain hello", b.String())
	}
}
