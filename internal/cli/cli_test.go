// ABOUTME: Tests for the narrator command tree
// ABOUTME: Runs subcommands in-process against a local TTS server and virtual output
package cli

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/narrator-go/internal/ttsserver"
	"github.com/harperreed/narrator-go/internal/version"
	"github.com/harperreed/narrator-go/pkg/audio"
	"github.com/harperreed/narrator-go/pkg/audio/wav"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func startTTS(t *testing.T) string {
	t.Helper()

	s := ttsserver.New(ttsserver.Config{CharDuration: time.Millisecond})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestVersionCommand(t *testing.T) {
	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, version.Version) {
		t.Errorf("expected version in output, got %q", out)
	}
}

func TestConfigShow(t *testing.T) {
	out, err := runCmd(t, "config", "show", "--tts-url", "http://tts.local:9000", "--volume", "40")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	for _, want := range []string{"http://tts.local:9000", "Volume: 40", "Address: (disabled)"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	out, err := runCmd(t, "config", "validate")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(out, "Configuration is valid") {
		t.Errorf("unexpected output: %q", out)
	}

	if _, err := runCmd(t, "config", "validate", "--volume", "101"); err == nil {
		t.Error("expected error for volume 101")
	}
}

func TestEstimateWithSample(t *testing.T) {
	out, err := runCmd(t, "estimate", "--sample-bytes", "1000", "--sample-chars", "10", "abcdefghij")
	if err != nil {
		t.Fatalf("estimate failed: %v", err)
	}
	for _, want := range []string{"Characters: 10 in 1 paragraphs", "Ratio: 100.00 bytes/char", "1,000 bytes"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestEstimateSamplesService(t *testing.T) {
	url := startTTS(t)

	out, err := runCmd(t, "estimate", "--tts-url", url, "First paragraph.\n\nSecond paragraph.")
	if err != nil {
		t.Fatalf("estimate failed: %v", err)
	}
	if !strings.Contains(out, "in 2 paragraphs") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "Estimated audio:") {
		t.Errorf("missing estimate:\n%s", out)
	}
}

func TestSpeakNoText(t *testing.T) {
	_, err := runCmd(t, "speak")
	if !errors.Is(err, ErrNoText) {
		t.Errorf("expected ErrNoText, got %v", err)
	}

	_, err = runCmd(t, "speak", "  \n\n  ")
	if !errors.Is(err, ErrNoText) {
		t.Errorf("expected ErrNoText for blank text, got %v", err)
	}
}

func TestSpeakDryRun(t *testing.T) {
	url := startTTS(t)

	out, err := runCmd(t, "speak", "--dry-run", "--tts-url", url, "Hello there.\n\nGeneral Kenobi.")
	if err != nil {
		t.Fatalf("speak failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "done (") {
		t.Errorf("expected a done line:\n%s", out)
	}
	if !strings.Contains(out, "estimated document audio:") {
		t.Errorf("expected an estimate for two paragraphs:\n%s", out)
	}
}

func TestSpeakFromFile(t *testing.T) {
	url := startTTS(t)

	path := filepath.Join(t.TempDir(), "text.txt")
	if err := os.WriteFile(path, []byte("One line of text.\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCmd(t, "speak", "--dry-run", "--tts-url", url, "--file", path)
	if err != nil {
		t.Fatalf("speak failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "done (") {
		t.Errorf("expected a done line:\n%s", out)
	}
}

func TestSpeakSpanSelection(t *testing.T) {
	url := startTTS(t)
	text := "First paragraph.\n\nSecond paragraph.\n\nThird paragraph."

	tests := []struct {
		name    string
		flags   []string
		want    []string
		notWant []string
	}{
		{
			name:    "only the second paragraph",
			flags:   []string{"--only", "2"},
			want:    []string{"(span 2/3)", "done ("},
			notWant: []string{"(span 1/3)", "(span 3/3)"},
		},
		{
			name:    "from the second paragraph",
			flags:   []string{"--from", "2"},
			want:    []string{"(span 2/3)", "(span 3/3)", "done ("},
			notWant: []string{"(span 1/3)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"speak", "--dry-run", "--tts-url", url}, tt.flags...)
			out, err := runCmd(t, append(args, text)...)
			if err != nil {
				t.Fatalf("speak failed: %v\n%s", err, out)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("expected %q in output:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("did not expect %q in output:\n%s", w, out)
				}
			}
		})
	}
}

func TestSpeakSelectionOutOfRange(t *testing.T) {
	out, err := runCmd(t, "speak", "--dry-run", "--only", "4", "One.\n\nTwo.")
	if err == nil || !strings.Contains(err.Error(), "document has 2 paragraphs") {
		t.Errorf("expected a range error, got %v\n%s", err, out)
	}
}

func TestSpanSelection(t *testing.T) {
	tests := []struct {
		name      string
		from      int
		only      int
		total     int
		wantStart int
		wantOnly  bool
		wantErr   bool
	}{
		{name: "default starts at the top", from: 1, total: 3, wantStart: 0},
		{name: "from the last", from: 3, total: 3, wantStart: 2},
		{name: "only the middle", from: 1, only: 2, total: 3, wantStart: 1, wantOnly: true},
		{name: "from past the end", from: 4, total: 3, wantErr: true},
		{name: "from zero", from: 0, total: 3, wantErr: true},
		{name: "only past the end", from: 1, only: 4, total: 3, wantErr: true},
		{name: "only negative", from: 1, only: -1, total: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := spanSelection(tt.from, tt.only, tt.total)
			if (err != nil) != tt.wantErr {
				t.Fatalf("spanSelection() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.start != tt.wantStart || got.only != tt.wantOnly {
				t.Errorf("spanSelection() = start %d only %v, want start %d only %v",
					got.start, got.only, tt.wantStart, tt.wantOnly)
			}
		})
	}
}

func TestPlayDryRun(t *testing.T) {
	format := audio.Format{SampleRate: 8000, Channels: 1, BitDepth: 16}
	pcm := make([]byte, 8000/5*format.FrameSize())

	path := filepath.Join(t.TempDir(), "clip.wav")
	data := append(wav.EncodeHeader(format, uint32(len(pcm))), pcm...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCmd(t, "play", "--dry-run", "--chunk-size", "512", path)
	if err != nil {
		t.Fatalf("play failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "done (") {
		t.Errorf("expected a done line:\n%s", out)
	}
}

func TestPlayMissingFile(t *testing.T) {
	_, err := runCmd(t, "play", "--dry-run", filepath.Join(t.TempDir(), "nope.wav"))
	if err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestReadText(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		file    string
		args    []string
		want    string
		wantErr bool
	}{
		{name: "args", args: []string{"a", "b"}, want: "a b"},
		{name: "stdin", stdin: "from stdin", file: "-", want: "from stdin"},
		{name: "both", file: "-", args: []string{"x"}, wantErr: true},
		{name: "nothing", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readText(strings.NewReader(tt.stdin), tt.file, tt.args)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
