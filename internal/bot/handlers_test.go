package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"reposter/internal/model"
)

func TestParseWatchArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    WatchArgs
		wantErr bool
	}{
		{name: "channel only", args: "@pylibs", want: WatchArgs{Channel: "@pylibs", IntervalMinutes: 60}},
		{name: "with interval", args: "https://t.me/pylibs 15", want: WatchArgs{Channel: "https://t.me/pylibs", IntervalMinutes: 15}},
		{name: "empty", args: "", wantErr: true},
		{name: "too many args", args: "a 1 2", wantErr: true},
		{name: "zero interval", args: "a 0", wantErr: true},
		{name: "interval too large", args: "a 1441", wantErr: true},
		{name: "non-numeric interval", args: "a often", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWatchArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseWatchArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseIDArg(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    int64
		wantErr bool
	}{
		{name: "valid", args: "42", want: 42},
		{name: "extra args ignored", args: " 7 more", want: 7},
		{name: "empty", args: "  ", wantErr: true},
		{name: "not a number", args: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIDArg(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseIDArg() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseIntervalArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     string
		wantID   int64
		wantMins int
		wantErr  bool
	}{
		{name: "valid", args: "3 30", wantID: 3, wantMins: 30},
		{name: "upper bound", args: "3 1440", wantID: 3, wantMins: 1440},
		{name: "missing minutes", args: "3", wantErr: true},
		{name: "bad id", args: "x 30", wantErr: true},
		{name: "out of range", args: "3 2000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, mins, err := ParseIntervalArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantID, id); diff != "" {
				t.Errorf("id mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantMins, mins); diff != "" {
				t.Errorf("minutes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseKeywordArgs(t *testing.T) {
	tests := []struct {
		name      string
		args      string
		wantID    int64
		wantTerms []string
		wantErr   bool
	}{
		{name: "terms", args: "1 go, rust library ,", wantID: 1, wantTerms: []string{"go", "rust library"}},
		{name: "clear", args: "2", wantID: 2},
		{name: "blank terms clear", args: "2 , ,", wantID: 2},
		{name: "empty", args: "", wantErr: true},
		{name: "bad id", args: "go rust", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, terms, err := ParseKeywordArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantID, id); diff != "" {
				t.Errorf("id mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantTerms, terms); diff != "" {
				t.Errorf("terms mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseTransformArgs(t *testing.T) {
	tests := []struct {
		name       string
		args       string
		wantMsg    int64
		wantPrompt int64
		wantErr    bool
	}{
		{name: "default prompt", args: "5", wantMsg: 5},
		{name: "with prompt", args: "5 2", wantMsg: 5, wantPrompt: 2},
		{name: "empty", args: "", wantErr: true},
		{name: "bad message id", args: "x", wantErr: true},
		{name: "bad prompt id", args: "5 short", wantErr: true},
		{name: "too many args", args: "5 2 1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgID, promptID, err := ParseTransformArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff([2]int64{tt.wantMsg, tt.wantPrompt}, [2]int64{msgID, promptID}); diff != "" {
				t.Errorf("ParseTransformArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParsePublishArgs(t *testing.T) {
	id, channel, err := ParsePublishArgs("3 @mychannel")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(int64(3), id); diff != "" {
		t.Errorf("id mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("@mychannel", channel); diff != "" {
		t.Errorf("channel mismatch (-want +got):\n%s", diff)
	}

	for _, args := range []string{"", "3", "x @mychannel", "3 @a @b"} {
		if _, _, err := ParsePublishArgs(args); err == nil {
			t.Errorf("ParsePublishArgs(%q): expected error, got nil", args)
		}
	}
}

func TestParseEditArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     string
		wantID   int64
		wantText string
		wantErr  bool
	}{
		{name: "single line", args: "3 New text", wantID: 3, wantText: "New text"},
		{name: "multi line", args: "3\nFirst line\n\nSecond line ", wantID: 3, wantText: "First line\n\nSecond line"},
		{name: "missing text", args: "3", wantErr: true},
		{name: "empty", args: "  ", wantErr: true},
		{name: "bad id", args: "x New text", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, text, err := ParseEditArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantID, id); diff != "" {
				t.Errorf("id mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantText, text); diff != "" {
				t.Errorf("text mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatWatchList(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		got := FormatWatchList(nil)
		if !strings.Contains(got, "No watches yet") {
			t.Errorf("FormatWatchList(nil) = %q", got)
		}
	})

	t.Run("watches", func(t *testing.T) {
		watches := []model.Watch{
			{ID: 1, Channel: "pylibs", IntervalMinutes: 15, IsActive: true, Include: []string{"library"}, Exclude: []string{"promo", "ad"}},
			{ID: 2, Channel: "golang", IntervalMinutes: 60},
		}
		want := "Watches:\n" +
			"\n#1 pylibs  (every 15 min) [active]\n" +
			"   1 include, 2 exclude keywords\n" +
			"\n#2 golang  (every 60 min) [paused]\n" +
			"   no keywords\n"
		if diff := cmp.Diff(want, FormatWatchList(watches)); diff != "" {
			t.Errorf("FormatWatchList() mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestFormatWatchInfo(t *testing.T) {
	last := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)
	w := &model.Watch{
		ID:              3,
		Channel:         "pylibs",
		Include:         []string{"library", "httpx"},
		IntervalMinutes: 30,
		IsActive:        true,
		LastCheckAt:     &last,
	}
	want := "#3 pylibs [active]\n" +
		"Interval: every 30 min\n" +
		"Last check: 2025-03-04 10:30 UTC\n" +
		"Include: library, httpx\n" +
		"Exclude: none\n"
	if diff := cmp.Diff(want, FormatWatchInfo(w)); diff != "" {
		t.Errorf("FormatWatchInfo() mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatMessageList(t *testing.T) {
	if got := FormatMessageList(nil); !strings.Contains(got, "No stored messages") {
		t.Errorf("FormatMessageList(nil) = %q", got)
	}

	msgs := []model.Message{
		{ID: 2, Channel: "pylibs", Text: "httpx\nlibrary", Date: time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)},
	}
	want := "Recent messages:\n" +
		"\n#2 [pylibs] 2025-03-04 10:00\n" +
		"httpx library\n" +
		"\nUse /transform <message_id> [prompt_id] to rewrite one."
	if diff := cmp.Diff(want, FormatMessageList(msgs)); diff != "" {
		t.Errorf("FormatMessageList() mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatRewrite(t *testing.T) {
	tests := []struct {
		name string
		rw   model.Rewrite
		want string
	}{
		{
			name: "with image",
			rw:   model.Rewrite{ID: 4, MessageID: 2, Title: "HTTPX", Text: "A modern client.", ImagePath: "data/images/httpx_image.png"},
			want: "Rewrite #4 of message #2\nTitle: HTTPX\nImage: data/images/httpx_image.png\n\nA modern client.\n\nUse /publish 4 <channel> to post it.",
		},
		{
			name: "without image",
			rw:   model.Rewrite{ID: 5, MessageID: 2, Title: "HTTPX", Text: "A modern client."},
			want: "Rewrite #5 of message #2\nTitle: HTTPX\nImage: none\n\nA modern client.\n\nUse /publish 5 <channel> to post it.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, FormatRewrite(&tt.rw)); diff != "" {
				t.Errorf("FormatRewrite() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("я", previewLen+5)
	if diff := cmp.Diff(strings.Repeat("я", previewLen)+"...", preview(long)); diff != "" {
		t.Errorf("preview() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("a b c", preview(" a\n b\tc ")); diff != "" {
		t.Errorf("preview() mismatch (-want +got):\n%s", diff)
	}
}
