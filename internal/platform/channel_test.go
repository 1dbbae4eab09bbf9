package platform

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestUsername(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		want   string
		wantOK bool
	}{
		{name: "bare", id: "golang_news", want: "golang_news", wantOK: true},
		{name: "at sign", id: "@golang_news", want: "golang_news", wantOK: true},
		{name: "link", id: "https://t.me/golang_news", want: "golang_news", wantOK: true},
		{name: "preview link", id: "https://t.me/s/golang_news/", want: "golang_news", wantOK: true},
		{name: "surrounding space", id: "  @pylibs  ", want: "pylibs", wantOK: true},
		{name: "too short", id: "abc", wantOK: false},
		{name: "starts with digit", id: "1channel", wantOK: false},
		{name: "invalid characters", id: "bad-name!", wantOK: false},
		{name: "empty", id: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Username(tt.id)
			if diff := cmp.Diff(tt.wantOK, ok); diff != "" {
				t.Fatalf("Username() ok mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Username() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
