package utils

import (
	"testing"
	"time"
)

func TestParseRate(t *testing.T) {
	tests := []struct {
		in      string
		want    Rate
		wantErr bool
	}{
		{"", Rate{}, false},
		{"20/1m", Rate{Limit: 20, Window: time.Minute}, false},
		{" 5 / 10s ", Rate{Limit: 5, Window: 10 * time.Second}, false},
		{"100/1h", Rate{Limit: 100, Window: time.Hour}, false},
		{"20", Rate{}, true},
		{"x/1m", Rate{}, true},
		{"0/1m", Rate{}, true},
		{"5/soon", Rate{}, true},
		{"5/500ms", Rate{}, true},
		{"5/1500ms", Rate{}, true},
	}

	for _, tt := range tests {
		got, err := ParseRate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRate(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
