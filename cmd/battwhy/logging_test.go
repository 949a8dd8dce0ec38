package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestTopicHandler(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		topics  string
		want    []string
		notWant []string
	}{
		{
			name:    "quiet",
			want:    []string{"plain warning", "history failure"},
			notWant: []string{"cpu detail", "device detail", "plain debug"},
		},
		{
			name:    "one topic",
			topics:  "cpu",
			want:    []string{"plain warning", "cpu detail", "plain debug", "history failure"},
			notWant: []string{"device detail"},
		},
		{
			name:    "verbose",
			verbose: true,
			want:    []string{"plain warning", "cpu detail", "device detail", "history failure"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&buf, tt.verbose, tt.topics)

			logger.Warn("plain warning")
			logger.Debug("plain debug")
			logger.With("topic", "cpu").Debug("cpu detail")
			logger.Debug("device detail", "topic", "devices")

			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Fatalf("output missing %q:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Fatalf("output contains %q:\n%s", w, out)
				}
			}
		})
	}
}
