package blob

import "testing"

func TestSourceKeyCandidates(t *testing.T) {
	tests := []struct {
		id   string
		want []string
	}{
		{"abc123", []string{"abc123", "uploads/abc123"}},
		{"uploads/abc123.mp4", []string{"uploads/abc123.mp4"}},
		{"videos/abc/source.mkv", []string{"videos/abc/source.mkv"}},
	}

	for _, tt := range tests {
		got := sourceKeyCandidates(tt.id)
		if len(got) != len(tt.want) {
			t.Errorf("%s: got %v, want %v", tt.id, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%s: candidate %d = %s, want %s", tt.id, i, got[i], tt.want[i])
			}
		}
	}
}

func TestIsRecognizedMedia(t *testing.T) {
	recognized := []string{
		"outputs/j1/segment_000.mp4",
		"outputs/j1/segment_001.MKV",
		"outputs/j1/part.webm",
	}
	for _, key := range recognized {
		if !isRecognizedMedia(key) {
			t.Errorf("%s should be recognized", key)
		}
	}

	ignored := []string{
		"outputs/j1/manifest.json",
		"outputs/j1/progress.txt",
		"outputs/j1/segment_000.mp4.part",
		"outputs/j1/noext",
	}
	for _, key := range ignored {
		if isRecognizedMedia(key) {
			t.Errorf("%s should not be recognized", key)
		}
	}
}
