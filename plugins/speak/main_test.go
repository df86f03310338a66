package main

import (
	"reflect"
	"testing"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		text string
		want []string
	}{
		{
			name: "defaults",
			opts: Options{Voice: "es", Rate: 150, Volume: 200},
			text: "BUENOS",
			want: []string{"-v", "es", "-s", "150", "-a", "200", "--", "BUENOS"},
		},
		{
			name: "volume clamped",
			opts: Options{Volume: 500},
			text: "A",
			want: []string{"-a", "200", "--", "A"},
		},
		{
			name: "dash text",
			opts: Options{Volume: -1},
			text: "-x",
			want: []string{"--", "-x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildArgs(tt.opts, tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("buildArgs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSpeak_NothingToSay(t *testing.T) {
	if err := speak(Options{Binary: "true"}, Request{Action: "announce"}); err == nil {
		t.Error("speak() with empty text should fail")
	}
}

func TestSpeak_FallsBackToGestureName(t *testing.T) {
	if err := speak(Options{Binary: "true"}, Request{Action: "announce", Gesture: "A"}); err != nil {
		t.Errorf("speak() error = %v", err)
	}
}
