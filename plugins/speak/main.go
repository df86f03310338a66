// Package main provides the speech plugin for Signify.
// It reads one announce request as JSON on stdin, speaks the text with
// espeak-ng and writes a JSON response to stdout.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Request represents the input from the speech announcer.
type Request struct {
	Action  string `json:"action"`
	Gesture string `json:"gesture"`
	Text    string `json:"text"`
}

// Response represents the output to the speech announcer.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Options configures the synthesizer.
type Options struct {
	Binary string
	Voice  string
	Rate   int // words per minute
	Volume int // espeak amplitude, 0-200
}

func main() {
	var opts Options
	flag.StringVar(&opts.Binary, "binary", "espeak-ng", "speech synthesizer executable")
	flag.StringVar(&opts.Voice, "voice", "es", "synthesizer voice")
	flag.IntVar(&opts.Rate, "rate", 150, "speaking rate in words per minute")
	flag.IntVar(&opts.Volume, "volume", 200, "amplitude, 0-200")
	flag.Parse()

	// Read request from stdin
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	switch req.Action {
	case "announce":
		if err := speak(opts, req); err != nil {
			writeErrorResponse(fmt.Sprintf("announce %s failed: %v", req.Gesture, err))
			return
		}
	default:
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	writeSuccessResponse()
}

// speak runs the synthesizer for the request text, falling back to the
// gesture name when no text is given.
func speak(opts Options, req Request) error {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		text = strings.TrimSpace(req.Gesture)
	}
	if text == "" {
		return fmt.Errorf("nothing to say")
	}

	out, err := exec.Command(opts.Binary, buildArgs(opts, text)...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// buildArgs returns the espeak-ng arguments for text.
func buildArgs(opts Options, text string) []string {
	args := []string{}
	if opts.Voice != "" {
		args = append(args, "-v", opts.Voice)
	}
	if opts.Rate > 0 {
		args = append(args, "-s", strconv.Itoa(opts.Rate))
	}
	if opts.Volume >= 0 {
		args = append(args, "-a", strconv.Itoa(min(opts.Volume, 200)))
	}
	// "--" keeps text starting with a dash from being read as a flag.
	return append(args, "--", text)
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}
