package main

import "testing"

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"preset=quiet", "render_fps=10", "unique=false"})
	if err != nil {
		t.Fatalf("parseParams: %v", err)
	}
	if params["preset"] != "quiet" || params["render_fps"] != float64(10) || params["unique"] != false {
		t.Errorf("Unexpected params %v", params)
	}

	if _, err := parseParams([]string{"render_fps"}); err == nil {
		t.Error("Expected error for missing value")
	}
}
