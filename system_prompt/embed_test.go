package systemprompt

import (
	"os"
	"sort"
	"strings"
	"testing"
)

func TestLoadConcatenatesPromptFiles(t *testing.T) {
	entries, err := os.ReadDir(".")
	if err != nil {
		t.Fatalf("read system_prompt dir: %v", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") || !strings.HasPrefix(entry.Name(), "dispatch") {
			continue
		}
		names = append(names, entry.Name())
	}

	if len(names) < 2 {
		t.Fatal("expected several dispatch .txt files in system_prompt")
	}

	sort.Strings(names)

	var expected strings.Builder
	for idx, name := range names {
		data, err := os.ReadFile(name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		content := string(data)
		expected.WriteString(content)
		if !strings.HasSuffix(content, "\n") {
			expected.WriteString("\n")
		}
		if idx < len(names)-1 {
			expected.WriteString("\n")
		}
	}

	prompt, err := Dispatch()
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	if prompt != expected.String() {
		t.Fatalf("Dispatch() output mismatch")
	}
}

func TestExtractionPromptIsSeparate(t *testing.T) {
	extraction, err := Extraction()
	if err != nil {
		t.Fatalf("Extraction() error: %v", err)
	}
	dispatch, err := Dispatch()
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if strings.Contains(dispatch, extraction) {
		t.Fatal("dispatch prompt should not include the extraction prompt")
	}
}

func TestLoadUnknownPrefix(t *testing.T) {
	if _, err := Load("nonexistent"); err == nil {
		t.Fatal("expected error for unknown prefix")
	}
}
