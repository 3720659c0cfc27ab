package languages

import (
	"errors"
	"testing"

	"github.com/codecollab/execd/internal/config"
	"github.com/codecollab/execd/internal/domain"
)

func testImages() config.ImagesConfig {
	return config.ImagesConfig{
		JavaScript: "node:20-slim",
		Python:     "python:3.11-slim",
		Cpp:        "gcc:13",
		Java:       "eclipse-temurin:21-jdk",
	}
}

func TestRegistryDefaults(t *testing.T) {
	r := NewRegistry(testImages())

	cases := []struct {
		lang       domain.Language
		sourceFile string
		image      string
		compiled   bool
	}{
		{domain.LangJavaScript, "main.js", "node:20-slim", false},
		{domain.LangPython, "main.py", "python:3.11-slim", false},
		{domain.LangCpp, "main.cpp", "gcc:13", true},
		{domain.LangJava, "Main.java", "eclipse-temurin:21-jdk", true},
	}

	for _, tc := range cases {
		rt, err := r.Get(tc.lang)
		if err != nil {
			t.Fatalf("Get(%s): %v", tc.lang, err)
		}
		if rt.Config.SourceFile != tc.sourceFile {
			t.Errorf("%s SourceFile = %q, want %q", tc.lang, rt.Config.SourceFile, tc.sourceFile)
		}
		if rt.Config.Image != tc.image {
			t.Errorf("%s Image = %q, want %q", tc.lang, rt.Config.Image, tc.image)
		}
		if compiled := len(rt.Config.CompileCommand) > 0; compiled != tc.compiled {
			t.Errorf("%s compiled = %v, want %v", tc.lang, compiled, tc.compiled)
		}
		if len(rt.Config.RunCommand) == 0 {
			t.Errorf("%s has no run command", tc.lang)
		}
	}
}

func TestRegistryUnknownLanguage(t *testing.T) {
	r := NewRegistry(testImages())

	_, err := r.Get(domain.Language("ruby"))
	if !errors.Is(err, domain.ErrUnsupportedLanguage) {
		t.Errorf("err = %v, want ErrUnsupportedLanguage", err)
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry(testImages())

	if got := len(r.List()); got != 4 {
		t.Errorf("List len = %d, want 4", got)
	}
}
