package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/docreader/internal/parser"
	"github.com/dgallion1/docreader/internal/reader"
	"github.com/mattn/go-runewidth"
)

const novel = "第一章 开始\n内容太长超过设定的块大小\n第二章 发展\n短\n第三章 结局\n完"

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeNovel(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(novel), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLines(t *testing.T) {
	path := writeNovel(t, "novel.txt")
	out, err := runCLI(t, "lines", path, "--line-size", "5", "--width", "0")
	if err != nil {
		t.Fatalf("lines: %v", err)
	}
	got := strings.Split(strings.TrimRight(out, "\n"), "\n")
	want := []string{
		"0 # 第一章 开始",
		"1   内容太长超",
		"2   过设定的块",
		"3   大小",
		"4 # 第二章 发展",
		"5   短",
		"6 # 第三章 结局",
		"7   完",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(got), out)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLines_Window(t *testing.T) {
	path := writeNovel(t, "novel.txt")
	out, err := runCLI(t, "lines", path, "--line-size", "5", "--from", "4", "--count", "2")
	if err != nil {
		t.Fatalf("lines: %v", err)
	}
	if out != "4 # 第二章 发展\n5   短\n" {
		t.Errorf("unexpected window output %q", out)
	}

	if _, err := runCLI(t, "lines", path, "--from", "99"); !errors.Is(err, reader.ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds, got %v", err)
	}
	if _, err := runCLI(t, "lines", path, "--line-size", "0"); !errors.Is(err, reader.ErrInvalidLineSize) {
		t.Errorf("expected ErrInvalidLineSize, got %v", err)
	}
}

func TestChapters(t *testing.T) {
	path := writeNovel(t, "novel.txt")
	out, err := runCLI(t, "chapters", path, "--line-size", "5", "--width", "0")
	if err != nil {
		t.Fatalf("chapters: %v", err)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 chapters, got:\n%s", out)
	}
	if !strings.Contains(lines[1], "line 4") || !strings.HasSuffix(lines[1], "第二章 发展") {
		t.Errorf("unexpected chapter row %q", lines[1])
	}
	if !strings.Contains(lines[1], "50.0%") {
		t.Errorf("expected chapter two at 50%%, got %q", lines[1])
	}
}

func TestDetect(t *testing.T) {
	path := writeNovel(t, "novel.txt")
	out, err := runCLI(t, "detect", path)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if out != "UTF-8\t1.00\taccepted=true\n" {
		t.Errorf("unexpected detect output %q", out)
	}
}

func TestErrors(t *testing.T) {
	if _, err := runCLI(t, "lines", filepath.Join(t.TempDir(), "missing.txt")); !errors.Is(err, reader.ErrIO) {
		t.Errorf("expected ErrIO, got %v", err)
	}
	if _, err := runCLI(t, "chapters", "book.mobi"); !errors.Is(err, parser.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := runCLI(t, "lines", "x.txt", "--log-level", "loud"); err == nil {
		t.Error("expected error for invalid log level")
	}
}

func TestFit(t *testing.T) {
	if got := fit("1 ", "abc", 0); got != "1 abc" {
		t.Errorf("width 0 should not truncate, got %q", got)
	}
	got := fit("1 ", "第一章第二章第三章", 10)
	if w := runewidth.StringWidth(got); w > 10 {
		t.Errorf("expected at most 10 columns, got %d (%q)", w, got)
	}
	if !strings.HasPrefix(got, "1 第") {
		t.Errorf("expected prefix kept, got %q", got)
	}
}
