package markdown

import (
	"errors"
	"testing"
)

func TestValidateFences(t *testing.T) {
	cases := []struct {
		name     string
		src      string
		wantLine int
	}{
		{name: "closed backticks", src: "text\n```php\n$a = [];\n```\nmore"},
		{name: "closed tildes", src: "~~~\ncode\n~~~~\n"},
		{name: "longer closing run", src: "````\n```\nstill code\n`````\n"},
		{name: "inline triple backticks are not fences", src: "use ```inline``` here"},
		{name: "indented code is not a fence", src: "    ```\n    code\n"},
		{name: "quote ends fence implicitly", src: "> ```\n> code\n\nafter"},
		{name: "fence inside list item", src: "- item\n\n  ```js\n  let a = 1;\n  ```\n- next"},
		{name: "fence on list marker line", src: "1. ```sh\n   make\n   ```\n"},
		{name: "unterminated", src: "intro\n\n```php\necho 1;\n", wantLine: 3},
		{name: "shorter closer does not close", src: "````\ncode\n```\n", wantLine: 1},
		{name: "tilde not closed by backticks", src: "~~~\ncode\n```\n", wantLine: 1},
		{name: "closer with info string stays open", src: "```\ncode\n``` php\n", wantLine: 1},
		{name: "second fence unterminated", src: "```\na\n```\n\n```go\nb\n", wantLine: 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFences([]byte(tc.src))
			if tc.wantLine == 0 {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			var fenceErr *FenceError
			if !errors.As(err, &fenceErr) {
				t.Fatalf("expected *FenceError, got %v", err)
			}
			if !errors.Is(err, ErrUnterminatedFence) {
				t.Fatalf("expected ErrUnterminatedFence in chain")
			}
			if fenceErr.Fence.Line != tc.wantLine {
				t.Fatalf("expected fence line %d, got %d", tc.wantLine, fenceErr.Fence.Line)
			}
		})
	}
}

func TestFenceScannerReportsLanguage(t *testing.T) {
	var scanner FenceScanner
	if scanner.Next("# Title") {
		t.Fatalf("heading should not be inside a fence")
	}
	if !scanner.Next("```php title=\"Post.php\"") {
		t.Fatalf("opening fence should be reported")
	}
	fence, open := scanner.Open()
	if !open || fence.Language() != "php" || fence.Line != 2 {
		t.Fatalf("unexpected fence %#v open=%v", fence, open)
	}
	if !scanner.Next("# not a heading") {
		t.Fatalf("content line should be inside the fence")
	}
	if !scanner.Next("```") {
		t.Fatalf("closing fence should be reported")
	}
	if _, open := scanner.Open(); open {
		t.Fatalf("fence should be closed")
	}
}
