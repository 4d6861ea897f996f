package notion

import (
	"testing"
)

func TestMarkdownToBlocksURLBecomesBookmark(t *testing.T) {
	blocks := MarkdownToBlocks("great read https://example.com/post")
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	if blocks[0].Type() != "bookmark" {
		t.Fatalf("expected bookmark, got %s", blocks[0].Type())
	}

	bookmark := blocks[0]["bookmark"].(map[string]interface{})
	if bookmark["url"] != "https://example.com/post" {
		t.Fatalf("wrong url: %v", bookmark["url"])
	}
	caption := bookmark["caption"].([]map[string]interface{})
	text := caption[0]["text"].(map[string]interface{})
	if text["content"] != "great read" {
		t.Fatalf("wrong caption: %v", text["content"])
	}
}

func TestMarkdownToBlocksBareURLHasNoCaption(t *testing.T) {
	blocks := MarkdownToBlocks("https://example.com")
	bookmark := blocks[0]["bookmark"].(map[string]interface{})
	if _, ok := bookmark["caption"]; ok {
		t.Fatal("bare URL should not carry a caption")
	}
}

func TestMarkdownToBlocksBullets(t *testing.T) {
	blocks := MarkdownToBlocks("- milk\n- eggs\nplain line")
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}
	if blocks[0].Type() != "bulleted_list_item" || blocks[1].Type() != "bulleted_list_item" {
		t.Fatalf("bullets not detected: %s, %s", blocks[0].Type(), blocks[1].Type())
	}
	if blocks[2].Type() != "paragraph" {
		t.Fatalf("expected paragraph, got %s", blocks[2].Type())
	}
	if blocks[0].PlainText() != "milk" {
		t.Fatalf("bullet marker leaked into content: %q", blocks[0].PlainText())
	}
}

func TestMarkdownToBlocksSkipsBlankLines(t *testing.T) {
	blocks := MarkdownToBlocks("one\n\n\ntwo")
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
}

func TestParseInlineBoldAndItalic(t *testing.T) {
	runs := parseInline("a **bold** and *italic* end")
	if len(runs) != 5 {
		t.Fatalf("expected 5 runs, got %d: %v", len(runs), runs)
	}

	check := func(i int, content string, bold, italic bool) {
		t.Helper()
		run := runs[i]
		text := run["text"].(map[string]interface{})
		if text["content"] != content {
			t.Fatalf("run %d content %q, want %q", i, text["content"], content)
		}
		ann := run["annotations"].(map[string]interface{})
		if ann["bold"] != bold || ann["italic"] != italic {
			t.Fatalf("run %d annotations %v, want bold=%v italic=%v", i, ann, bold, italic)
		}
	}
	check(0, "a ", false, false)
	check(1, "bold", true, false)
	check(2, " and ", false, false)
	check(3, "italic", false, true)
	check(4, " end", false, false)
}

func TestBlocksToPlainTextRoundTrip(t *testing.T) {
	blocks := MarkdownToBlocks("hello\n- item")
	got := BlocksToPlainText(blocks)
	if got != "hello\nitem" {
		t.Fatalf("got %q", got)
	}
}

func TestPlainTextPrefersRenderedRuns(t *testing.T) {
	block := Block{
		"type": "paragraph",
		"paragraph": map[string]interface{}{
			"rich_text": []interface{}{
				map[string]interface{}{"plain_text": "rendered"},
			},
		},
	}
	if block.PlainText() != "rendered" {
		t.Fatalf("got %q", block.PlainText())
	}
}

func TestPlainTextIgnoresUnsupportedTypes(t *testing.T) {
	block := Block{"type": "divider"}
	if block.PlainText() != "" {
		t.Fatalf("expected empty, got %q", block.PlainText())
	}
}
