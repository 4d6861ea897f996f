package notion

import (
	"regexp"
	"strings"
)

var (
	urlPattern    = regexp.MustCompile(`https?://\S+`)
	inlinePattern = regexp.MustCompile(`(\*\*.*?\*\*|\*.*?\*)`)
)

// MarkdownToBlocks converts formatted note text into native blocks. Lines
// containing a URL become bookmark blocks with the rest of the line as the
// caption; "- " lines become bulleted items; everything else becomes a
// paragraph with bold/italic annotations parsed from ** and * markers.
func MarkdownToBlocks(text string) []Block {
	var blocks []Block

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if match := urlPattern.FindString(line); match != "" {
			bookmark := map[string]interface{}{"url": match}
			caption := strings.TrimSpace(strings.Trim(urlPattern.ReplaceAllString(line, ""), " -"))
			if caption != "" {
				bookmark["caption"] = []map[string]interface{}{
					{"type": "text", "text": map[string]interface{}{"content": caption}},
				}
			}
			blocks = append(blocks, Block{
				"object":   "block",
				"type":     "bookmark",
				"bookmark": bookmark,
			})
			continue
		}

		blockType := "paragraph"
		content := line
		if strings.HasPrefix(line, "- ") {
			blockType = "bulleted_list_item"
			content = strings.TrimPrefix(line, "- ")
		}

		richText := parseInline(content)
		if len(richText) == 0 {
			continue
		}
		blocks = append(blocks, Block{
			"object":  "block",
			"type":    blockType,
			blockType: map[string]interface{}{"rich_text": richText},
		})
	}

	return blocks
}

// parseInline splits a line on **bold** and *italic* spans into annotated
// text runs.
func parseInline(line string) []map[string]interface{} {
	var runs []map[string]interface{}
	last := 0
	for _, loc := range inlinePattern.FindAllStringIndex(line, -1) {
		if loc[0] > last {
			runs = append(runs, textRun(line[last:loc[0]], false, false))
		}
		span := line[loc[0]:loc[1]]
		bold := strings.HasPrefix(span, "**") && strings.HasSuffix(span, "**") && len(span) > 4
		var content string
		if bold {
			content = span[2 : len(span)-2]
		} else {
			content = strings.Trim(span, "*")
		}
		runs = append(runs, textRun(content, bold, !bold))
		last = loc[1]
	}
	if last < len(line) {
		runs = append(runs, textRun(line[last:], false, false))
	}
	return runs
}

func textRun(content string, bold, italic bool) map[string]interface{} {
	return map[string]interface{}{
		"type": "text",
		"text": map[string]interface{}{"content": content},
		"annotations": map[string]interface{}{
			"bold":   bold,
			"italic": italic,
		},
	}
}

// ParagraphBlock builds a single plain paragraph block.
func ParagraphBlock(text string) Block {
	return Block{
		"object": "block",
		"type":   "paragraph",
		"paragraph": map[string]interface{}{
			"rich_text": []map[string]interface{}{
				{"type": "text", "text": map[string]interface{}{"content": text}},
			},
		},
	}
}

// CodeBlock builds a code block; the settings page stores its JSON blob in one.
func CodeBlock(content, language string) Block {
	if language == "" {
		language = "plain text"
	}
	return Block{
		"object": "block",
		"type":   "code",
		"code": map[string]interface{}{
			"language": language,
			"rich_text": []map[string]interface{}{
				{"type": "text", "text": map[string]interface{}{"content": content}},
			},
		},
	}
}

// ImageBlock builds an image block referencing an external URL.
func ImageBlock(url string) Block {
	return Block{
		"object": "block",
		"type":   "image",
		"image": map[string]interface{}{
			"type":     "external",
			"external": map[string]interface{}{"url": url},
		},
	}
}

// Type returns the block's type tag.
func (b Block) Type() string {
	t, _ := b["type"].(string)
	return t
}

// ID returns the block id.
func (b Block) ID() string {
	id, _ := b["id"].(string)
	return id
}

// PlainText flattens the block's rich text runs into plain text. Supported
// types: paragraph, bulleted_list_item, headings, code.
func (b Block) PlainText() string {
	t := b.Type()
	switch t {
	case "paragraph", "bulleted_list_item", "heading_1", "heading_2", "heading_3", "code":
	default:
		return ""
	}
	payload, _ := b[t].(map[string]interface{})
	if payload == nil {
		return ""
	}
	// Blocks decoded from API responses hold []interface{}; locally built
	// ones hold []map[string]interface{}.
	var arr []interface{}
	switch v := payload["rich_text"].(type) {
	case []interface{}:
		arr = v
	case []map[string]interface{}:
		for _, run := range v {
			arr = append(arr, run)
		}
	}
	var parts []string
	for _, r := range arr {
		run, _ := r.(map[string]interface{})
		if run == nil {
			continue
		}
		if plain, ok := run["plain_text"].(string); ok && plain != "" {
			parts = append(parts, plain)
			continue
		}
		if text, ok := run["text"].(map[string]interface{}); ok {
			if content, ok := text["content"].(string); ok {
				parts = append(parts, content)
			}
		}
	}
	return strings.Join(parts, "")
}

// BlocksToPlainText flattens page content into newline-joined plain text.
func BlocksToPlainText(blocks []Block) string {
	var lines []string
	for _, b := range blocks {
		if text := b.PlainText(); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}
