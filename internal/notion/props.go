package notion

import "time"

// Property builders for the handful of property shapes the bot writes.

// TitleProperty builds a title property value.
func TitleProperty(content string) map[string]interface{} {
	return map[string]interface{}{
		"title": []map[string]interface{}{
			{"type": "text", "text": map[string]interface{}{"content": content}},
		},
	}
}

// RichTextProperty builds a rich_text property value holding one text run.
func RichTextProperty(content string) map[string]interface{} {
	return map[string]interface{}{
		"rich_text": []map[string]interface{}{
			{"type": "text", "text": map[string]interface{}{"content": content}},
		},
	}
}

// SelectProperty builds a single-select property value.
func SelectProperty(name string) map[string]interface{} {
	return map[string]interface{}{
		"select": map[string]interface{}{"name": name},
	}
}

// Extraction helpers for reading pages back. All of them tolerate missing
// or malformed properties and return zero values.

// ID returns the page id.
func (p Page) ID() string {
	id, _ := p["id"].(string)
	return id
}

// URL returns the page's web URL.
func (p Page) URL() string {
	url, _ := p["url"].(string)
	return url
}

// CreatedAt returns the page creation time, zero when absent.
func (p Page) CreatedAt() time.Time {
	s, _ := p["created_time"].(string)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Title extracts the plain text of a title property.
func (p Page) Title(property string) string {
	prop := p.property(property)
	if prop == nil {
		return ""
	}
	arr, _ := prop["title"].([]interface{})
	return firstPlainText(arr)
}

// RichText extracts the plain text of the first run of a rich_text property.
func (p Page) RichText(property string) string {
	prop := p.property(property)
	if prop == nil {
		return ""
	}
	arr, _ := prop["rich_text"].([]interface{})
	return firstPlainText(arr)
}

// Select extracts the selected option name of a select property.
func (p Page) Select(property string) string {
	prop := p.property(property)
	if prop == nil {
		return ""
	}
	sel, _ := prop["select"].(map[string]interface{})
	if sel == nil {
		return ""
	}
	name, _ := sel["name"].(string)
	return name
}

// IconEmoji extracts an emoji page icon.
func (p Page) IconEmoji() string {
	icon, _ := p["icon"].(map[string]interface{})
	if icon == nil {
		return ""
	}
	emoji, _ := icon["emoji"].(string)
	return emoji
}

func (p Page) property(name string) map[string]interface{} {
	props, _ := p["properties"].(map[string]interface{})
	if props == nil {
		return nil
	}
	prop, _ := props[name].(map[string]interface{})
	return prop
}

func firstPlainText(arr []interface{}) string {
	if len(arr) == 0 {
		return ""
	}
	run, _ := arr[0].(map[string]interface{})
	if run == nil {
		return ""
	}
	if plain, ok := run["plain_text"].(string); ok && plain != "" {
		return plain
	}
	// Pages written by this bot carry the content under text.content
	// before Notion renders plain_text.
	text, _ := run["text"].(map[string]interface{})
	if text == nil {
		return ""
	}
	content, _ := text["content"].(string)
	return content
}
