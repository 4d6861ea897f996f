package store

import (
	"context"
	"fmt"

	"memobot/internal/models"
	"memobot/internal/notion"
)

// Notes database property names.
const (
	propTitle    = "Name"
	propCategory = "Category"
	propContent  = "Content"
)

// maxSearchableContent caps the plain-text mirror stored alongside each
// note for substring search. Notion rich_text values cap at 2000 chars.
const maxSearchableContent = 2000

// NotesStore persists user memos in the notes database.
type NotesStore struct {
	client     *notion.Client
	databaseID string
}

// NewNotesStore creates a notes store over the given database.
func NewNotesStore(client *notion.Client, databaseID string) *NotesStore {
	return &NotesStore{client: client, databaseID: databaseID}
}

// CreateNote creates a note page: title, category, a searchable plain-text
// mirror of the body, and the body itself rendered as native blocks.
// Extra blocks (an image, say) are prepended before the body.
func (s *NotesStore) CreateNote(ctx context.Context, title, category, icon, body string, extra []notion.Block) (string, error) {
	searchable := body
	if len(searchable) > maxSearchableContent {
		searchable = searchable[:maxSearchableContent]
	}

	properties := map[string]interface{}{
		propTitle:    notion.TitleProperty(title),
		propCategory: notion.SelectProperty(category),
		propContent:  notion.RichTextProperty(searchable),
	}

	children := append([]notion.Block{}, extra...)
	children = append(children, notion.MarkdownToBlocks(body)...)

	return s.client.CreatePage(ctx, s.databaseID, properties, children, icon)
}

// Latest returns the most recently created notes, newest first.
// Eventually consistent: a note created moments ago may be missing.
func (s *NotesStore) Latest(ctx context.Context, limit int) ([]models.Note, error) {
	pages, err := s.client.QueryDatabase(ctx, s.databaseID, nil, notion.SortNewestFirst(), limit)
	if err != nil {
		return nil, err
	}
	return pagesToNotes(pages), nil
}

// SearchContent finds notes whose plain-text mirror contains the query.
func (s *NotesStore) SearchContent(ctx context.Context, query string, limit int) ([]models.Note, error) {
	filter := map[string]interface{}{
		"property":  propContent,
		"rich_text": map[string]interface{}{"contains": query},
	}
	pages, err := s.client.QueryDatabase(ctx, s.databaseID, filter, nil, limit)
	if err != nil {
		return nil, err
	}
	return pagesToNotes(pages), nil
}

// Note fetches a single note by id through the strongly consistent page path.
func (s *NotesStore) Note(ctx context.Context, noteID string) (*models.Note, error) {
	page, err := s.client.GetPage(ctx, noteID)
	if err != nil {
		return nil, err
	}
	notes := pagesToNotes([]notion.Page{page})
	return &notes[0], nil
}

// Content fetches a note's full body as plain text via the strongly
// consistent block path.
func (s *NotesStore) Content(ctx context.Context, noteID string) (string, error) {
	blocks, err := s.client.GetBlockChildren(ctx, noteID)
	if err != nil {
		return "", err
	}
	return notion.BlocksToPlainText(blocks), nil
}

// Archive soft-deletes a note.
func (s *NotesStore) Archive(ctx context.Context, noteID string) error {
	return s.client.ArchivePage(ctx, noteID)
}

// Rename replaces a note's title.
func (s *NotesStore) Rename(ctx context.Context, noteID, title string) error {
	if title == "" {
		return fmt.Errorf("empty title")
	}
	return s.client.UpdatePageProperties(ctx, noteID, map[string]interface{}{
		propTitle: notion.TitleProperty(title),
	})
}

// AppendText appends formatted text to the end of a note.
func (s *NotesStore) AppendText(ctx context.Context, noteID, text string) error {
	blocks := notion.MarkdownToBlocks(text)
	if len(blocks) == 0 {
		return fmt.Errorf("nothing to append")
	}
	return s.client.AppendBlockChildren(ctx, noteID, blocks)
}

// ReplaceBody deletes the note's existing blocks and writes a new body.
// Used by the append-and-polish path, which rewrites the whole note.
func (s *NotesStore) ReplaceBody(ctx context.Context, noteID, body string) error {
	existing, err := s.client.GetBlockChildren(ctx, noteID)
	if err != nil {
		return err
	}
	for _, block := range existing {
		if id := block.ID(); id != "" {
			if err := s.client.DeleteBlock(ctx, id); err != nil {
				return err
			}
		}
	}
	return s.client.AppendBlockChildren(ctx, noteID, notion.MarkdownToBlocks(body))
}

func pagesToNotes(pages []notion.Page) []models.Note {
	notes := make([]models.Note, 0, len(pages))
	for _, p := range pages {
		notes = append(notes, models.Note{
			ID:        p.ID(),
			Title:     p.Title(propTitle),
			Category:  p.Select(propCategory),
			Icon:      p.IconEmoji(),
			Content:   p.RichText(propContent),
			CreatedAt: p.CreatedAt(),
			URL:       p.URL(),
		})
	}
	return notes
}
