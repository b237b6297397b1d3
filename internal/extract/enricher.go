package extract

import (
	"context"
	"strings"

	"github.com/fillvault/mcp-doc-indexer/internal/store"
)

// Task names one extraction request sent to the completion collaborator.
type Task string

const (
	TaskCleanText        Task = "clean_text"
	TaskExtractEntities  Task = "extract_entities"
	TaskOrganizeFields   Task = "organize_fields"
	TaskBuildSearchIndex Task = "build_search_index"
)

// Completer produces the raw response for one extraction task. It is the
// minimal surface a host implements to plug a completion service in; the
// engine schema-validates every payload before using it.
type Completer interface {
	Complete(ctx context.Context, task Task, text, docName string) ([]byte, error)
}

// completionEnricher adapts a Completer into the Enricher interface. The
// structured tasks run through the response decoders, so a malformed
// payload surfaces as ErrMalformed and degrades like any other
// enrichment failure.
type completionEnricher struct {
	completer Completer
}

// NewEnricher wraps a Completer in schema validation.
func NewEnricher(c Completer) Enricher {
	return &completionEnricher{completer: c}
}

func (e *completionEnricher) CleanText(ctx context.Context, rawText, docName string) (string, error) {
	data, err := e.completer.Complete(ctx, TaskCleanText, rawText, docName)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (e *completionEnricher) ExtractEntities(ctx context.Context, text, docName string) (EntityResult, error) {
	data, err := e.completer.Complete(ctx, TaskExtractEntities, text, docName)
	if err != nil {
		return EntityResult{}, err
	}
	return DecodeEntityResponse(data)
}

func (e *completionEnricher) OrganizeFields(ctx context.Context, text, docName string) ([]store.FieldEntry, error) {
	data, err := e.completer.Complete(ctx, TaskOrganizeFields, text, docName)
	if err != nil {
		return nil, err
	}
	return DecodeFieldResponse(data)
}

func (e *completionEnricher) BuildSearchIndex(ctx context.Context, text string, _ []store.FieldEntry, docName string) (*store.SearchIndexFile, error) {
	data, err := e.completer.Complete(ctx, TaskBuildSearchIndex, text, docName)
	if err != nil {
		return nil, err
	}
	return DecodeSearchIndexResponse(data)
}
