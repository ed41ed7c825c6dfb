package tools

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// Names of the saved-quote tools.
const (
	SaveQuote      = "save_quote"
	GetSavedQuotes = "get_saved_quotes"
)

// ErrInvalidProject is returned for project names outside [A-Za-z0-9_-].
var ErrInvalidProject = errors.New("project name may only contain letters, digits, underscores and hyphens")

var projectNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ProjectQuoteStore keeps named quotes per project.
type ProjectQuoteStore interface {
	SaveProjectQuote(ctx context.Context, project, content string) (models.SavedQuote, error)
	// ListProjectQuotes returns quotes for project, or all quotes when
	// project is empty, newest first.
	ListProjectQuotes(ctx context.Context, project string) ([]models.SavedQuote, error)
}

// RegisterQuoteTools adds save_quote and get_saved_quotes backed by store.
func RegisterQuoteTools(r *Registry, store ProjectQuoteStore) error {
	if err := r.Register(Tool{
		Name:        SaveQuote,
		Description: "Save a quote under a project name for later reference.",
		Params: []Param{
			{Name: "project_name", Type: "string", Description: "Letters, digits, underscores and hyphens only", Required: true},
			{Name: "quote_details", Type: "string", Description: "Quote content to save", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			var a struct {
				Project string `mapstructure:"project_name"`
				Details string `mapstructure:"quote_details"`
			}
			if err := Decode(args, &a); err != nil {
				return nil, err
			}
			if !projectNamePattern.MatchString(a.Project) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidProject, a.Project)
			}
			if a.Details == "" {
				return nil, fmt.Errorf("%w: quote_details is required", ErrInvalidArgs)
			}
			return store.SaveProjectQuote(ctx, a.Project, a.Details)
		},
	}); err != nil {
		return err
	}

	return r.Register(Tool{
		Name:        GetSavedQuotes,
		Description: "List saved quotes, optionally for one project.",
		Params: []Param{
			{Name: "project_name", Type: "string", Description: "Project to filter by"},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			var a struct {
				Project string `mapstructure:"project_name"`
			}
			if err := Decode(args, &a); err != nil {
				return nil, err
			}
			quotes, err := store.ListProjectQuotes(ctx, a.Project)
			if err != nil {
				return nil, err
			}
			if quotes == nil {
				quotes = []models.SavedQuote{}
			}
			return quotes, nil
		},
	})
}
