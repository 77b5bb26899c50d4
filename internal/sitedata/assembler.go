package sitedata

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultTabTimeout = 15 * time.Second

// AssemblerConfig tunes snapshot assembly.
type AssemblerConfig struct {
	// TabTimeout bounds each individual tab fetch.
	TabTimeout time.Duration
	// FilterInactive drops inactive rows right after normalization.
	FilterInactive bool
	// FetchTemplates also reads the optional templates tab.
	FetchTemplates bool
}

// Assembler fetches every tab of a spreadsheet and composes a Snapshot.
type Assembler struct {
	fetcher TabFetcher
	clock   Clock
	cfg     AssemblerConfig
	logger  *zap.Logger
}

// NewAssembler builds an Assembler.
func NewAssembler(fetcher TabFetcher, clock Clock, cfg AssemblerConfig, logger *zap.Logger) *Assembler {
	if cfg.TabTimeout <= 0 {
		cfg.TabTimeout = defaultTabTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		fetcher: fetcher,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}
}

// AssembleAll fetches the four required tabs concurrently. Any single failure fails the
// whole assembly and no partial snapshot is returned.
func (a *Assembler) AssembleAll(ctx context.Context, spreadsheetID string) (*Snapshot, error) {
	var templates chan []Template
	if a.cfg.FetchTemplates {
		templates = make(chan []Template, 1)
		go func() {
			templates <- a.fetchTemplates(ctx, spreadsheetID)
		}()
	}

	tables := make([]Table, len(RequiredTabs))
	g, gctx := errgroup.WithContext(ctx)
	for i, tab := range RequiredTabs {
		g.Go(func() error {
			t, err := a.fetch(gctx, spreadsheetID, tab)
			if err != nil {
				return err
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("assemble spreadsheet %s: %w", spreadsheetID, err)
	}

	opts := Options{FilterInactive: a.cfg.FilterInactive}
	snap := &Snapshot{
		Menu:      NormalizeMenu(tables[0].Rows, opts),
		Pages:     NormalizePages(tables[1].Rows, opts),
		Content:   NormalizeContent(tables[2].Rows, opts),
		Settings:  NormalizeSettings(tables[3].Rows),
		FetchedAt: a.clock.Now(),
	}
	if templates != nil {
		snap.Templates = <-templates
	}
	return snap, nil
}

// Validate checks that every required tab can be fetched. Column names are not checked.
func (a *Assembler) Validate(ctx context.Context, spreadsheetID string) ValidationResult {
	failed := make([]error, len(RequiredTabs))
	var wg sync.WaitGroup
	for i, tab := range RequiredTabs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, failed[i] = a.fetch(ctx, spreadsheetID, tab)
		}()
	}
	wg.Wait()

	var missing []TabName
	for i, err := range failed {
		if err == nil {
			continue
		}
		a.logger.Debug("tab not fetchable",
			zap.String("spreadsheet_id", spreadsheetID),
			zap.String("tab", string(RequiredTabs[i])),
			zap.Error(err),
		)
		missing = append(missing, RequiredTabs[i])
	}
	if len(missing) == 0 {
		return ValidationResult{Valid: true}
	}
	return ValidationResult{
		Valid:   false,
		Missing: missing,
		Message: MissingTabsMessage(missing),
	}
}

// MissingTabsMessage renders a user-facing message naming the missing tabs.
func MissingTabsMessage(missing []TabName) string {
	names := make([]string, len(missing))
	for i, t := range missing {
		names[i] = string(t)
	}
	return "spreadsheet is missing the following tabs: " + strings.Join(names, ", ")
}

func (a *Assembler) fetch(ctx context.Context, spreadsheetID string, tab TabName) (Table, error) {
	tabCtx, cancel := context.WithTimeout(ctx, a.cfg.TabTimeout)
	defer cancel()
	t, err := a.fetcher.FetchTab(tabCtx, spreadsheetID, tab)
	if err != nil {
		if _, ok := FailedTab(err); ok {
			return Table{}, err
		}
		return Table{}, &TabError{Tab: tab, Err: err}
	}
	return t, nil
}

func (a *Assembler) fetchTemplates(ctx context.Context, spreadsheetID string) []Template {
	t, err := a.fetch(ctx, spreadsheetID, TabTemplates)
	if err != nil {
		a.logger.Info("templates tab unavailable",
			zap.String("spreadsheet_id", spreadsheetID),
			zap.Error(err),
		)
		return nil
	}
	return NormalizeTemplates(t.Rows)
}
