package sitedata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAssembler(f TabFetcher, cfg AssemblerConfig) *Assembler {
	return NewAssembler(f, &fakeClock{now: time.Unix(1700000000, 0).UTC()}, cfg, zap.NewNop())
}

func TestAssembleAllBuildsSnapshot(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	a := newTestAssembler(f, AssemblerConfig{})

	snap, err := a.AssembleAll(context.Background(), "sheet")
	require.NoError(t, err)
	require.Len(t, snap.Menu, 3)
	require.Equal(t, ID("1"), snap.Menu[0].ID)
	require.Len(t, snap.Pages, 3)
	require.Len(t, snap.Content, 2)
	require.Equal(t, "Demo", snap.Settings["site_name"])
	require.Equal(t, time.Unix(1700000000, 0).UTC(), snap.FetchedAt)
	require.Nil(t, snap.Templates)

	for _, tab := range RequiredTabs {
		require.Equal(t, 1, f.callCount(tab))
	}
	require.Equal(t, 0, f.callCount(TabTemplates))
}

func TestAssembleAllFiltersInactiveWhenConfigured(t *testing.T) {
	t.Parallel()

	a := newTestAssembler(newFakeFetcher(), AssemblerConfig{FilterInactive: true})
	snap, err := a.AssembleAll(context.Background(), "sheet")
	require.NoError(t, err)
	require.Len(t, snap.Menu, 2)
	for _, f := range snap.Menu {
		require.True(t, f.Active)
	}
}

func TestAssembleAllFailsAtomically(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.fail(TabContent, ErrUpstreamUnreachable)
	a := newTestAssembler(f, AssemblerConfig{})

	snap, err := a.AssembleAll(context.Background(), "sheet")
	require.Nil(t, snap)
	require.ErrorIs(t, err, ErrUpstreamUnreachable)

	tab, ok := FailedTab(err)
	require.True(t, ok)
	require.Equal(t, TabContent, tab)
}

func TestAssembleAllWrapsUntaggedErrors(t *testing.T) {
	t.Parallel()

	a := newTestAssembler(untaggedFetcher{err: errors.New("boom")}, AssemblerConfig{})
	_, err := a.AssembleAll(context.Background(), "sheet")
	require.Error(t, err)
	_, ok := FailedTab(err)
	require.True(t, ok)
}

func TestAssembleAllTemplatesAreOptional(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	a := newTestAssembler(f, AssemblerConfig{FetchTemplates: true})

	snap, err := a.AssembleAll(context.Background(), "sheet")
	require.NoError(t, err)
	require.Empty(t, snap.Templates)
	require.Equal(t, 1, f.callCount(TabTemplates))

	f.mu.Lock()
	f.tables[TabTemplates] = Table{Rows: []Row{{"id": 1.0, "name": "landing"}}}
	f.mu.Unlock()

	snap, err = a.AssembleAll(context.Background(), "sheet")
	require.NoError(t, err)
	require.Equal(t, []Template{{ID: "1", Name: "landing"}}, snap.Templates)
}

func TestAssembleAllAppliesTabTimeout(t *testing.T) {
	t.Parallel()

	a := newTestAssembler(blockingFetcher{}, AssemblerConfig{TabTimeout: 20 * time.Millisecond})
	start := time.Now()
	_, err := a.AssembleAll(context.Background(), "sheet")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
}

func TestValidateReportsOnlyMissingTabs(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.remove(TabSettings)
	a := newTestAssembler(f, AssemblerConfig{})

	res := a.Validate(context.Background(), "sheet")
	require.False(t, res.Valid)
	require.Equal(t, []TabName{TabSettings}, res.Missing)
	require.Contains(t, res.Message, "settings")
	for _, other := range []TabName{TabMenu, TabPages, TabContent} {
		require.NotContains(t, res.Message, string(other))
	}
}

func TestValidateListsMissingInCanonicalOrder(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher()
	f.remove(TabSettings)
	f.remove(TabMenu)
	a := newTestAssembler(f, AssemblerConfig{})

	res := a.Validate(context.Background(), "sheet")
	require.False(t, res.Valid)
	require.Equal(t, []TabName{TabMenu, TabSettings}, res.Missing)
	require.Equal(t, "spreadsheet is missing the following tabs: main_menu, settings", res.Message)
}

func TestValidateAllPresent(t *testing.T) {
	t.Parallel()

	res := newTestAssembler(newFakeFetcher(), AssemblerConfig{}).Validate(context.Background(), "sheet")
	require.Equal(t, ValidationResult{Valid: true}, res)
}

type untaggedFetcher struct {
	err error
}

func (u untaggedFetcher) FetchTab(context.Context, string, TabName) (Table, error) {
	return Table{}, u.err
}

type blockingFetcher struct{}

func (blockingFetcher) FetchTab(ctx context.Context, _ string, _ TabName) (Table, error) {
	<-ctx.Done()
	return Table{}, ctx.Err()
}
