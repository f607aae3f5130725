package core

import (
	"context"
	"sort"
	"testing"

	"github.com/connect-dcc/datadestruction/pkg/config"
	"github.com/connect-dcc/datadestruction/pkg/errs"
	"github.com/connect-dcc/datadestruction/pkg/service"
	"github.com/connect-dcc/datadestruction/pkg/service/core/api/static"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDestructionAPI keeps the target table's keys in memory and counts
// store round trips.
type fakeDestructionAPI struct {
	projectID string
	rows      map[string]bool
	listCalls int
	delCalls  int
	fail      error
}

func (f *fakeDestructionAPI) ResolveProject(_ context.Context) (string, error) {
	return f.projectID, nil
}

func (f *fakeDestructionAPI) ExistingKeys(_ context.Context, _ string, _ *service.Target, keys []string) ([]string, error) {
	f.listCalls++

	if f.fail != nil {
		return nil, f.fail
	}

	existing := []string{}
	for _, k := range keys {
		if f.rows[k] {
			existing = append(existing, k)
		}
	}

	return existing, nil
}

func (f *fakeDestructionAPI) DeleteRows(_ context.Context, _ string, _ *service.Target, keys []string) error {
	f.delCalls++

	if f.fail != nil {
		return f.fail
	}

	for _, k := range keys {
		delete(f.rows, k)
	}

	return nil
}

func newTestRegistry(t *testing.T) service.TargetRegistry {
	t.Helper()

	registry, err := static.NewTargetRegistry(static.DefaultProtocols())
	require.NoError(t, err)

	return registry
}

func TestDestructionService_DestroyRows(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name           string
		rows           []string
		protocol       string
		connectIDs     []string
		expectDeleted  []string
		expectNotFound []string
		expectKind     errs.Kind
		expectErr      bool
	}{
		{
			name:           "all ids exist",
			rows:           []string{"4806091014", "8576196328", "4800072280"},
			protocol:       "roi_physical_activity",
			connectIDs:     []string{"4806091014", "8576196328", "4800072280"},
			expectDeleted:  []string{"4800072280", "4806091014", "8576196328"},
			expectNotFound: []string{},
		},
		{
			name:           "some ids missing",
			rows:           []string{"3344744505", "3860352953"},
			protocol:       "roi_physical_activity",
			connectIDs:     []string{"3344744505", "3860352953", "0000000000"},
			expectDeleted:  []string{"3344744505", "3860352953"},
			expectNotFound: []string{"0000000000"},
		},
		{
			name:           "no ids exist",
			rows:           []string{},
			protocol:       "roi_physical_activity",
			connectIDs:     []string{"0000000000", "1111111111", "2222222222"},
			expectDeleted:  []string{},
			expectNotFound: []string{"0000000000", "1111111111", "2222222222"},
		},
		{
			name:           "duplicates collapse into one partition",
			rows:           []string{"3344744505"},
			protocol:       "roi_physical_activity",
			connectIDs:     []string{"3344744505", "3344744505", "0000000000", "0000000000"},
			expectDeleted:  []string{"3344744505"},
			expectNotFound: []string{"0000000000"},
		},
		{
			name:       "unsupported protocol",
			rows:       []string{"3344744505"},
			protocol:   "invalid_protocol",
			connectIDs: []string{"3344744505"},
			expectKind: errs.InvalidRequest,
			expectErr:  true,
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			api := &fakeDestructionAPI{
				projectID: "test-project",
				rows:      map[string]bool{},
			}
			for _, id := range tc.rows {
				api.rows[id] = true
			}

			s := NewDestructionService(newTestRegistry(t), api, nil, zerolog.Nop())

			result, err := s.DestroyRows(context.Background(), tc.protocol, tc.connectIDs)
			if tc.expectErr {
				require.Error(t, err)
				assert.True(t, errs.KindIs(tc.expectKind, err))
				assert.Nil(t, result)

				return
			}

			require.NoError(t, err)

			sortStrings := cmpopts.SortSlices(func(a, b string) bool { return a < b })
			assert.Empty(t, cmp.Diff(tc.expectDeleted, result.DeletedIDs, sortStrings))
			assert.Empty(t, cmp.Diff(tc.expectNotFound, result.NotFound, sortStrings))

			// The two partitions stay disjoint and cover the dedup'd request.
			seen := map[string]int{}
			for _, id := range result.DeletedIDs {
				seen[id]++
			}
			for _, id := range result.NotFound {
				seen[id]++
			}
			for id, n := range seen {
				assert.Equalf(t, 1, n, "identifier %s appears in both partitions", id)
			}

			var want []string
			dedup := map[string]bool{}
			for _, id := range tc.connectIDs {
				if !dedup[id] {
					dedup[id] = true
					want = append(want, id)
				}
			}
			got := append(append([]string{}, result.DeletedIDs...), result.NotFound...)
			sort.Strings(want)
			sort.Strings(got)
			assert.Equal(t, want, got)
		})
	}
}

func TestDestructionService_EmptyRequestIsProbe(t *testing.T) {
	t.Parallel()

	api := &fakeDestructionAPI{
		projectID: "test-project",
		rows:      map[string]bool{"4806091014": true},
	}

	s := NewDestructionService(newTestRegistry(t), api, nil, zerolog.Nop())

	result, err := s.DestroyRows(context.Background(), "roi_physical_activity", []string{})
	require.NoError(t, err)

	assert.Empty(t, result.DeletedIDs)
	assert.Empty(t, result.NotFound)
	assert.Zero(t, api.listCalls, "probe must not read the store")
	assert.Zero(t, api.delCalls, "probe must not mutate the store")
}

func TestDestructionService_SkipsDeleteWhenNothingMatches(t *testing.T) {
	t.Parallel()

	api := &fakeDestructionAPI{
		projectID: "test-project",
		rows:      map[string]bool{},
	}

	s := NewDestructionService(newTestRegistry(t), api, nil, zerolog.Nop())

	result, err := s.DestroyRows(context.Background(), "roi_physical_activity", []string{"0000000000"})
	require.NoError(t, err)

	assert.Empty(t, result.DeletedIDs)
	assert.Equal(t, []string{"0000000000"}, result.NotFound)
	assert.Equal(t, 1, api.listCalls)
	assert.Zero(t, api.delCalls, "delete must be skipped when no row matches")
}

func TestDestructionService_Idempotence(t *testing.T) {
	t.Parallel()

	api := &fakeDestructionAPI{
		projectID: "test-project",
		rows:      map[string]bool{"3344744505": true, "3860352953": true},
	}

	s := NewDestructionService(newTestRegistry(t), api, nil, zerolog.Nop())

	first, err := s.DestroyRows(context.Background(), "roi_physical_activity", []string{"3344744505", "3860352953"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"3344744505", "3860352953"}, first.DeletedIDs)
	assert.Empty(t, first.NotFound)

	second, err := s.DestroyRows(context.Background(), "roi_physical_activity", []string{"3344744505", "3860352953"})
	require.NoError(t, err)
	assert.Empty(t, second.DeletedIDs)
	assert.ElementsMatch(t, []string{"3344744505", "3860352953"}, second.NotFound)
}

func TestDestructionService_StoreFailure(t *testing.T) {
	t.Parallel()

	api := &fakeDestructionAPI{
		projectID: "test-project",
		rows:      map[string]bool{"3344744505": true},
		fail:      errs.E(errs.IO, errs.Op("test"), "connection reset"),
	}

	s := NewDestructionService(newTestRegistry(t), api, nil, zerolog.Nop())

	result, err := s.DestroyRows(context.Background(), "roi_physical_activity", []string{"3344744505"})
	require.Error(t, err)
	assert.Nil(t, result, "no partial outcome on store failure")
	assert.True(t, errs.KindIs(errs.IO, err))
}

func TestDestructionService_UnimplementedAction(t *testing.T) {
	t.Parallel()

	registry, err := static.NewTargetRegistry([]config.Protocol{
		{
			Name:      "roi_masked",
			Dataset:   "ForTestingOnly",
			Table:     "physical_activity",
			KeyColumn: "Connect_ID",
			Action:    service.ActionMaskFields.String(),
		},
	})
	require.NoError(t, err)

	s := NewDestructionService(registry, &fakeDestructionAPI{projectID: "p", rows: map[string]bool{}}, nil, zerolog.Nop())

	_, err = s.DestroyRows(context.Background(), "roi_masked", []string{"1"})
	require.Error(t, err)
	assert.True(t, errs.KindIs(errs.Internal, err))
	assert.Equal(t, "Function 'mask_fields' not implemented", err.Error())
}
