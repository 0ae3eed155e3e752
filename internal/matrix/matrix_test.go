package matrix

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillgrid/internal/validator"
)

func fixture() *Matrix {
	m := &Matrix{
		ID:    "trees",
		Title: "Street trees",
		Columns: []Column{
			{ID: "c-species", Title: "Species", Kind: KindText, IsPrimaryKey: true},
			{ID: "c-height", Title: "Mature height", Kind: KindAI, Skill: &SkillConfig{ID: "s1", TemplateID: "mature-height", OutputKind: validator.KindQuantity}},
			{ID: "c-notes", Title: "Notes", Kind: KindText, Hidden: true},
		},
	}
	m, _ = m.AddRow(Row{ID: "r1", EntityName: "Oak", Cells: map[string]Cell{"c-species": {Value: "Quercus robur"}}})
	m, _ = m.AddRow(Row{ID: "r2", Cells: map[string]Cell{"c-species": {Value: "Acer campestre"}}})
	return m
}

func TestAddRow_FillsIdleCells(t *testing.T) {
	m := fixture()
	c := m.Cell("r1", "c-height")
	assert.Equal(t, StatusIdle, c.Status)
	assert.Equal(t, "c-height", c.ColumnID)
	assert.True(t, c.IsEmpty())

	_, err := m.AddRow(Row{ID: "r1"})
	assert.ErrorIs(t, err, ErrDuplicateRow)
}

func TestWithCell_CopyOnWrite(t *testing.T) {
	m := fixture()
	next, err := m.WithCell("r1", "c-height", Cell{Value: "25 m", Status: StatusSuccess})
	require.NoError(t, err)

	assert.True(t, m.Cell("r1", "c-height").IsEmpty(), "original must be untouched")
	assert.Equal(t, "25 m", next.Cell("r1", "c-height").Value)

	// untouched rows share storage, touched rows do not
	next.Rows[1].Cells["marker"] = Cell{}
	_, shared := m.Rows[1].Cells["marker"]
	assert.True(t, shared)
	delete(next.Rows[1].Cells, "marker")

	_, err = m.WithCell("nope", "c-height", Cell{})
	assert.ErrorIs(t, err, ErrRowNotFound)
	_, err = m.WithCell("r1", "nope", Cell{})
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestWithCells_SkipsUnknown(t *testing.T) {
	m := fixture()
	next, skipped := m.WithCells([]CellUpdate{
		{RowID: "r1", ColumnID: "c-height", Cell: Cell{Value: "25 m", Status: StatusSuccess}},
		{RowID: "r1", ColumnID: "c-notes", Cell: Cell{Value: "street"}},
		{RowID: "ghost", ColumnID: "c-height", Cell: Cell{}},
	})
	assert.Equal(t, 1, skipped)
	assert.Equal(t, "25 m", next.Cell("r1", "c-height").Value)
	assert.Equal(t, StatusIdle, next.Cell("r1", "c-notes").Status)
	assert.True(t, m.Cell("r1", "c-notes").IsEmpty())

	same, n := m.WithCells(nil)
	assert.Same(t, m, same)
	assert.Zero(t, n)
}

func TestEditCell_ClearsDerivedState(t *testing.T) {
	m := fixture()
	m, err := m.WithCell("r1", "c-height", Cell{
		Value:        "25 m",
		Status:       StatusSuccess,
		DisplayValue: "25 m",
		Reasoning:    "typical",
		Normalized:   validator.Quantity{Value: 25, Unit: "m"},
		Provenance:   &Provenance{TemplateID: "mature-height"},
		RunID:        "run-1",
	})
	require.NoError(t, err)

	edited, err := m.EditCell("r1", "c-height", "30 m")
	require.NoError(t, err)

	want := Cell{ColumnID: "c-height", Value: "30 m", Status: StatusIdle}
	if diff := cmp.Diff(want, edited.Cell("r1", "c-height")); diff != "" {
		t.Errorf("edited cell mismatch (-want +got):\n%s", diff)
	}
}

func TestColumnOps(t *testing.T) {
	m := fixture()

	m2, err := m.AddColumn(Column{ID: "c-cost", Title: "Cost", Kind: KindAI})
	require.NoError(t, err)
	assert.Len(t, m2.Columns, 4)
	assert.Equal(t, StatusIdle, m2.Rows[0].Cells["c-cost"].Status)
	assert.Len(t, m.Columns, 3)

	_, err = m2.AddColumn(Column{ID: "c-cost"})
	assert.ErrorIs(t, err, ErrDuplicateColumn)

	m3, err := m2.UpdateColumn(Column{ID: "c-cost", Title: "Annual cost", Kind: KindAI})
	require.NoError(t, err)
	col, ok := m3.ColumnByTitle("  annual COST ")
	require.True(t, ok)
	assert.Equal(t, "c-cost", col.ID)

	m4, err := m3.RemoveColumn("c-cost")
	require.NoError(t, err)
	_, ok = m4.Column("c-cost")
	assert.False(t, ok)
	_, ok = m4.Rows[0].Cells["c-cost"]
	assert.False(t, ok)
	_, ok = m3.Rows[0].Cells["c-cost"]
	assert.True(t, ok)

	_, err = m.RemoveColumn("missing")
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestRowOpsAndLookups(t *testing.T) {
	m := fixture()
	pk, ok := m.PrimaryKey()
	require.True(t, ok)
	assert.Equal(t, "c-species", pk.ID)
	assert.Len(t, m.VisibleColumns(), 2)

	m2, err := m.RemoveRow("r1")
	require.NoError(t, err)
	assert.Len(t, m2.Rows, 1)
	assert.Len(t, m.Rows, 2)
	_, err = m2.RemoveRow("r1")
	assert.ErrorIs(t, err, ErrRowNotFound)
}

func TestRowLabel(t *testing.T) {
	m := fixture()
	assert.Equal(t, "Oak", m.RowLabel(m.Rows[0]))
	assert.Equal(t, "Acer campestre", m.RowLabel(m.Rows[1]))

	blank, err := m.AddRow(Row{ID: "r3", EntityName: "   ", Cells: map[string]Cell{"c-species": {Value: "  "}}})
	require.NoError(t, err)
	assert.Equal(t, "r3", blank.RowLabel(blank.Rows[2]))

	padded, err := m.AddRow(Row{ID: "r4", EntityName: "  Lime  "})
	require.NoError(t, err)
	assert.Equal(t, "Lime", padded.RowLabel(padded.Rows[2]))
}

func TestClone_IsDeep(t *testing.T) {
	m := fixture()
	c := m.Clone()
	if diff := cmp.Diff(m, c); diff != "" {
		t.Fatalf("clone differs:\n%s", diff)
	}
	c.Rows[0].Cells["c-species"] = Cell{Value: "changed"}
	c.Columns[1].Skill.TemplateID = "other"
	assert.Equal(t, "Quercus robur", m.Cell("r1", "c-species").Value)
	assert.Equal(t, "mature-height", m.Columns[1].Skill.TemplateID)
}

func TestCellHelpers(t *testing.T) {
	c := Cell{ColumnID: "x", Value: "", DisplayValue: "Fast", Status: StatusSuccess}
	assert.False(t, c.IsEmpty())
	assert.Equal(t, "Fast", c.Text())

	l := c.Loading("run-9")
	assert.Equal(t, StatusLoading, l.Status)
	assert.Equal(t, "run-9", l.RunID)
	assert.Equal(t, "Fast", l.DisplayValue)
	assert.Equal(t, StatusSuccess, c.Status)
}

func TestHolder_ApplyPublishesInOrder(t *testing.T) {
	h := NewHolder(fixture())
	var mu sync.Mutex
	var seen []string
	h.Subscribe(func(m *Matrix) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, m.Cell("r1", "c-notes").Value)
	})

	for _, v := range []string{"a", "b", "c"} {
		_, err := h.Apply(func(m *Matrix) (*Matrix, error) { return m.EditCell("r1", "c-notes", v) })
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a", "b", "c"}, seen)

	before := h.Current()
	boom := errors.New("boom")
	got, err := h.Apply(func(m *Matrix) (*Matrix, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Same(t, before, got)
	assert.Len(t, seen, 3)

	// returning the same snapshot publishes nothing
	_, _ = h.Apply(func(m *Matrix) (*Matrix, error) { return m, nil })
	assert.Len(t, seen, 3)
}

func TestHolder_ConcurrentApplyLosesNothing(t *testing.T) {
	h := NewHolder(fixture())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = h.Apply(func(m *Matrix) (*Matrix, error) {
				return m.AddColumn(Column{ID: "extra-" + string(rune('A'+i%26)) + string(rune('a'+i/26))})
			})
		}(i)
	}
	wg.Wait()
	assert.Len(t, h.Current().Columns, 53)
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "matrices"))
	require.NoError(t, err)

	for name, s := range map[string]Store{"memory": NewInMemoryStore(), "file": fs} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "trees")
			assert.ErrorIs(t, err, ErrNotFound)

			m := fixture()
			require.NoError(t, s.Save(ctx, m))

			got, err := s.Get(ctx, "trees")
			require.NoError(t, err)
			assert.Equal(t, "Quercus robur", got.Cell("r1", "c-species").Value)
			assert.Equal(t, StatusIdle, got.Cell("r2", "c-height").Status)

			list, err := s.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []Summary{{ID: "trees", Title: "Street trees", Rows: 2, Columns: 3}}, list)
		})
	}
}

func TestStoreSink_PersistsSnapshots(t *testing.T) {
	store := NewInMemoryStore()
	h := NewHolder(fixture())
	h.Subscribe(StoreSink(context.Background(), store, zerolog.Nop()))

	_, err := h.Apply(func(m *Matrix) (*Matrix, error) { return m.EditCell("r2", "c-notes", "hedge") })
	require.NoError(t, err)

	saved, err := store.Get(context.Background(), "trees")
	require.NoError(t, err)
	assert.Equal(t, "hedge", saved.Cell("r2", "c-notes").Value)
}
