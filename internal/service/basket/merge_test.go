package basket

import (
	"context"
	"testing"

	"commerce-basket/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeConservesItems(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	target := e.resolve(t, "k1")
	source := e.resolve(t, "k2")
	_, err := e.svc.AddItems(ctx, target, []domain.TargetRef{ref("p1"), ref("p2")})
	require.NoError(t, err)
	moved, err := e.svc.AddItems(ctx, source, []domain.TargetRef{ref("p3"), ref("p3")})
	require.NoError(t, err)

	before := append(targetsOf(target), targetsOf(source)...)

	merged, err := e.svc.MergeBaskets(ctx, target, source, nil)
	require.NoError(t, err)
	assert.Same(t, target, merged)

	assert.ElementsMatch(t, before, targetsOf(target))
	assert.True(t, target.TotalPrice.Equal(dec("9.00")), target.TotalPrice.String())
	assert.False(t, e.exists(t, source.ID))
	assert.True(t, target.HasItem(moved[0].ID), "reference items keep their identity when moved")
	assert.Len(t, e.items(t, moved[0].ID, moved[1].ID), 2, "moved items are not deleted with the source")
}

func TestMergeWithOverrides(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	target := e.resolve(t, "k1")
	source := e.resolve(t, "k2")
	_, err := e.svc.AddItems(ctx, source, []domain.TargetRef{ref("p1")})
	require.NoError(t, err)

	price := dec("200")
	_, err = e.svc.MergeBaskets(ctx, target, source, &domain.BasketOverrides{
		OwnerID:    strPtr("u1"),
		TotalPrice: &price,
		Metadata:   map[string]string{"source": "merge"},
	})
	require.NoError(t, err)

	stored := e.load(t, target.ID)
	assert.True(t, stored.TotalPrice.Equal(price))
	require.NotNil(t, stored.OwnerID)
	assert.Equal(t, "u1", *stored.OwnerID)
	assert.Equal(t, "merge", stored.Metadata["source"])
	assert.Len(t, stored.Items, 1)
}

func TestMergeIntoItselfIsNoop(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	b := e.resolve(t, "k1")
	_, err := e.svc.AddItems(ctx, b, []domain.TargetRef{ref("p2")})
	require.NoError(t, err)

	_, err = e.svc.MergeBaskets(ctx, b, b, nil)
	require.NoError(t, err)
	assert.True(t, e.exists(t, b.ID))
	assert.Len(t, b.Items, 1)
}

func TestMergeRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	target := e.resolve(t, "k1")
	source := e.resolve(t, "k2")
	_, err := e.svc.AddItems(ctx, target, []domain.TargetRef{ref("p1")})
	require.NoError(t, err)
	_, err = e.svc.AddItems(ctx, source, []domain.TargetRef{ref("p2")})
	require.NoError(t, err)

	e.store.failOn = "delete_basket"
	_, err = e.svc.MergeBaskets(ctx, target, source, nil)
	var se *domain.StorageError
	require.ErrorAs(t, err, &se)
	e.store.failOn = ""

	assert.True(t, e.exists(t, source.ID))
	assert.Len(t, e.load(t, source.ID).Items, 1)
	storedTarget := e.load(t, target.ID)
	assert.Len(t, storedTarget.Items, 1)
	assert.True(t, storedTarget.TotalPrice.Equal(dec("1.00")))
}

func TestMergeManyFoldIsOrderIndependentOnItems(t *testing.T) {
	ctx := context.Background()

	fold := func(order []int) []string {
		e := newEngine(t, nil)
		baskets := make([]*domain.Basket, 3)
		contents := [][]domain.TargetRef{
			{ref("p1")},
			{ref("p2"), ref("p2")},
			{ref("p3"), ref("p1")},
		}
		for i := range baskets {
			baskets[i] = e.resolve(t, "k"+string(rune('a'+i)))
			_, err := e.svc.AddItems(ctx, baskets[i], contents[i])
			require.NoError(t, err)
		}
		ordered := make([]*domain.Basket, 0, len(order))
		for _, i := range order {
			ordered = append(ordered, baskets[i])
		}
		survivor, err := e.svc.MergeManyBaskets(ctx, ordered, nil)
		require.NoError(t, err)
		assert.Equal(t, baskets[order[0]].ID, survivor.ID)
		assert.True(t, survivor.TotalPrice.Equal(dec("9.00")), survivor.TotalPrice.String())
		for _, i := range order[1:] {
			assert.False(t, e.exists(t, baskets[i].ID))
		}
		return targetsOf(survivor)
	}

	first := fold([]int{0, 1, 2})
	assert.Len(t, first, 5)
	assert.Equal(t, first, fold([]int{2, 0, 1}))
	assert.Equal(t, first, fold([]int{1, 2, 0}))
}

func TestMergeManyIntoExplicitTarget(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	into := e.resolve(t, "into")
	a := e.resolve(t, "a")
	_, err := e.svc.AddItems(ctx, a, []domain.TargetRef{ref("p3")})
	require.NoError(t, err)

	survivor, err := e.svc.MergeManyBaskets(ctx, []*domain.Basket{a, into}, into)
	require.NoError(t, err)
	assert.Equal(t, into.ID, survivor.ID)
	assert.True(t, into.TotalPrice.Equal(dec("3.00")))
	assert.False(t, e.exists(t, a.ID))

	same, err := e.svc.MergeManyBaskets(ctx, nil, into)
	require.NoError(t, err)
	assert.Equal(t, into.ID, same.ID)
}

func TestMergeManyEmptyInput(t *testing.T) {
	e := newEngine(t, nil)
	_, err := e.svc.MergeManyBaskets(context.Background(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestMergeCombinesDuplicateTargets(t *testing.T) {
	ctx := context.Background()
	e := quantityEngine(t)
	target := e.resolve(t, "k1")
	source := e.resolve(t, "k2")
	_, err := e.svc.CreateItems(ctx, target, []domain.ItemSpec{{Target: ref("p1"), Quantity: 1}})
	require.NoError(t, err)
	_, err = e.svc.CreateItems(ctx, source, []domain.ItemSpec{
		{Target: ref("p1"), Quantity: 3},
		{Target: ref("p2"), Quantity: 1},
	})
	require.NoError(t, err)

	_, err = e.svc.MergeBaskets(ctx, target, source, nil)
	require.NoError(t, err)

	require.Len(t, target.Items, 2)
	byTarget := map[string]domain.Item{}
	for _, it := range target.Items {
		byTarget[it.Target.ID] = it
	}
	assert.Equal(t, 4, byTarget["p1"].Quantity)
	assert.True(t, byTarget["p1"].Price.Equal(dec("4.00")))
	assert.True(t, target.TotalPrice.Equal(dec("6.00")), target.TotalPrice.String())

	count, err := e.svc.ItemCount(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.False(t, e.exists(t, source.ID))
}
