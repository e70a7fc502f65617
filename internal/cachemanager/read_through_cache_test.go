package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type wrappedInput struct {
	Id int
}

// fakeCacheManager is a hand-rolled CacheManager double: it lets tests
// assert on exactly the Get/Set sequence a ReadThroughCache issues without
// pulling in a generated-mock package this module doesn't have.
type fakeCacheManager[K comparable, V any] struct {
	values      map[K]V
	getCalls    int
	setCalls    int
	refreshHits map[K]bool
}

func newFakeCacheManager[K comparable, V any]() *fakeCacheManager[K, V] {
	return &fakeCacheManager[K, V]{values: make(map[K]V), refreshHits: make(map[K]bool)}
}

func (f *fakeCacheManager[K, V]) Get(ctx context.Context, key K) (V, bool) {
	f.getCalls++
	v, ok := f.values[key]
	return v, ok
}

func (f *fakeCacheManager[K, V]) GetMultiple(ctx context.Context, keys []K) (map[K]V, bool) {
	out := make(map[K]V)
	for _, k := range keys {
		if v, ok := f.values[k]; ok {
			out[k] = v
		}
	}
	return out, len(out) > 0
}

func (f *fakeCacheManager[K, V]) GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool) {
	v, ok := f.values[key]
	if ok {
		f.refreshHits[key] = true
	}
	return v, ok
}

func (f *fakeCacheManager[K, V]) Set(ctx context.Context, key K, value V, ttl time.Duration) {
	f.setCalls++
	f.values[key] = value
}

func (f *fakeCacheManager[K, V]) Delete(ctx context.Context, keys ...K) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func (f *fakeCacheManager[K, V]) Flush(ctx context.Context) error {
	f.values = make(map[K]V)
	return nil
}

func exampleFn(ctx context.Context, input wrappedInput) ([]*ExampleStruct, error) {
	return []*ExampleStruct{{ID: input.Id}}, nil
}

func TestReadThroughCache_Get_WithCacheDisabled(t *testing.T) {
	manager := newFakeCacheManager[string, []*ExampleStruct]()

	readThroughCache := NewReadThroughCache[string, []*ExampleStruct, wrappedInput](manager, exampleFn, true)

	examples, err := readThroughCache.Get(context.Background(), "key", wrappedInput{Id: 1}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, []*ExampleStruct{{ID: 1}}, examples)
	require.Zero(t, manager.getCalls, "disabled cache must never be consulted")
}

func TestReadThroughCache_GetWithRefresh_WithCacheDisabled(t *testing.T) {
	manager := newFakeCacheManager[string, []*ExampleStruct]()

	readThroughCache := NewReadThroughCache[string, []*ExampleStruct, wrappedInput](manager, exampleFn, true)

	examples, err := readThroughCache.GetWithRefresh(context.Background(), "key", wrappedInput{Id: 1}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, []*ExampleStruct{{ID: 1}}, examples)
}

func TestReadThroughCache_Get_WithValueInCache(t *testing.T) {
	manager := newFakeCacheManager[string, []*ExampleStruct]()
	manager.values["key"] = []*ExampleStruct{{ID: 1, Name: "Example"}}

	readThroughCache := NewReadThroughCache[string, []*ExampleStruct, wrappedInput](manager, exampleFn, false)

	examples, err := readThroughCache.Get(context.Background(), "key", wrappedInput{Id: 1}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, []*ExampleStruct{{ID: 1, Name: "Example"}}, examples)
	require.Zero(t, manager.setCalls, "a cache hit must not call Set")
}

func TestReadThroughCache_Get_EmptyCache(t *testing.T) {
	manager := newFakeCacheManager[string, []*ExampleStruct]()

	readThroughCache := NewReadThroughCache[string, []*ExampleStruct, wrappedInput](manager, exampleFn, false)

	examples, err := readThroughCache.Get(context.Background(), "key", wrappedInput{Id: 1}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, []*ExampleStruct{{ID: 1}}, examples)
	require.Equal(t, 1, manager.setCalls)
	require.Equal(t, []*ExampleStruct{{ID: 1}}, manager.values["key"])
}

func TestReadThroughCache_Get_UnderlyingError(t *testing.T) {
	manager := newFakeCacheManager[string, []*ExampleStruct]()
	failing := func(ctx context.Context, input wrappedInput) ([]*ExampleStruct, error) {
		return nil, errors.New("failed to get data")
	}

	readThroughCache := NewReadThroughCache[string, []*ExampleStruct, wrappedInput](manager, failing, false)

	_, err := readThroughCache.Get(context.Background(), "key", wrappedInput{Id: 1}, time.Minute)
	require.Error(t, err)
	require.Zero(t, manager.setCalls, "a failed fill must not populate the cache")
}

func TestReadThroughCache_GetWithRefresh_WithValueInCache(t *testing.T) {
	manager := newFakeCacheManager[string, []*ExampleStruct]()
	manager.values["key"] = []*ExampleStruct{{ID: 1, Name: "Example"}}

	readThroughCache := NewReadThroughCache[string, []*ExampleStruct, wrappedInput](manager, exampleFn, false)

	examples, err := readThroughCache.GetWithRefresh(context.Background(), "key", wrappedInput{Id: 1}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, []*ExampleStruct{{ID: 1, Name: "Example"}}, examples)
	require.True(t, manager.refreshHits["key"])
}

func TestReadThroughCache_GetWithRefresh_EmptyCache(t *testing.T) {
	manager := newFakeCacheManager[string, []*ExampleStruct]()

	readThroughCache := NewReadThroughCache[string, []*ExampleStruct, wrappedInput](manager, exampleFn, false)

	examples, err := readThroughCache.GetWithRefresh(context.Background(), "key", wrappedInput{Id: 1}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, []*ExampleStruct{{ID: 1}}, examples)
	require.Equal(t, 1, manager.setCalls)
}

func TestReadThroughCache_GetWithRefresh_UnderlyingError(t *testing.T) {
	manager := newFakeCacheManager[string, []*ExampleStruct]()
	failing := func(ctx context.Context, input wrappedInput) ([]*ExampleStruct, error) {
		return nil, errors.New("failed to get data")
	}

	readThroughCache := NewReadThroughCache[string, []*ExampleStruct, wrappedInput](manager, failing, false)

	_, err := readThroughCache.GetWithRefresh(context.Background(), "key", wrappedInput{Id: 1}, time.Minute)
	require.Error(t, err)
}
