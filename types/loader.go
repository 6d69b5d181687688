package types

import "context"

// Loader is the contract between the cache and whatever produces values on a miss.
type Loader interface {

	/*
		Load is called by GetOrLoad when the key is absent or expired.
		1. Cache checks memory → key not found (or expired)
		2. Cache calls Load(key), at most once per key at a time
		3. Loader fetches from DB/API
		4. Cache stores the result with the caller's TTL
		5. Cache returns the value
	*/
	Load(ctx context.Context, key string) (any, error)
}

// LoaderFunc adapts an ordinary function to the Loader interface.
type LoaderFunc func(ctx context.Context, key string) (any, error)

func (f LoaderFunc) Load(ctx context.Context, key string) (any, error) {
	return f(ctx, key)
}
