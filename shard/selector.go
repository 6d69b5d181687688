package shard

import "hash/fnv"

/*
This file decides HOW a cache key is assigned to a shard.
If every request went to the same shard, that shard's lock would become a bottleneck.
*/

/*
Selector is the interface that decides which shard should handle a given key.
The cache does not care HOW this decision is made. Different strategies can be plugged in.
A Selector must be deterministic: the same key always maps to the same shard.
*/
type Selector interface {
	Select(string, []*Shard) *Shard
}

// FNVSelector hashes the key with FNV-1a and masks it onto a power-of-two shard count.
type FNVSelector struct{}

// hash converts a string key into a number. FNV is a fast, non-cryptographic hash commonly used in systems like this.
func hash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

// Select chooses the shard for a given key. len(shards) must be a power of two.
func (FNVSelector) Select(key string, shards []*Shard) *Shard {
	return shards[hash(key)&uint32(len(shards)-1)]
}
