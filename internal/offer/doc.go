// Package offer defines the provisionable offers a race draws from and the
// policy that turns a catalog into a bounded, prioritized candidate set.
//
// Offers are supplied by a [Catalog] and are never mutated. [Policy.Select]
// builds the candidate list: the target offer first, then exact matches
// (same GPU model and count), then same-GPU matches, then the cheapest
// remaining offers as padding, truncated to the policy's maximum size.
package offer
