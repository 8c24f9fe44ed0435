// Package store defines the boundary to a partitioned, join-less document
// store and the data model shared by the rest of lattice.
//
// Lattice sits between application logic and a document store that offers
// point reads, conditional writes guarded by an opaque version token, and
// per-partition queries, but no joins and no cross-document transactions.
// On top of that boundary the module provides:
//
//   - Optimistic read-modify-write with bounded retry ([occ.Controller])
//   - Batched, partition-grouped reference hydration ([hydrate.Resolver])
//   - Concurrency-safe maintenance of denormalized aggregates
//     ([aggregate.Maintainer])
//   - Explicit single-partition vs fan-out query planning ([router.Router])
//
// # Data model
//
// [Entity] is a tagged record: identifier, partition scope, opaque version
// token, an open Fields map for the document body, and Refs, the persisted
// lists of foreign identifiers. References are never expanded in storage;
// hydration attaches resolved targets transiently to the in-memory instance
// that asked for them, and [Entity.Clone] deliberately drops them.
//
// # Consistency contract
//
// The store's conditional write is the only mutual exclusion available.
// A write succeeds only if the caller presents the version token from its
// own read; everything lattice guarantees (no lost updates on aggregates,
// exactly one durable write per successful retry loop) derives from that.
// Version tokens must never be cached across logical operations.
//
// # Implementations
//
// [Memory] is the in-process implementation used by tests and local
// development. Package dynamo implements the same interface on DynamoDB.
//
// # Errors
//
//   - [ErrNotFound] - key absent from its partition scope
//   - [ErrConflict] - conditional write lost to a concurrent writer
package store
