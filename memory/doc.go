// Package memory provides a multi-tier adaptive memory subsystem for
// report-generation agents.
//
// The subsystem is organized into four independent tiers behind one
// six-operation Store contract, dispatched by a Manager:
//
//   - Ephemeral: bounded, TTL-expiring in-memory cache with
//     least-recently-accessed eviction. Optionally backed by Redis.
//
//   - Persistent: capacity-bounded key-value map durably flushed to a JSON
//     snapshot file after every mutation, evicting oldest-by-insertion
//     when full.
//
//   - Session: ordered event groups under session identifiers, addressed
//     with composite "<session-id>:<event-id>" keys. Sessions expire by
//     age and the oldest session is evicted on overflow.
//
//   - Relational: a durable knowledge graph of nodes with typed, weighted
//     directed edges, relationship queries, and least-connected eviction.
//
// # Failure contract
//
// Stores never raise operational errors. A false or default-value return is
// the sole failure signal; details go to the store's structured log. Only
// construction can fail, on invalid configuration or an unreachable
// backend. Stored values are opaque JSON-serializable payloads and are
// never interpreted by the stores.
//
// # Usage
//
// Construct a manager from configuration and address tiers by name:
//
//	cfg, err := memory.LoadConfig("memory.yaml")
//	if err != nil {
//	    return err
//	}
//	mgr, err := memory.NewManager(cfg)
//	if err != nil {
//	    return err
//	}
//	defer mgr.Close()
//
//	mgr.Store(ctx, "campaign_42", summary, memory.TierPersistent)
//	v := mgr.Retrieve(ctx, "campaign_42", nil, memory.TierPersistent)
//
// Session and relational extensions are reached through their concrete
// stores:
//
//	mgr.Store(ctx, "run-7:planner_done", payload, memory.TierSession)
//	events := mgr.Session().SessionEvents(ctx, "run-7")
//
//	rel := mgr.Relational()
//	rel.Put(ctx, "campaign_a", 1)
//	rel.Put(ctx, "campaign_b", 2)
//	rel.AddRelationship(ctx, "campaign_a", "campaign_b", "similar_audience", 0.8)
//	related := rel.Related(ctx, "campaign_a", "")
//
// # Concurrency
//
// Every store guards its state with a mutex held across read-modify-write
// sequences, so callers may invoke operations concurrently. Mutations are
// linearized within a store; there is no ordering guarantee across stores
// and none is needed, since stores do not reference each other.
//
// # Observability
//
// Wrap a Manager in a TracedManager to record OpenTelemetry spans and
// operation counters for every dispatch:
//
//	traced, err := memory.NewTracedManager(mgr, tracer, meter)
package memory
