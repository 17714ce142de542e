// Package boardstore is the Redis-backed durable store for a lanes board.
//
// # Overview
//
// The store owns item content and bank membership. The engine never writes
// placement here except for bank deposits; everything else a user does on
// the board is view state. Change notifications carry only the table and the
// kind of change, and consumers re-fetch whole containers in response.
//
// # Redis Schema
//
// Items:        lanes:{instance_name}:item:{item_id}   (hash)
// Feed index:   lanes:{instance_name}:feed              (ZSET, score = created_at_ms)
// Bank:         lanes:{instance_name}:bank              (ZSET, score = deposit position)
// Bank counter: lanes:{instance_name}:bank:seq          (INCR)
//
// Pub/Sub channels: lanes:{instance_name}:{table}_events, where table is
// "items" or "the_bank". Payloads are JSON {"table", "kind", "item_id"}.
//
// # Usage Example
//
//	client, err := boardstore.NewClient(&redis.Options{Addr: "localhost:6379"}, "default", boardstore.DefaultLayout())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	created, err := client.InsertBankMembership(ctx, "item-2")
//
// # Idempotency
//
// InsertBankMembership uses ZADD NX, so repeated deposits of the same item
// leave exactly one bank record and publish exactly one bank INSERT.
package boardstore
