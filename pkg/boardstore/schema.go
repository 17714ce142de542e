package boardstore

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so
// several boards can share one Redis server.
//
// Key pattern: lanes:{instance_name}:{entity}[:{id}]
// Channel pattern: lanes:{instance_name}:{table}_events

// ItemKey returns the Redis key for an item hash.
// Pattern: lanes:{instance_name}:item:{item_id}
func ItemKey(instanceName, itemID string) string {
	return fmt.Sprintf("lanes:%s:item:%s", instanceName, itemID)
}

// FeedKey returns the ZSET of every item id scored by creation time.
// Pattern: lanes:{instance_name}:feed
func FeedKey(instanceName string) string {
	return fmt.Sprintf("lanes:%s:feed", instanceName)
}

// BankKey returns the ZSET of bank members scored by deposit position.
// Pattern: lanes:{instance_name}:bank
func BankKey(instanceName string) string {
	return fmt.Sprintf("lanes:%s:bank", instanceName)
}

// BankSeqKey returns the counter that hands out bank positions.
// Pattern: lanes:{instance_name}:bank:seq
func BankSeqKey(instanceName string) string {
	return fmt.Sprintf("lanes:%s:bank:seq", instanceName)
}

// PersonaKey returns the Redis key for a persona hash.
// Pattern: lanes:{instance_name}:persona:{persona_id}
func PersonaKey(instanceName, personaID string) string {
	return fmt.Sprintf("lanes:%s:persona:%s", instanceName, personaID)
}

// PersonasKey returns the SET of every persona id.
// Pattern: lanes:{instance_name}:personas
func PersonasKey(instanceName string) string {
	return fmt.Sprintf("lanes:%s:personas", instanceName)
}

// ChangesChannel returns the Pub/Sub channel for one table's change events.
// Pattern: lanes:{instance_name}:{table}_events
func ChangesChannel(instanceName, table string) string {
	return fmt.Sprintf("lanes:%s:%s_events", instanceName, table)
}
