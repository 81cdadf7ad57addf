// Package classify holds the pipeline's three classification stages: the
// origin classifier (who wrote it, does it need a reply), the hybrid
// rule+LLM intent classifier, and the action decider that maps an intent
// outcome to what the operator side should do next.
//
// The origin classifier and action decider are deterministic and make no
// external calls. Only the intent classifier's LLM stage suspends.
package classify
