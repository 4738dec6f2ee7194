package domain

import (
	"dario.cat/mergo"
)

// MergePayloadValue combines two values arriving on the same input name
// from different upstream nodes. Object payloads deep-merge with the
// incoming side winning on conflicts; anything else is last-writer-wins
// in connection order.
func MergePayloadValue(existing, incoming interface{}) interface{} {
	existingMap, existingOK := existing.(map[string]interface{})
	incomingMap, incomingOK := incoming.(map[string]interface{})

	if !existingOK || !incomingOK {
		return incoming
	}

	merged := make(map[string]interface{}, len(existingMap))
	for k, v := range existingMap {
		merged[k] = v
	}

	if err := mergo.Merge(&merged, incomingMap,
		mergo.WithOverride,
		mergo.WithAppendSlice); err != nil {
		return incoming
	}

	return merged
}
