package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"rocket-mimo/internal/domain"
)

// ComputeEventID computes a deterministic event_id using SHA256.
// Formula: SHA256(launch_event|sequence|event_type)
// Returns hex-encoded hash (64 characters).
func ComputeEventID(launchEvent common.Address, sequence uint64, eventType domain.EventType) string {
	data := fmt.Sprintf("%s|%d|%s",
		launchEvent.Hex(),
		sequence,
		string(eventType),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
