package store

import "encoding/json"

// RefreshRecord is the body of an active refresh-token entry. Existence of
// the entry means the token is still valid and unconsumed.
type RefreshRecord struct {
	UserID    string `json:"user_id"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
}

func encodeRecord(rec RefreshRecord) ([]byte, error) {
	return json.Marshal(rec)
}

func decodeRecord(data []byte) (RefreshRecord, error) {
	var rec RefreshRecord
	err := json.Unmarshal(data, &rec)
	return rec, err
}
