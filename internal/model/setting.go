package model

// Setting represents a key-value configuration entry.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
