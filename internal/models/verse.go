// Package models defines the records shared by the corpus, similarity and output layers.
package models

// Verse is one line of a poem as read from the input, in input order.
type Verse struct {
	PoemID string `json:"poem_id" db:"poem_id"`
	Pos    string `json:"pos" db:"pos"`
	Text   string `json:"text" db:"text"`
}
