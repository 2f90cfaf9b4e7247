package models

import (
	"encoding/json"
	"fmt"
)

// Document is the single persisted aggregate holding every game and every global player
type Document struct {
	Games   map[string]*Game  `json:"games"`
	Players map[int64]*Player `json:"players"`
}

// NewDocument returns an empty document
func NewDocument() *Document {
	return &Document{
		Games:   make(map[string]*Game),
		Players: make(map[int64]*Player),
	}
}

// normalize fills in collections that an older or hand-edited document may lack
// and drops null entries
func (d *Document) normalize() {
	if d.Games == nil {
		d.Games = make(map[string]*Game)
	}
	if d.Players == nil {
		d.Players = make(map[int64]*Player)
	}
	for id, g := range d.Games {
		if g == nil {
			delete(d.Games, id)
			continue
		}
		if g.ID == "" {
			g.ID = id
		}
		if g.Status == "" {
			g.Status = GameStatusActive
		}
		if g.Players == nil {
			g.Players = make(map[int64]*PlayerInGame)
		}
		for userID, p := range g.Players {
			if p == nil {
				delete(g.Players, userID)
				continue
			}
			if p.UserID == 0 {
				p.UserID = userID
			}
		}
		rounds := make([]*RollRecord, 0, len(g.Rounds))
		for _, r := range g.Rounds {
			if r != nil {
				rounds = append(rounds, r)
			}
		}
		g.Rounds = rounds
	}
	for id, p := range d.Players {
		if p == nil {
			delete(d.Players, id)
			continue
		}
		if p.UserID == 0 {
			p.UserID = id
		}
	}
}

// EncodeDocument serializes a document into its persisted JSON form
func EncodeDocument(doc *Document) ([]byte, error) {
	if doc == nil {
		doc = NewDocument()
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

// DecodeDocument parses a persisted document. Unknown fields are ignored and missing
// collections are defaulted, so older documents stay readable.
func DecodeDocument(data []byte) (*Document, error) {
	doc := NewDocument()
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	doc.normalize()
	return doc, nil
}
