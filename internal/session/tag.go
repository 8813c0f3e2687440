package session

import (
	"github.com/google/uuid"
)

// Tag identifies a protocol session on a shared medium.
//
// Tags travel in every pairing message so that concurrent sessions can be
// demultiplexed. They carry no structure beyond uniqueness.
type Tag = uuid.UUID

// TagFactory generates and validates session Tags.
type TagFactory struct{}

// New returns a fresh random Tag.
func (self TagFactory) New() Tag {
	return uuid.New()
}

// Check errors if tag is the zero Tag.
func (self TagFactory) Check(tag Tag) error {
	if uuid.Nil == tag {
		return newError("nil session tag")
	}

	return nil
}

var _ KeyFactory[Tag] = TagFactory{}
